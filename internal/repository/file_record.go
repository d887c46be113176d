package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/datafixer/internal/domain/model"
)

// FileRecordRepository — интерфейс доступа к таблице file_records.
type FileRecordRepository interface {
	// Create создаёт запись файла в статусе processing.
	Create(ctx context.Context, f *model.FileRecord) error
	// GetByID возвращает запись по UUID в пределах владельца.
	GetByID(ctx context.Context, id, owner string) (*model.FileRecord, error)
	// List возвращает записи владельца с фильтрацией и пагинацией.
	List(ctx context.Context, owner string, filters FileListFilters, limit, offset int) ([]*model.FileRecord, error)
	// Count возвращает количество записей владельца с фильтрацией.
	Count(ctx context.Context, owner string, filters FileListFilters) (int, error)
	// Recent возвращает последние записи владельца.
	Recent(ctx context.Context, owner string, limit int) ([]*model.FileRecord, error)
	// Claim захватывает запись для обработки (claimed_at IS NULL → NOW()).
	// Возвращает false, если запись уже захвачена или не в статусе processing.
	Claim(ctx context.Context, id string) (bool, error)
	// MarkFixed переводит запись processing → fixed.
	MarkFixed(ctx context.Context, id, fixedRef string, changes []model.FileChange, processingTime float64) error
	// MarkFailed переводит запись processing → failed.
	MarkFailed(ctx context.Context, id, errorMessage string, processingTime float64) error
	// Delete удаляет запись владельца.
	Delete(ctx context.Context, id, owner string) error
	// Stats возвращает агрегированную статистику по файлам владельца.
	Stats(ctx context.Context, owner string) (*FileStats, error)
}

// FileListFilters — фильтры для списка файлов.
type FileListFilters struct {
	FileType *model.FileType
	Status   *model.FileStatus
}

// FileStats — агрегированная статистика по файлам владельца.
type FileStats struct {
	Total        int
	Fixed        int
	Failed       int
	Processing   int
	TotalSize    int64
	TotalChanges int
	ByType       map[model.FileType]int
}

// fileRecordRepo — реализация FileRecordRepository.
type fileRecordRepo struct {
	db DBTX
}

// NewFileRecordRepository создаёт репозиторий записей файлов.
func NewFileRecordRepository(db DBTX) FileRecordRepository {
	return &fileRecordRepo{db: db}
}

// fileRecordColumns — список колонок для SELECT (порядок совпадает со scanFileRecord).
const fileRecordColumns = `id, owner, original_name, file_type, file_size,
		original_ref, fixed_ref, status, changes, error_message,
		processing_time, claimed_at, created_at`

// scanFileRecord сканирует одну строку в FileRecord.
// Колонка changes читается как jsonb ([]byte) и распаковывается.
func scanFileRecord(row pgx.Row) (*model.FileRecord, error) {
	f := &model.FileRecord{}
	var changesJSON []byte
	err := row.Scan(
		&f.ID, &f.Owner, &f.OriginalName, &f.FileType, &f.FileSize,
		&f.OriginalRef, &f.FixedRef, &f.Status, &changesJSON, &f.ErrorMessage,
		&f.ProcessingTime, &f.ClaimedAt, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(changesJSON) > 0 {
		if err := json.Unmarshal(changesJSON, &f.Changes); err != nil {
			return nil, fmt.Errorf("ошибка распаковки списка изменений: %w", err)
		}
	}
	return f, nil
}

func (r *fileRecordRepo) Create(ctx context.Context, f *model.FileRecord) error {
	query := `
		INSERT INTO file_records (id, owner, original_name, file_type, file_size,
			original_ref, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		f.ID, f.Owner, f.OriginalName, f.FileType, f.FileSize,
		f.OriginalRef, f.Status,
	).Scan(&f.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл с таким ID уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка создания записи файла: %w", err)
	}
	return nil
}

func (r *fileRecordRepo) GetByID(ctx context.Context, id, owner string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM file_records
		WHERE id = $1 AND owner = $2`, fileRecordColumns)

	f, err := scanFileRecord(r.db.QueryRow(ctx, query, id, owner))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи файла: %w", err)
	}
	return f, nil
}

// buildFileWhere строит WHERE-условие и аргументы для фильтрации файлов.
// Владелец всегда первый аргумент: записи видны только своему владельцу.
func buildFileWhere(owner string, filters FileListFilters) (string, []any) {
	conditions := []string{"owner = $1"}
	args := []any{owner}
	argNum := 2

	if filters.FileType != nil {
		conditions = append(conditions, fmt.Sprintf("file_type = $%d", argNum))
		args = append(args, *filters.FileType)
		argNum++
	}
	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filters.Status)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

func (r *fileRecordRepo) List(ctx context.Context, owner string, filters FileListFilters, limit, offset int) ([]*model.FileRecord, error) {
	where, args := buildFileWhere(owner, filters)
	argNum := len(args) + 1

	query := fmt.Sprintf(`
		SELECT %s
		FROM file_records
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, fileRecordColumns, where, argNum, argNum+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		f, err := scanFileRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи файла: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *fileRecordRepo) Count(ctx context.Context, owner string, filters FileListFilters) (int, error) {
	where, args := buildFileWhere(owner, filters)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM file_records %s`, where)

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}
	return count, nil
}

func (r *fileRecordRepo) Recent(ctx context.Context, owner string, limit int) ([]*model.FileRecord, error) {
	return r.List(ctx, owner, FileListFilters{}, limit, 0)
}

// Claim захватывает запись для обработки через условный UPDATE.
// Повторный захват невозможен: claimed_at уже не NULL.
func (r *fileRecordRepo) Claim(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE file_records
		SET claimed_at = NOW()
		WHERE id = $1 AND status = 'processing' AND claimed_at IS NULL`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("ошибка захвата записи файла: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkFixed выполняет терминальный переход processing → fixed.
// Условие status = 'processing' гарантирует одноразовость перехода.
func (r *fileRecordRepo) MarkFixed(ctx context.Context, id, fixedRef string, changes []model.FileChange, processingTime float64) error {
	if changes == nil {
		changes = []model.FileChange{}
	}
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("ошибка сериализации списка изменений: %w", err)
	}

	query := `
		UPDATE file_records
		SET status = 'fixed', fixed_ref = $2, changes = $3, processing_time = $4
		WHERE id = $1 AND status = 'processing'`

	tag, err := r.db.Exec(ctx, query, id, fixedRef, changesJSON, processingTime)
	if err != nil {
		return fmt.Errorf("ошибка перевода записи в статус fixed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed выполняет терминальный переход processing → failed.
func (r *fileRecordRepo) MarkFailed(ctx context.Context, id, errorMessage string, processingTime float64) error {
	query := `
		UPDATE file_records
		SET status = 'failed', error_message = $2, processing_time = $3
		WHERE id = $1 AND status = 'processing'`

	tag, err := r.db.Exec(ctx, query, id, errorMessage, processingTime)
	if err != nil {
		return fmt.Errorf("ошибка перевода записи в статус failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRecordRepo) Delete(ctx context.Context, id, owner string) error {
	query := `DELETE FROM file_records WHERE id = $1 AND owner = $2`

	tag, err := r.db.Exec(ctx, query, id, owner)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRecordRepo) Stats(ctx context.Context, owner string) (*FileStats, error) {
	stats := &FileStats{ByType: make(map[model.FileType]int)}

	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'fixed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COALESCE(SUM(file_size), 0),
			COALESCE(SUM(jsonb_array_length(changes)), 0)
		FROM file_records
		WHERE owner = $1`

	err := r.db.QueryRow(ctx, query, owner).Scan(
		&stats.Total, &stats.Fixed, &stats.Failed, &stats.Processing,
		&stats.TotalSize, &stats.TotalChanges,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта статистики: %w", err)
	}

	typeQuery := `
		SELECT file_type, COUNT(*)
		FROM file_records
		WHERE owner = $1
		GROUP BY file_type`

	rows, err := r.db.Query(ctx, typeQuery, owner)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта статистики по типам: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ft model.FileType
		var n int
		if err := rows.Scan(&ft, &n); err != nil {
			return nil, fmt.Errorf("ошибка сканирования статистики по типам: %w", err)
		}
		stats.ByType[ft] = n
	}
	return stats, rows.Err()
}
