// files.go — сервис работы с записями файлов.
// Получение, списки, статистика, скачивание содержимого и удаление.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/datafixer/internal/domain/model"
	"github.com/bigkaa/datafixer/internal/repository"
	"github.com/bigkaa/datafixer/internal/storage/blobstore"
)

// Варианты скачивания содержимого.
const (
	// DownloadOriginal — оригинальное содержимое.
	DownloadOriginal = "original"
	// DownloadFixed — исправленное содержимое (по умолчанию).
	DownloadFixed = "fixed"
)

// FileService — сервис работы с записями файлов.
type FileService struct {
	fileRepo repository.FileRecordRepository
	blobs    *blobstore.BlobStore
	logger   *slog.Logger
}

// NewFileService создаёт сервис записей файлов.
func NewFileService(
	fileRepo repository.FileRecordRepository,
	blobs *blobstore.BlobStore,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		fileRepo: fileRepo,
		blobs:    blobs,
		logger:   logger.With(slog.String("component", "file_service")),
	}
}

// Get возвращает запись файла владельца.
func (s *FileService) Get(ctx context.Context, id, owner string) (*model.FileRecord, error) {
	rec, err := s.fileRepo.GetByID(ctx, id, owner)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение записи файла: %w", err)
	}
	return rec, nil
}

// List возвращает записи владельца с фильтрацией и общее количество.
func (s *FileService) List(ctx context.Context, owner string, filters repository.FileListFilters, limit, offset int) ([]*model.FileRecord, int, error) {
	records, err := s.fileRepo.List(ctx, owner, filters, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение списка файлов: %w", err)
	}

	total, err := s.fileRepo.Count(ctx, owner, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт файлов: %w", err)
	}

	return records, total, nil
}

// Recent возвращает последние записи владельца.
func (s *FileService) Recent(ctx context.Context, owner string, limit int) ([]*model.FileRecord, error) {
	records, err := s.fileRepo.Recent(ctx, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("получение последних файлов: %w", err)
	}
	return records, nil
}

// Stats возвращает агрегированную статистику по файлам владельца.
func (s *FileService) Stats(ctx context.Context, owner string) (*repository.FileStats, error) {
	stats, err := s.fileRepo.Stats(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("получение статистики: %w", err)
	}
	return stats, nil
}

// Download открывает содержимое файла для скачивания.
// which — original или fixed; пустая строка отдаёт исправленное содержимое,
// а при его отсутствии — оригинал. Явный запрос fixed для неисправленного
// файла возвращает ErrNotFixed. Вызывающий код обязан закрыть файл.
func (s *FileService) Download(ctx context.Context, id, owner, which string) (*os.File, *model.FileRecord, error) {
	rec, err := s.Get(ctx, id, owner)
	if err != nil {
		return nil, nil, err
	}

	switch which {
	case DownloadOriginal:
		return s.openOriginal(rec)
	case DownloadFixed:
		if rec.Status != model.StatusFixed || rec.FixedRef == nil {
			return nil, nil, ErrNotFixed
		}
		return s.openFixed(rec)
	case "":
		if rec.Status == model.StatusFixed && rec.FixedRef != nil {
			return s.openFixed(rec)
		}
		return s.openOriginal(rec)
	default:
		return nil, nil, fmt.Errorf("%w: недопустимый вариант скачивания %q", ErrValidation, which)
	}
}

func (s *FileService) openOriginal(rec *model.FileRecord) (*os.File, *model.FileRecord, error) {
	f, err := s.blobs.Open(rec.OriginalRef)
	if err != nil {
		return nil, nil, fmt.Errorf("открытие оригинала: %w", err)
	}
	return f, rec, nil
}

func (s *FileService) openFixed(rec *model.FileRecord) (*os.File, *model.FileRecord, error) {
	f, err := s.blobs.Open(*rec.FixedRef)
	if err != nil {
		return nil, nil, fmt.Errorf("открытие исправленного содержимого: %w", err)
	}
	return f, rec, nil
}

// Delete удаляет запись файла и её содержимое из blob-хранилища.
// Сначала удаляется запись, затем blob-ы best-effort: осиротевший blob
// без записи безвреден, запись без blob-а — нет.
func (s *FileService) Delete(ctx context.Context, id, owner string) error {
	rec, err := s.Get(ctx, id, owner)
	if err != nil {
		return err
	}

	if err := s.fileRepo.Delete(ctx, id, owner); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление записи файла: %w", err)
	}

	refs := []string{rec.OriginalRef}
	if rec.FixedRef != nil {
		refs = append(refs, *rec.FixedRef)
	}
	for _, ref := range refs {
		if err := s.blobs.Delete(ref); err != nil {
			s.logger.Error("Не удалось удалить содержимое файла",
				slog.String("file_id", id),
				slog.String("ref", ref),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("Файл удалён",
		slog.String("file_id", id),
		slog.String("owner", owner),
	)
	return nil
}
