// upload.go — сервис приёма файлов на исправление.
//
// Загрузка: валидация типа и размера, сохранение оригинала
// в blob-хранилище, создание записи в статусе processing
// и постановка задачи в очередь исправления.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bigkaa/datafixer/internal/domain/filetype"
	"github.com/bigkaa/datafixer/internal/domain/model"
	"github.com/bigkaa/datafixer/internal/repository"
	"github.com/bigkaa/datafixer/internal/storage/blobstore"
)

// RepairEnqueuer — постановка задачи исправления в очередь.
// Реализуется RepairService.
type RepairEnqueuer interface {
	Enqueue(task RepairTask) error
}

// UploadService — сервис приёма файлов.
type UploadService struct {
	fileRepo      repository.FileRecordRepository
	blobs         *blobstore.BlobStore
	repairs       RepairEnqueuer
	maxUploadSize int64
	logger        *slog.Logger
}

// NewUploadService создаёт сервис приёма файлов.
func NewUploadService(
	fileRepo repository.FileRecordRepository,
	blobs *blobstore.BlobStore,
	repairs RepairEnqueuer,
	maxUploadSize int64,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		fileRepo:      fileRepo,
		blobs:         blobs,
		repairs:       repairs,
		maxUploadSize: maxUploadSize,
		logger:        logger.With(slog.String("component", "upload_service")),
	}
}

// MaxUploadSize возвращает лимит размера загружаемого файла в байтах.
func (s *UploadService) MaxUploadSize() int64 {
	return s.maxUploadSize
}

// Upload принимает файл на исправление.
// declaredType — заявленный тип ("csv", "json", "txt", "auto" или пустой;
// при "auto" тип выводится из суффикса имени файла).
// Возвращает созданную запись в статусе processing.
// Если очередь переполнена, запись сразу переводится в failed.
func (s *UploadService) Upload(ctx context.Context, owner, filename, declaredType string, content []byte) (*model.FileRecord, error) {
	if filename == "" {
		return nil, fmt.Errorf("%w: не указано имя файла", ErrValidation)
	}
	if len(content) == 0 {
		return nil, ErrEmptyFile
	}
	if int64(len(content)) > s.maxUploadSize {
		return nil, fmt.Errorf("%w: %d байт при лимите %d", ErrFileTooLarge, len(content), s.maxUploadSize)
	}

	ft, ok := filetype.Resolve(declaredType, filename)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFileType, declaredType)
	}

	id := uuid.New().String()

	originalRef, err := s.blobs.Store(blobstore.FolderOriginal, id, content)
	if err != nil {
		return nil, fmt.Errorf("сохранение оригинала: %w", err)
	}

	rec := &model.FileRecord{
		ID:           id,
		Owner:        owner,
		OriginalName: filename,
		FileType:     ft,
		FileSize:     int64(len(content)),
		OriginalRef:  originalRef,
		Status:       model.StatusProcessing,
	}

	if err := s.fileRepo.Create(ctx, rec); err != nil {
		// Запись не создана — подчищаем осиротевший blob
		if delErr := s.blobs.Delete(originalRef); delErr != nil {
			s.logger.Error("Не удалось удалить осиротевший blob",
				slog.String("ref", originalRef),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("создание записи файла: %w", err)
	}

	s.logger.Info("Файл принят на исправление",
		slog.String("file_id", id),
		slog.String("owner", owner),
		slog.String("filename", filename),
		slog.String("file_type", string(ft)),
		slog.Int("size", len(content)),
	)

	if err := s.repairs.Enqueue(RepairTask{ID: id, Owner: owner}); err != nil {
		// Очередь переполнена: запись сразу терминально failed,
		// чтобы не зависнуть в processing навсегда.
		s.logger.Warn("Очередь исправлений переполнена, файл отклонён",
			slog.String("file_id", id),
		)
		if markErr := s.fileRepo.MarkFailed(ctx, id, ErrQueueFull.Error(), 0); markErr != nil {
			s.logger.Error("Не удалось перевести запись в failed",
				slog.String("file_id", id),
				slog.String("error", markErr.Error()),
			)
		}
		rec.Status = model.StatusFailed
		msg := ErrQueueFull.Error()
		rec.ErrorMessage = &msg
	}

	return rec, nil
}
