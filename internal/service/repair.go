// repair.go — диспетчер исправлений: bounded очередь + пул воркеров.
//
// Каждая задача проходит цикл:
//  1. Claim записи (claimed_at IS NULL → NOW()) — защита от двойной обработки
//  2. Чтение оригинала из blob-хранилища
//  3. POST /api/fix к сервису коррекции
//  4. Сохранение исправленного содержимого и терминальный переход
//     processing → fixed или processing → failed
//
// Prometheus-метрики:
//   - datafixer_repairs_total — количество исправлений (по результатам)
//   - datafixer_repair_duration_seconds — длительность исправления
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/datafixer/internal/domain/model"
	"github.com/bigkaa/datafixer/internal/fixclient"
	"github.com/bigkaa/datafixer/internal/repository"
	"github.com/bigkaa/datafixer/internal/storage/blobstore"
)

// Prometheus-метрики диспетчера исправлений.
var (
	repairsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datafixer_repairs_total",
		Help: "Количество обработанных исправлений",
	}, []string{"result"}) // result: fixed, failed

	repairDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "datafixer_repair_duration_seconds",
		Help:    "Длительность исправления одного файла",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms … ~102s
	}, []string{"file_type"})

	repairQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "datafixer_repair_queue_depth",
		Help: "Текущая глубина очереди исправлений",
	})
)

// FixerClient — клиент сервиса коррекции.
// Реализуется fixclient.Client; в тестах подменяется fake-реализацией.
type FixerClient interface {
	Fix(ctx context.Context, content string, fileType model.FileType) (*fixclient.FixResult, error)
}

// RepairTask — задача исправления одного файла.
type RepairTask struct {
	// ID — UUID записи файла.
	ID string
	// Owner — владелец записи (для owner-scoped чтения).
	Owner string
}

// RepairService — фоновый диспетчер исправлений.
type RepairService struct {
	fileRepo repository.FileRecordRepository
	blobs    *blobstore.BlobStore
	fixer    FixerClient
	workers  int
	logger   *slog.Logger

	queue  chan RepairTask
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRepairService создаёт диспетчер исправлений.
// queueSize — ёмкость очереди (DF_REPAIR_QUEUE_SIZE),
// workers — количество воркеров (DF_REPAIR_WORKERS).
func NewRepairService(
	fileRepo repository.FileRecordRepository,
	blobs *blobstore.BlobStore,
	fixer FixerClient,
	queueSize, workers int,
	logger *slog.Logger,
) *RepairService {
	return &RepairService{
		fileRepo: fileRepo,
		blobs:    blobs,
		fixer:    fixer,
		workers:  workers,
		logger:   logger.With(slog.String("component", "repair_service")),
		queue:    make(chan RepairTask, queueSize),
	}
}

// Enqueue ставит задачу в очередь без блокировки.
// Возвращает ErrQueueFull, если очередь заполнена.
func (s *RepairService) Enqueue(task RepairTask) error {
	select {
	case s.queue <- task:
		repairQueueDepth.Set(float64(len(s.queue)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Start запускает пул воркеров.
// Вызывается один раз при старте приложения.
func (s *RepairService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.logger.Info("Диспетчер исправлений запущен",
		slog.Int("workers", s.workers),
		slog.Int("queue_size", cap(s.queue)),
	)

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}
}

// Stop останавливает воркеры и ждёт завершения текущих задач.
func (s *RepairService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("Диспетчер исправлений остановлен")
}

// worker — цикл одного воркера.
func (s *RepairService) worker(ctx context.Context, n int) {
	defer s.wg.Done()

	logger := s.logger.With(slog.Int("worker", n))

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-s.queue:
			repairQueueDepth.Set(float64(len(s.queue)))
			s.process(ctx, task, logger)
		}
	}
}

// process выполняет исправление одного файла.
func (s *RepairService) process(ctx context.Context, task RepairTask, logger *slog.Logger) {
	claimed, err := s.fileRepo.Claim(ctx, task.ID)
	if err != nil {
		logger.Error("Ошибка захвата записи",
			slog.String("file_id", task.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !claimed {
		// Запись уже захвачена другим воркером или удалена
		logger.Warn("Запись не захвачена, задача пропущена",
			slog.String("file_id", task.ID),
		)
		return
	}

	rec, err := s.fileRepo.GetByID(ctx, task.ID, task.Owner)
	if err != nil {
		logger.Error("Ошибка чтения записи после захвата",
			slog.String("file_id", task.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	started := time.Now()

	original, err := s.blobs.Read(rec.OriginalRef)
	if err != nil {
		s.markFailed(ctx, rec, "оригинальное содержимое недоступно", started, logger)
		return
	}

	result, err := s.fixer.Fix(ctx, string(original), rec.FileType)
	if err != nil {
		s.markFailed(ctx, rec, classifyFixError(err), started, logger)
		return
	}

	fixedRef, err := s.blobs.Store(blobstore.FolderFixed, rec.ID, []byte(result.FixedContent))
	if err != nil {
		s.markFailed(ctx, rec, "не удалось сохранить исправленное содержимое", started, logger)
		return
	}

	elapsed := time.Since(started).Seconds()
	// Терминальный переход выполняется даже при отмене контекста воркера:
	// иначе Stop() посреди задачи оставит захваченную запись в processing.
	if err := s.fileRepo.MarkFixed(context.WithoutCancel(ctx), rec.ID, fixedRef, result.Changes, elapsed); err != nil {
		// Терминальная запись не прошла: запись остаётся processing,
		// blob fixed уже на диске. Только логируем — повторный переход
		// выполнит следующая доставка задачи, если она будет.
		logger.Error("Не удалось перевести запись в fixed",
			slog.String("file_id", rec.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	repairsTotal.WithLabelValues("fixed").Inc()
	repairDuration.WithLabelValues(string(rec.FileType)).Observe(elapsed)

	logger.Info("Файл исправлен",
		slog.String("file_id", rec.ID),
		slog.String("file_type", string(rec.FileType)),
		slog.Int("changes", len(result.Changes)),
		slog.Float64("duration_seconds", elapsed),
	)
}

// markFailed выполняет терминальный переход processing → failed.
// Запись выполняется даже при отмене контекста воркера, чтобы остановка
// не оставляла захваченную запись в processing.
func (s *RepairService) markFailed(ctx context.Context, rec *model.FileRecord, message string, started time.Time, logger *slog.Logger) {
	elapsed := time.Since(started).Seconds()

	if err := s.fileRepo.MarkFailed(context.WithoutCancel(ctx), rec.ID, message, elapsed); err != nil {
		logger.Error("Не удалось перевести запись в failed",
			slog.String("file_id", rec.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	repairsTotal.WithLabelValues("failed").Inc()
	repairDuration.WithLabelValues(string(rec.FileType)).Observe(elapsed)

	logger.Warn("Исправление завершилось ошибкой",
		slog.String("file_id", rec.ID),
		slog.String("reason", message),
	)
}

// classifyFixError преобразует ошибку клиента в сообщение для пользователя.
// Сообщение сохраняется в error_message записи.
func classifyFixError(err error) string {
	switch {
	case errors.Is(err, fixclient.ErrFixRejected):
		return err.Error()
	case errors.Is(err, fixclient.ErrResponseTooLarge):
		return "файл слишком велик для обработки"
	case errors.Is(err, context.DeadlineExceeded) || isTimeout(err):
		return "превышен таймаут сервиса коррекции"
	default:
		return fmt.Sprintf("сервис коррекции недоступен: %v", err)
	}
}

// isTimeout проверяет сетевой таймаут.
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
