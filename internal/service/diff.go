// diff.go — сервис построения diff между оригиналом и исправлением.
// Результаты кэшируются в LRU с TTL: содержимое исправленного файла
// неизменно, пересчитывать diff при каждом запросе не нужно.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/datafixer/internal/diff"
	"github.com/bigkaa/datafixer/internal/domain/model"
	"github.com/bigkaa/datafixer/internal/storage/blobstore"
)

// Режимы представления diff.
const (
	// DiffModeSplit — построчное сравнение бок о бок.
	DiffModeSplit = "split"
	// DiffModeUnified — единый список с контекстом вокруг изменений.
	DiffModeUnified = "unified"
)

// Prometheus-метрики кэша diff.
var (
	diffCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "datafixer_diff_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш diff.",
	})
	diffCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "datafixer_diff_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша diff.",
	})
)

// DiffResult — результат построения diff в одном из режимов.
// Заполнено ровно одно из полей, соответствующее Mode.
type DiffResult struct {
	Mode    string             `json:"mode"`
	Split   []diff.SplitRow    `json:"split,omitempty"`
	Unified []diff.UnifiedLine `json:"unified,omitempty"`
}

// DiffService — построение и кэширование diff.
type DiffService struct {
	files  *FileService
	blobs  *blobstore.BlobStore
	cache  *expirable.LRU[string, *DiffResult]
	logger *slog.Logger
}

// NewDiffService создаёт сервис diff с LRU-кэшем.
// maxSize — максимальное количество записей в кэше (DF_DIFF_CACHE_SIZE),
// ttl — время жизни записи (DF_DIFF_CACHE_TTL).
func NewDiffService(
	files *FileService,
	blobs *blobstore.BlobStore,
	maxSize int,
	ttl time.Duration,
	logger *slog.Logger,
) *DiffService {
	return &DiffService{
		files:  files,
		blobs:  blobs,
		cache:  expirable.NewLRU[string, *DiffResult](maxSize, nil, ttl),
		logger: logger.With(slog.String("component", "diff_service")),
	}
}

// Diff возвращает diff между оригиналом и исправлением файла.
// mode — split или unified (пустая строка трактуется как split).
// Доступен только для записей в статусе fixed.
func (s *DiffService) Diff(ctx context.Context, id, owner, mode string) (*DiffResult, error) {
	if mode == "" {
		mode = DiffModeSplit
	}
	if mode != DiffModeSplit && mode != DiffModeUnified {
		return nil, fmt.Errorf("%w: недопустимый режим diff %q", ErrValidation, mode)
	}

	rec, err := s.files.Get(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.StatusFixed || rec.FixedRef == nil {
		return nil, ErrNotFixed
	}

	key := id + ":" + mode
	if cached, ok := s.cache.Get(key); ok {
		diffCacheHitsTotal.Inc()
		return cached, nil
	}
	diffCacheMissesTotal.Inc()

	original, err := s.blobs.Read(rec.OriginalRef)
	if err != nil {
		return nil, fmt.Errorf("чтение оригинала: %w", err)
	}
	fixed, err := s.blobs.Read(*rec.FixedRef)
	if err != nil {
		return nil, fmt.Errorf("чтение исправленного содержимого: %w", err)
	}

	result := &DiffResult{Mode: mode}
	switch mode {
	case DiffModeSplit:
		result.Split = diff.Split(string(original), string(fixed))
	case DiffModeUnified:
		result.Unified = diff.Unified(string(original), string(fixed))
	}

	s.cache.Add(key, result)
	return result, nil
}

// Invalidate удаляет diff файла из кэша (вызывается при удалении файла).
func (s *DiffService) Invalidate(id string) {
	s.cache.Remove(id + ":" + DiffModeSplit)
	s.cache.Remove(id + ":" + DiffModeUnified)
}
