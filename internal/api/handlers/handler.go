// handler.go — основной обработчик API DataFixer.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bigkaa/datafixer/internal/domain/model"
	"github.com/bigkaa/datafixer/internal/service"
)

// APIHandler — основной обработчик API DataFixer.
type APIHandler struct {
	health  *HealthHandler
	uploads *service.UploadService
	files   *service.FileService
	diffs   *service.DiffService
	logger  *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	uploads *service.UploadService,
	files *service.FileService,
	diffs *service.DiffService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:  health,
		uploads: uploads,
		files:   files,
		diffs:   diffs,
		logger:  logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Представление записей файлов в API ---

// fileResponse — JSON-представление записи файла.
type fileResponse struct {
	ID             string             `json:"id"`
	OriginalName   string             `json:"originalName"`
	FileType       model.FileType     `json:"fileType"`
	FileSize       int64              `json:"fileSize"`
	Status         model.FileStatus   `json:"status"`
	Changes        []model.FileChange `json:"changes"`
	ErrorMessage   *string            `json:"errorMessage,omitempty"`
	ProcessingTime *float64           `json:"processingTime,omitempty"`
	CreatedAt      string             `json:"createdAt"`
}

// toFileResponse преобразует FileRecord в API-представление.
func toFileResponse(f *model.FileRecord) fileResponse {
	changes := f.Changes
	if changes == nil {
		changes = []model.FileChange{}
	}
	return fileResponse{
		ID:             f.ID,
		OriginalName:   f.OriginalName,
		FileType:       f.FileType,
		FileSize:       f.FileSize,
		Status:         f.Status,
		Changes:        changes,
		ErrorMessage:   f.ErrorMessage,
		ProcessingTime: f.ProcessingTime,
		CreatedAt:      f.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// toFileResponses преобразует срез записей.
func toFileResponses(records []*model.FileRecord) []fileResponse {
	result := make([]fileResponse, 0, len(records))
	for _, f := range records {
		result = append(result, toFileResponse(f))
	}
	return result
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// paginationParams извлекает limit и offset из query-параметров.
// limit по умолчанию 50, максимум 100; offset по умолчанию 0.
func paginationParams(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}
