// stats.go — обработчик сводной статистики по файлам владельца.
package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/datafixer/internal/api/errors"
	"github.com/bigkaa/datafixer/internal/api/middleware"
	"github.com/bigkaa/datafixer/internal/domain/model"
)

// statsResponse — сводная статистика по файлам владельца.
type statsResponse struct {
	TotalFiles      int                    `json:"totalFiles"`
	FixedFiles      int                    `json:"fixedFiles"`
	FailedFiles     int                    `json:"failedFiles"`
	ProcessingFiles int                    `json:"processingFiles"`
	TotalSize       int64                  `json:"totalSize"`
	TotalChanges    int                    `json:"totalChanges"`
	ByType          map[model.FileType]int `json:"byType"`
}

// GetStats обрабатывает GET /api/v1/stats.
func (h *APIHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	owner := middleware.SubjectFromContext(r.Context())
	if owner == "" {
		apierrors.Unauthorized(w, "требуется аутентификация")
		return
	}

	stats, err := h.files.Stats(r.Context(), owner)
	if err != nil {
		h.logger.Error("получение статистики", slog.String("error", err.Error()))
		apierrors.InternalError(w, "не удалось получить статистику")
		return
	}

	byType := stats.ByType
	if byType == nil {
		byType = map[model.FileType]int{}
	}

	writeJSON(w, http.StatusOK, statsResponse{
		TotalFiles:      stats.Total,
		FixedFiles:      stats.Fixed,
		FailedFiles:     stats.Failed,
		ProcessingFiles: stats.Processing,
		TotalSize:       stats.TotalSize,
		TotalChanges:    stats.TotalChanges,
		ByType:          byType,
	})
}
