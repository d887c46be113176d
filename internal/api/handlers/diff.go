// diff.go — обработчик сравнения оригинала и исправленной версии.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/datafixer/internal/api/errors"
	"github.com/bigkaa/datafixer/internal/api/middleware"
	"github.com/bigkaa/datafixer/internal/service"
)

// GetDiff обрабатывает GET /api/v1/files/{id}/diff.
// Query-параметр mode: split или unified (по умолчанию split).
func (h *APIHandler) GetDiff(w http.ResponseWriter, r *http.Request) {
	owner := middleware.SubjectFromContext(r.Context())
	if owner == "" {
		apierrors.Unauthorized(w, "требуется аутентификация")
		return
	}

	id, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	mode := r.URL.Query().Get("mode")

	result, err := h.diffs.Diff(r.Context(), id, owner, mode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			apierrors.NotFound(w, "файл не найден")
		case errors.Is(err, service.ErrNotFixed):
			apierrors.NotFixed(w, "исправленная версия ещё не готова")
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, "mode должен быть split или unified")
		default:
			h.logger.Error("построение diff",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "не удалось построить сравнение")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}
