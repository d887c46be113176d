// files.go — обработчики операций над файлами.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/bigkaa/datafixer/internal/api/errors"
	"github.com/bigkaa/datafixer/internal/api/middleware"
	"github.com/bigkaa/datafixer/internal/domain/model"
	"github.com/bigkaa/datafixer/internal/repository"
	"github.com/bigkaa/datafixer/internal/service"
)

// uploadFormMemory — лимит памяти для разбора multipart-формы.
// Остальное уходит во временные файлы.
const uploadFormMemory = 4 << 20

// uploadResponse — ответ на загрузку файла. Исправление асинхронное,
// поэтому клиент получает только идентификатор и текущий статус.
type uploadResponse struct {
	FileID string           `json:"file_id"`
	Status model.FileStatus `json:"status"`
}

// fileListResponse — ответ на запрос списка файлов.
type fileListResponse struct {
	Files  []fileResponse `json:"files"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// UploadFile обрабатывает POST /api/v1/files.
// Принимает multipart-форму с полем file и необязательным полем file_type
// (csv, json, txt или auto). Отвечает 201, не дожидаясь исправления.
func (h *APIHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	owner := middleware.SubjectFromContext(r.Context())
	if owner == "" {
		apierrors.Unauthorized(w, "требуется аутентификация")
		return
	}

	// Лимит на всё тело запроса: сам файл плюс накладные расходы формы.
	r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxUploadSize()+uploadFormMemory)

	if err := r.ParseMultipartForm(uploadFormMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.FileTooLarge(w, fmt.Sprintf("размер запроса превышает лимит %d байт", h.uploads.MaxUploadSize()))
			return
		}
		apierrors.ValidationError(w, "некорректная multipart-форма")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // временные файлы формы

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "поле file обязательно")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("чтение загружаемого файла", slog.String("error", err.Error()))
		apierrors.InternalError(w, "не удалось прочитать файл")
		return
	}

	declaredType := r.FormValue("file_type")
	filename := filepath.Base(header.Filename)

	rec, err := h.uploads.Upload(r.Context(), owner, filename, declaredType, content)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFileTooLarge):
			apierrors.FileTooLarge(w, err.Error())
		case errors.Is(err, service.ErrInvalidFileType),
			errors.Is(err, service.ErrEmptyFile),
			errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		default:
			h.logger.Error("загрузка файла",
				slog.String("filename", filename),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "не удалось сохранить файл")
		}
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{FileID: rec.ID, Status: rec.Status})
}

// ListFiles обрабатывает GET /api/v1/files.
// Поддерживает query-параметры limit, offset, file_type и status.
func (h *APIHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	owner := middleware.SubjectFromContext(r.Context())
	if owner == "" {
		apierrors.Unauthorized(w, "требуется аутентификация")
		return
	}

	limit, offset := paginationParams(r)

	var filters repository.FileListFilters
	if v := r.URL.Query().Get("file_type"); v != "" {
		ft := model.FileType(v)
		if !model.ValidFileType(ft) {
			apierrors.ValidationError(w, "file_type должен быть csv, json или txt")
			return
		}
		filters.FileType = &ft
	}
	if v := r.URL.Query().Get("status"); v != "" {
		st := model.FileStatus(v)
		switch st {
		case model.StatusProcessing, model.StatusFixed, model.StatusFailed:
			filters.Status = &st
		default:
			apierrors.ValidationError(w, "status должен быть processing, fixed или failed")
			return
		}
	}

	files, total, err := h.files.List(r.Context(), owner, filters, limit, offset)
	if err != nil {
		h.logger.Error("получение списка файлов", slog.String("error", err.Error()))
		apierrors.InternalError(w, "не удалось получить список файлов")
		return
	}

	writeJSON(w, http.StatusOK, fileListResponse{
		Files:  toFileResponses(files),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// RecentFiles обрабатывает GET /api/v1/files/recent.
// Возвращает последние файлы владельца (по умолчанию 5, не более 20).
func (h *APIHandler) RecentFiles(w http.ResponseWriter, r *http.Request) {
	owner := middleware.SubjectFromContext(r.Context())
	if owner == "" {
		apierrors.Unauthorized(w, "требуется аутентификация")
		return
	}

	limit := 5
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 20 {
			limit = n
		}
	}

	files, err := h.files.Recent(r.Context(), owner, limit)
	if err != nil {
		h.logger.Error("получение последних файлов", slog.String("error", err.Error()))
		apierrors.InternalError(w, "не удалось получить список файлов")
		return
	}

	writeJSON(w, http.StatusOK, toFileResponses(files))
}

// GetFile обрабатывает GET /api/v1/files/{id}.
func (h *APIHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	owner := middleware.SubjectFromContext(r.Context())
	if owner == "" {
		apierrors.Unauthorized(w, "требуется аутентификация")
		return
	}

	id, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	rec, err := h.files.Get(r.Context(), id, owner)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "файл не найден")
			return
		}
		h.logger.Error("получение файла", slog.String("id", id), slog.String("error", err.Error()))
		apierrors.InternalError(w, "не удалось получить файл")
		return
	}

	writeJSON(w, http.StatusOK, toFileResponse(rec))
}

// DownloadFile обрабатывает GET /api/v1/files/{id}/download.
// Query-параметр type: original или fixed. Без параметра отдаётся
// исправленное содержимое, а при его отсутствии — оригинал.
func (h *APIHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	owner := middleware.SubjectFromContext(r.Context())
	if owner == "" {
		apierrors.Unauthorized(w, "требуется аутентификация")
		return
	}

	id, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	which := r.URL.Query().Get("type")

	f, rec, err := h.files.Download(r.Context(), id, owner, which)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			apierrors.NotFound(w, "файл не найден")
		case errors.Is(err, service.ErrNotFixed):
			apierrors.NotFixed(w, "исправленная версия ещё не готова")
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, "type должен быть original или fixed")
		default:
			h.logger.Error("скачивание файла", slog.String("id", id), slog.String("error", err.Error()))
			apierrors.InternalError(w, "не удалось скачать файл")
		}
		return
	}
	defer f.Close()

	name := rec.OriginalName
	if which != service.DownloadOriginal && rec.Status == model.StatusFixed {
		name = "fixed_" + name
	}

	w.Header().Set("Content-Type", contentTypeFor(rec.FileType))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if info, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		// Заголовки уже отправлены, остаётся только залогировать.
		h.logger.Error("отдача содержимого файла",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}
}

// DeleteFile обрабатывает DELETE /api/v1/files/{id}.
func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	owner := middleware.SubjectFromContext(r.Context())
	if owner == "" {
		apierrors.Unauthorized(w, "требуется аутентификация")
		return
	}

	id, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	if err := h.files.Delete(r.Context(), id, owner); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "файл не найден")
			return
		}
		h.logger.Error("удаление файла", slog.String("id", id), slog.String("error", err.Error()))
		apierrors.InternalError(w, "не удалось удалить файл")
		return
	}

	h.diffs.Invalidate(id)

	w.WriteHeader(http.StatusNoContent)
}

// fileIDParam извлекает и валидирует UUID из path-параметра id.
func fileIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		apierrors.ValidationError(w, "id должен быть UUID")
		return "", false
	}
	return id, true
}

// contentTypeFor возвращает MIME-тип для типа файла.
func contentTypeFor(t model.FileType) string {
	switch t {
	case model.FileTypeCSV:
		return "text/csv; charset=utf-8"
	case model.FileTypeJSON:
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}
