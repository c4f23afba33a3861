// files.go — HTTP handlers файловых операций Filebox.
// Upload, List, Download, Preview, Delete, Batch delete.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/filebox/internal/api/errors"
	"github.com/bigkaa/filebox/internal/api/middleware"
	"github.com/bigkaa/filebox/internal/domain/model"
	"github.com/bigkaa/filebox/internal/service"
)

// multipartMemory — буфер в памяти для парсинга multipart form.
// Файлы больше буфера уходят во временные файлы net/http.
const multipartMemory = 32 << 20 // 32 MB

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	files       *service.FileService
	maxFileSize int64
	logger      *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(files *service.FileService, maxFileSize int64, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		files:       files,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "files_handler")),
	}
}

// fileResponse — представление записи файла в API.
type fileResponse struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mimeType"`
	CreatedAt    time.Time `json:"createdAt"`
}

// toFileResponse конвертирует доменную запись в API-представление.
// StorageName и OwnerID наружу не отдаются.
func toFileResponse(record *model.FileRecord) fileResponse {
	return fileResponse{
		ID:           record.ID,
		OriginalName: record.OriginalName,
		Size:         record.Size,
		MimeType:     record.MimeType,
		CreatedAt:    record.CreatedAt,
	}
}

// Upload обрабатывает POST /api/v1/files.
// Multipart form: file (обязательно).
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ac := middleware.AuthFromContext(r.Context())
	if ac == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	// MaxBytesReader отсекает слишком большие тела до чтения на диск
	// (запас под multipart-заголовки)
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Файл превышает лимит %d байт", h.maxFileSize))
			return
		}
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")

	record, err := h.files.Upload(r.Context(), ac.UserID, header.Filename, contentType, file, header.Size)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTooLarge):
			apierrors.FileTooLarge(w, fmt.Sprintf("Файл превышает лимит %d байт", h.maxFileSize))
		case errors.Is(err, model.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		default:
			h.logger.Error("Ошибка загрузки файла",
				slog.String("user_id", ac.UserID),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Не удалось загрузить файл")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toFileResponse(record))
}

// List обрабатывает GET /api/v1/files.
// Возвращает файлы владельца, новые первыми.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	ac := middleware.AuthFromContext(r.Context())
	if ac == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	records, err := h.files.List(r.Context(), ac.UserID)
	if err != nil {
		h.logger.Error("Ошибка листинга файлов",
			slog.String("user_id", ac.UserID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Не удалось получить список файлов")
		return
	}

	resp := make([]fileResponse, 0, len(records))
	for _, record := range records {
		resp = append(resp, toFileResponse(record))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Download обрабатывает GET /api/v1/files/{id}/download.
// Отдаёт содержимое с Content-Disposition: attachment.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	ac := middleware.AuthFromContext(r.Context())
	if ac == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	result, err := h.files.Download(r.Context(), ac.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeFileError(w, ac.UserID, err, "скачивания")
		return
	}

	w.Header().Set("Content-Type", result.Record.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(result.Record.Size, 10))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", result.Record.OriginalName))
	_, _ = w.Write(result.Content)
}

// Preview обрабатывает GET /api/v1/files/{id}/preview.
// Текстовые файлы отдаются с charset=utf-8, всё — inline.
func (h *FilesHandler) Preview(w http.ResponseWriter, r *http.Request) {
	ac := middleware.AuthFromContext(r.Context())
	if ac == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	result, err := h.files.Preview(r.Context(), ac.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeFileError(w, ac.UserID, err, "предпросмотра")
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Content)))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("inline; filename=%q", result.Record.OriginalName))
	_, _ = w.Write(result.Content)
}

// Delete обрабатывает DELETE /api/v1/files/{id}.
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ac := middleware.AuthFromContext(r.Context())
	if ac == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	if err := h.files.Delete(r.Context(), ac.UserID, chi.URLParam(r, "id")); err != nil {
		h.writeFileError(w, ac.UserID, err, "удаления")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// batchDeleteRequest — тело запроса batch-удаления.
type batchDeleteRequest struct {
	IDs []string `json:"ids"`
}

// batchDeleteResponse — результаты batch-удаления по каждому id.
type batchDeleteResponse struct {
	Results []service.DeleteOutcome `json:"results"`
}

// BatchDelete обрабатывает POST /api/v1/files/batch-delete.
// Исходы независимы: сбой одного id не прерывает остальные.
func (h *FilesHandler) BatchDelete(w http.ResponseWriter, r *http.Request) {
	ac := middleware.AuthFromContext(r.Context())
	if ac == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	var req batchDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}
	if len(req.IDs) == 0 {
		apierrors.ValidationError(w, "Список 'ids' пуст")
		return
	}

	outcomes := h.files.BatchDelete(r.Context(), ac.UserID, req.IDs)
	writeJSON(w, http.StatusOK, batchDeleteResponse{Results: outcomes})
}

// writeFileError маппит ошибки файлового сервиса в HTTP-ответ.
func (h *FilesHandler) writeFileError(w http.ResponseWriter, userID string, err error, op string) {
	if errors.Is(err, service.ErrNotFound) {
		apierrors.NotFound(w, "Файл не найден")
		return
	}
	h.logger.Error("Ошибка "+op+" файла",
		slog.String("user_id", userID),
		slog.String("error", err.Error()),
	)
	apierrors.InternalError(w, "Внутренняя ошибка")
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
