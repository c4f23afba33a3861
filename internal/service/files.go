// files.go — сервис файловых операций: upload, list, download,
// preview, delete, batch delete. Оркестрирует filestore и репозиторий,
// обеспечивая ownership-scoping и согласованность blob/метаданные.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/filebox/internal/domain/model"
	"github.com/bigkaa/filebox/internal/repository"
	"github.com/bigkaa/filebox/internal/storage/filestore"
)

// Prometheus-метрики файловых операций.
var (
	// operationsTotal — количество операций по типу и исходу.
	// result: success | not_found | error.
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fb_operations_total",
			Help: "Общее количество файловых операций",
		},
		[]string{"operation", "result"},
	)

	// uploadBytesTotal — суммарный объём загруженных данных.
	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fb_upload_bytes_total",
		Help: "Суммарный объём загруженных данных в байтах",
	})
)

// observeOperation записывает исход операции в метрики.
func observeOperation(operation string, err error) {
	switch {
	case err == nil:
		operationsTotal.WithLabelValues(operation, "success").Inc()
	case errors.Is(err, ErrNotFound):
		operationsTotal.WithLabelValues(operation, "not_found").Inc()
	default:
		operationsTotal.WithLabelValues(operation, "error").Inc()
	}
}

// Ошибки сервисного слоя.
var (
	// ErrNotFound — файл отсутствует, принадлежит другому владельцу
	// или его blob пропал с диска. Все три случая неразличимы снаружи.
	ErrNotFound = errors.New("файл не найден")
	// ErrTooLarge — файл превышает лимит размера.
	ErrTooLarge = errors.New("файл превышает лимит размера")
)

// FileService — сервис файловых операций.
// Все операции принимают ownerID, уже разрешённый middleware аутентификации.
type FileService struct {
	files       repository.FileRepository
	store       *filestore.FileStore
	cache       *MetadataCache
	maxFileSize int64
	logger      *slog.Logger
}

// NewFileService создаёт сервис файловых операций.
// cache может быть nil — кэширование отключается.
func NewFileService(
	files repository.FileRepository,
	store *filestore.FileStore,
	cache *MetadataCache,
	maxFileSize int64,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		files:       files,
		store:       store,
		cache:       cache,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "file_service")),
	}
}

// DownloadResult — результат скачивания файла.
type DownloadResult struct {
	// Record — метаданные файла
	Record *model.FileRecord
	// Content — содержимое blob'а
	Content []byte
}

// PreviewResult — результат предпросмотра файла.
type PreviewResult struct {
	// Record — метаданные файла
	Record *model.FileRecord
	// Content — содержимое blob'а
	Content []byte
	// ContentType — тип для отдачи клиенту; для текстовых файлов
	// дополнен "; charset=utf-8"
	ContentType string
	// Text — текстовое содержимое (true для text/* и application/json).
	// Бинарное содержимое отдаётся без перекодирования.
	Text bool
}

// DeleteOutcome — результат удаления одного файла в batch-операции.
type DeleteOutcome struct {
	// ID — идентификатор файла
	ID string `json:"id"`
	// Deleted — файл успешно удалён
	Deleted bool `json:"deleted"`
	// Error — текст ошибки (пуст при успехе)
	Error string `json:"error,omitempty"`
}

// Upload сохраняет файл: сначала blob на диск, затем метаданные в БД.
// MIME-тип нормализуется: файлы .md/.markdown всегда получают
// text/markdown независимо от типа, присланного клиентом.
//
// Если вставка метаданных падает после записи blob'а, выполняется
// компенсирующее удаление blob'а: без записи он был бы недостижим навсегда.
func (s *FileService) Upload(ctx context.Context, ownerID, originalName, contentType string, reader io.Reader, declaredSize int64) (*model.FileRecord, error) {
	record, err := s.upload(ctx, ownerID, originalName, contentType, reader, declaredSize)
	observeOperation("upload", err)
	if err == nil {
		uploadBytesTotal.Add(float64(record.Size))
	}
	return record, err
}

func (s *FileService) upload(ctx context.Context, ownerID, originalName, contentType string, reader io.Reader, declaredSize int64) (*model.FileRecord, error) {
	if originalName == "" {
		return nil, fmt.Errorf("%w: имя файла не задано", model.ErrValidation)
	}
	if declaredSize > s.maxFileSize {
		return nil, fmt.Errorf("%w: %d байт при лимите %d", ErrTooLarge, declaredSize, s.maxFileSize)
	}

	mimeType := NormalizeMimeType(originalName, contentType)

	// 1. Blob на диск
	saved, err := s.store.Save(io.LimitReader(reader, s.maxFileSize+1), originalName)
	if err != nil {
		s.logger.Error("Ошибка сохранения blob'а",
			slog.String("owner_id", ownerID),
			slog.String("filename", originalName),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("ошибка сохранения файла: %w", err)
	}

	// Лимит проверяется и по фактически записанным данным:
	// declaredSize приходит от клиента и может лгать.
	if saved.Size > s.maxFileSize {
		_ = s.store.Delete(saved.StorageName)
		return nil, fmt.Errorf("%w: %d байт при лимите %d", ErrTooLarge, saved.Size, s.maxFileSize)
	}

	// 2. Метаданные в БД
	record, err := s.files.Create(ctx, &model.FileRecord{
		StorageName:  saved.StorageName,
		OriginalName: originalName,
		Size:         saved.Size,
		MimeType:     mimeType,
		OwnerID:      ownerID,
	})
	if err != nil {
		// Компенсирующее удаление: blob без записи недостижим навсегда,
		// запись без blob'а хотя бы всплывёт как 404 при обращении.
		if delErr := s.store.Delete(saved.StorageName); delErr != nil {
			s.logger.Error("Ошибка компенсирующего удаления blob'а",
				slog.String("storage_name", saved.StorageName),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("ошибка создания записи файла: %w", err)
	}

	if s.cache != nil {
		s.cache.Set(record)
	}

	s.logger.Info("Файл загружен",
		slog.String("file_id", record.ID),
		slog.String("owner_id", ownerID),
		slog.String("filename", originalName),
		slog.String("mime_type", mimeType),
		slog.Int64("size", saved.Size),
	)

	return record, nil
}

// List возвращает все файлы владельца, новые первыми.
func (s *FileService) List(ctx context.Context, ownerID string) ([]*model.FileRecord, error) {
	records, err := s.files.ListByOwner(ctx, ownerID)
	observeOperation("list", err)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	return records, nil
}

// Download возвращает содержимое файла для отдачи attachment'ом.
// ErrNotFound — если записи нет, она чужая или blob пропал с диска.
func (s *FileService) Download(ctx context.Context, ownerID, id string) (*DownloadResult, error) {
	result, err := s.fetchContent(ctx, ownerID, id)
	observeOperation("download", err)
	return result, err
}

// fetchContent читает запись и blob по (owner, id). Общий путь
// Download и Preview.
func (s *FileService) fetchContent(ctx context.Context, ownerID, id string) (*DownloadResult, error) {
	record, err := s.findOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	content, err := s.store.Read(record.StorageName)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			// Метаданные есть, blob'а нет: рассинхронизация, наружу — 404
			s.logger.Warn("Blob отсутствует при существующих метаданных",
				slog.String("file_id", id),
				slog.String("storage_name", record.StorageName),
			)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения файла: %w", err)
	}

	return &DownloadResult{Record: record, Content: content}, nil
}

// Preview возвращает содержимое файла для inline-отображения.
// Текстовые типы (text/*, application/json) отдаются с charset=utf-8;
// бинарные — без изменения байтов: перекодирование изуродовало бы
// изображения и PDF.
func (s *FileService) Preview(ctx context.Context, ownerID, id string) (*PreviewResult, error) {
	download, err := s.fetchContent(ctx, ownerID, id)
	observeOperation("preview", err)
	if err != nil {
		return nil, err
	}

	record := download.Record
	result := &PreviewResult{
		Record:      record,
		Content:     download.Content,
		ContentType: record.MimeType,
	}

	if IsTextMime(record.MimeType) {
		result.Text = true
		result.ContentType = record.MimeType + "; charset=utf-8"
	}

	return result, nil
}

// Delete удаляет файл: сначала blob, затем метаданные.
// Порядок выбран намеренно: при сбое между шагами остаётся запись без
// blob'а (обнаруживается при следующем обращении как 404), а не blob без
// записи (навсегда недостижимая утечка места).
func (s *FileService) Delete(ctx context.Context, ownerID, id string) error {
	err := s.delete(ctx, ownerID, id)
	observeOperation("delete", err)
	return err
}

func (s *FileService) delete(ctx context.Context, ownerID, id string) error {
	record, err := s.findOwned(ctx, ownerID, id)
	if err != nil {
		return err
	}

	// 1. Blob (идемпотентно — отсутствие не ошибка)
	if err := s.store.Delete(record.StorageName); err != nil {
		return fmt.Errorf("ошибка удаления blob'а: %w", err)
	}

	// 2. Метаданные
	if err := s.files.DeleteOwned(ctx, id, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Параллельное удаление успело раньше — исход тот же
			if s.cache != nil {
				s.cache.Delete(ownerID, id)
			}
			return ErrNotFound
		}
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}

	if s.cache != nil {
		s.cache.Delete(ownerID, id)
	}

	s.logger.Info("Файл удалён",
		slog.String("file_id", id),
		slog.String("owner_id", ownerID),
	)

	return nil
}

// BatchDelete удаляет набор файлов best-effort: каждый id обрабатывается
// независимо, частичный успех допустим, транзакция на весь batch не
// открывается. Возвращает исход для каждого id.
func (s *FileService) BatchDelete(ctx context.Context, ownerID string, ids []string) []DeleteOutcome {
	outcomes := make([]DeleteOutcome, 0, len(ids))
	for _, id := range ids {
		outcome := DeleteOutcome{ID: id, Deleted: true}
		if err := s.Delete(ctx, ownerID, id); err != nil {
			outcome.Deleted = false
			outcome.Error = err.Error()
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// findOwned возвращает запись по (id, owner) через кэш.
// repository.ErrNotFound транслируется в сервисный ErrNotFound.
func (s *FileService) findOwned(ctx context.Context, ownerID, id string) (*model.FileRecord, error) {
	if s.cache != nil {
		if record, ok := s.cache.Get(ownerID, id); ok {
			return record, nil
		}
	}

	record, err := s.files.GetOwned(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска файла: %w", err)
	}

	if s.cache != nil {
		s.cache.Set(record)
	}
	return record, nil
}

// NormalizeMimeType нормализует MIME-тип при загрузке.
// Файлы .md/.markdown всегда получают text/markdown: браузеры присылают
// для них application/octet-stream или text/plain.
// Пустой тип заменяется на application/octet-stream.
func NormalizeMimeType(originalName, contentType string) string {
	lower := strings.ToLower(originalName)
	if strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".markdown") {
		return "text/markdown"
	}

	if contentType == "" {
		return "application/octet-stream"
	}
	// Убираем параметры (charset и т.д.)
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	return contentType
}

// IsTextMime сообщает, является ли MIME-тип текстовым для предпросмотра.
func IsTextMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/") || mimeType == "application/json"
}
