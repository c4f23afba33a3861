package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bigkaa/filebox/internal/domain/model"
	"github.com/bigkaa/filebox/internal/repository"
	"github.com/bigkaa/filebox/internal/storage/filestore"
)

// fakeFileRepo — in-memory реализация repository.FileRepository.
// Повторяет контракт PostgreSQL-репозитория: ownership-scoping,
// ErrNotFound, сортировка листинга новые-первыми.
type fakeFileRepo struct {
	mu      sync.Mutex
	seq     int
	records []*model.FileRecord
	// failCreate — следующая Create вернёт эту ошибку (для теста компенсации)
	failCreate error
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{}
}

func (r *fakeFileRepo) Create(_ context.Context, record *model.FileRecord) (*model.FileRecord, error) {
	if err := model.ValidateFileRecord(record); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failCreate != nil {
		err := r.failCreate
		r.failCreate = nil
		return nil, err
	}

	r.seq++
	created := *record
	created.ID = fmt.Sprintf("file-%04d", r.seq)
	created.CreatedAt = time.Now().UTC()
	r.records = append(r.records, &created)
	return &created, nil
}

func (r *fakeFileRepo) ListByOwner(_ context.Context, ownerID string) ([]*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Порядок вставки монотонен, отдаём в обратном порядке (новые первыми)
	var result []*model.FileRecord
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].OwnerID == ownerID {
			copied := *r.records[i]
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeFileRepo) GetOwned(_ context.Context, id, ownerID string) (*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.ID == id && rec.OwnerID == ownerID {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeFileRepo) DeleteOwned(_ context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, rec := range r.records {
		if rec.ID == id && rec.OwnerID == ownerID {
			r.records = append(r.records[:i], r.records[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

// testFileService собирает FileService поверх фейкового репозитория
// и настоящего filestore в t.TempDir.
func testFileService(t *testing.T) (*FileService, *fakeFileRepo, *filestore.FileStore) {
	t.Helper()

	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	repo := newFakeFileRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := NewMetadataCache(64, time.Minute)

	svc := NewFileService(repo, store, cache, 1<<20, logger)
	return svc, repo, store
}

const (
	ownerA = "owner-aaaa"
	ownerB = "owner-bbbb"
)

// TestUpload_SizeMatchesContent проверяет, что size записи равен
// фактической длине содержимого.
func TestUpload_SizeMatchesContent(t *testing.T) {
	svc, _, _ := testFileService(t)
	ctx := context.Background()

	content := []byte("hello, filebox")
	record, err := svc.Upload(ctx, ownerA, "greeting.txt", "text/plain", bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}

	if record.Size != int64(len(content)) {
		t.Errorf("Size = %d, ожидалось %d", record.Size, len(content))
	}
	if record.OwnerID != ownerA {
		t.Errorf("OwnerID = %q, ожидался %q", record.OwnerID, ownerA)
	}
	if record.OriginalName != "greeting.txt" {
		t.Errorf("OriginalName = %q, ожидался greeting.txt", record.OriginalName)
	}
}

// TestUpload_MarkdownOverride проверяет нормализацию MIME-типа:
// пустой .md файл с application/octet-stream получает text/markdown и size 0.
func TestUpload_MarkdownOverride(t *testing.T) {
	svc, _, _ := testFileService(t)
	ctx := context.Background()

	record, err := svc.Upload(ctx, ownerA, "notes.md", "application/octet-stream", bytes.NewReader(nil), 0)
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}

	if record.MimeType != "text/markdown" {
		t.Errorf("MimeType = %q, ожидался text/markdown", record.MimeType)
	}
	if record.Size != 0 {
		t.Errorf("Size = %d, ожидался 0", record.Size)
	}
}

// TestUpload_RoundTrip проверяет, что Download возвращает байты,
// идентичные загруженным.
func TestUpload_RoundTrip(t *testing.T) {
	svc, _, _ := testFileService(t)
	ctx := context.Background()

	content := []byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0x01, 0xff, 0xfe}
	record, err := svc.Upload(ctx, ownerA, "pixel.png", "image/png", bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}

	result, err := svc.Download(ctx, ownerA, record.ID)
	if err != nil {
		t.Fatalf("ошибка скачивания: %v", err)
	}

	if !bytes.Equal(result.Content, content) {
		t.Error("скачанное содержимое не совпадает с загруженным")
	}
	if result.Record.MimeType != "image/png" {
		t.Errorf("MimeType = %q, ожидался image/png", result.Record.MimeType)
	}
}

// TestUpload_TooLarge проверяет отказ при превышении лимита размера.
func TestUpload_TooLarge(t *testing.T) {
	svc, _, _ := testFileService(t)
	ctx := context.Background()

	// Заявленный размер превышает лимит 1 MB
	_, err := svc.Upload(ctx, ownerA, "big.bin", "application/octet-stream", bytes.NewReader([]byte("x")), 2<<20)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("ожидался ErrTooLarge, получено: %v", err)
	}
}

// TestUpload_CompensatingCleanup проверяет, что при сбое вставки метаданных
// записанный blob удаляется.
func TestUpload_CompensatingCleanup(t *testing.T) {
	svc, repo, store := testFileService(t)
	ctx := context.Background()

	repo.failCreate = errors.New("БД недоступна")

	_, err := svc.Upload(ctx, ownerA, "doomed.txt", "text/plain", bytes.NewReader([]byte("data")), 4)
	if err == nil {
		t.Fatal("ожидалась ошибка загрузки")
	}

	// В dataDir не должно остаться осиротевших blob'ов
	entries, readErr := readDataDir(store)
	if readErr != nil {
		t.Fatalf("ошибка чтения директории данных: %v", readErr)
	}
	if len(entries) != 0 {
		t.Errorf("после неудачной загрузки остались blob'ы: %v", entries)
	}
}

// TestOwnershipIsolation проверяет, что файлы одного пользователя
// недоступны другому во всех операциях чтения и удаления.
func TestOwnershipIsolation(t *testing.T) {
	svc, _, _ := testFileService(t)
	ctx := context.Background()

	record, err := svc.Upload(ctx, ownerA, "secret.txt", "text/plain", bytes.NewReader([]byte("тайна")), 10)
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}

	if _, err := svc.Download(ctx, ownerB, record.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Download чужого файла: ожидался ErrNotFound, получено %v", err)
	}
	if _, err := svc.Preview(ctx, ownerB, record.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Preview чужого файла: ожидался ErrNotFound, получено %v", err)
	}
	if err := svc.Delete(ctx, ownerB, record.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete чужого файла: ожидался ErrNotFound, получено %v", err)
	}

	// Файл остался доступен владельцу
	if _, err := svc.Download(ctx, ownerA, record.ID); err != nil {
		t.Errorf("файл владельца должен остаться доступным: %v", err)
	}
}

// TestList_OwnedNewestFirst проверяет, что листинг содержит только файлы
// владельца в порядке новые-первыми.
func TestList_OwnedNewestFirst(t *testing.T) {
	svc, _, _ := testFileService(t)
	ctx := context.Background()

	first, err := svc.Upload(ctx, ownerA, "first.txt", "text/plain", bytes.NewReader([]byte("1")), 1)
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}
	second, err := svc.Upload(ctx, ownerA, "second.txt", "text/plain", bytes.NewReader([]byte("2")), 1)
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}
	if _, err := svc.Upload(ctx, ownerB, "other.txt", "text/plain", bytes.NewReader([]byte("3")), 1); err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}

	list, err := svc.List(ctx, ownerA)
	if err != nil {
		t.Fatalf("ошибка листинга: %v", err)
	}

	if len(list) != 2 {
		t.Fatalf("листинг: ожидалось 2 записи, получено %d", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("листинг должен быть новые-первыми: получено %s, %s", list[0].ID, list[1].ID)
	}
}

// TestPreview_TextAndBinary проверяет бифуркацию предпросмотра:
// текст с charset=utf-8, бинарные данные без изменения.
func TestPreview_TextAndBinary(t *testing.T) {
	svc, _, _ := testFileService(t)
	ctx := context.Background()

	textRec, err := svc.Upload(ctx, ownerA, "report.txt", "text/plain", bytes.NewReader([]byte("hello")), 5)
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}

	preview, err := svc.Preview(ctx, ownerA, textRec.ID)
	if err != nil {
		t.Fatalf("ошибка предпросмотра: %v", err)
	}
	if !preview.Text {
		t.Error("text/plain должен распознаваться как текст")
	}
	if preview.ContentType != "text/plain; charset=utf-8" {
		t.Errorf("ContentType = %q, ожидался text/plain; charset=utf-8", preview.ContentType)
	}
	if string(preview.Content) != "hello" {
		t.Errorf("Content = %q, ожидался hello", preview.Content)
	}

	binary := []byte{0x25, 0x50, 0x44, 0x46, 0x00}
	binRec, err := svc.Upload(ctx, ownerA, "doc.pdf", "application/pdf", bytes.NewReader(binary), int64(len(binary)))
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}

	preview, err = svc.Preview(ctx, ownerA, binRec.ID)
	if err != nil {
		t.Fatalf("ошибка предпросмотра: %v", err)
	}
	if preview.Text {
		t.Error("application/pdf не должен распознаваться как текст")
	}
	if preview.ContentType != "application/pdf" {
		t.Errorf("ContentType = %q, ожидался application/pdf", preview.ContentType)
	}
	if !bytes.Equal(preview.Content, binary) {
		t.Error("бинарное содержимое изменено при предпросмотре")
	}
}

// TestPreview_JSON проверяет, что application/json отдаётся как текст.
func TestPreview_JSON(t *testing.T) {
	svc, _, _ := testFileService(t)
	ctx := context.Background()

	record, err := svc.Upload(ctx, ownerA, "data.json", "application/json", bytes.NewReader([]byte(`{"a":1}`)), 7)
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}

	preview, err := svc.Preview(ctx, ownerA, record.ID)
	if err != nil {
		t.Fatalf("ошибка предпросмотра: %v", err)
	}
	if !preview.Text {
		t.Error("application/json должен распознаваться как текст")
	}
	if preview.ContentType != "application/json; charset=utf-8" {
		t.Errorf("ContentType = %q", preview.ContentType)
	}
}

// TestDelete_ThenDownload проверяет, что после удаления файл недоступен.
func TestDelete_ThenDownload(t *testing.T) {
	svc, _, _ := testFileService(t)
	ctx := context.Background()

	record, err := svc.Upload(ctx, ownerA, "gone.txt", "text/plain", bytes.NewReader([]byte("bye")), 3)
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}

	if err := svc.Delete(ctx, ownerA, record.ID); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}

	if _, err := svc.Download(ctx, ownerA, record.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Download после удаления: ожидался ErrNotFound, получено %v", err)
	}

	// Повторное удаление — ErrNotFound, не сбой
	if err := svc.Delete(ctx, ownerA, record.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторное удаление: ожидался ErrNotFound, получено %v", err)
	}
}

// TestDelete_InvalidatesCache проверяет, что удаление файла убирает
// запись из кэша метаданных, а не только из репозитория.
func TestDelete_InvalidatesCache(t *testing.T) {
	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	repo := newFakeFileRepo()
	cache := NewMetadataCache(64, time.Minute)
	svc := NewFileService(repo, store, cache, 1<<20, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	record, err := svc.Upload(ctx, ownerA, "cached.txt", "text/plain", bytes.NewReader([]byte("data")), 4)
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}

	// Upload помещает запись в кэш
	if _, ok := cache.Get(ownerA, record.ID); !ok {
		t.Fatal("ожидалась запись в кэше после загрузки")
	}

	if err := svc.Delete(ctx, ownerA, record.ID); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}

	if _, ok := cache.Get(ownerA, record.ID); ok {
		t.Error("запись должна быть удалена из кэша вместе с файлом")
	}
}

// TestDownload_OrphanedMetadata проверяет рассинхронизацию:
// метаданные есть, blob пропал с диска — наружу ErrNotFound, не сбой.
func TestDownload_OrphanedMetadata(t *testing.T) {
	svc, _, store := testFileService(t)
	ctx := context.Background()

	record, err := svc.Upload(ctx, ownerA, "ghost.txt", "text/plain", bytes.NewReader([]byte("boo")), 3)
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}

	// Симулируем пропажу blob'а (ручное вмешательство, сбой диска)
	if err := store.Delete(record.StorageName); err != nil {
		t.Fatalf("ошибка удаления blob'а: %v", err)
	}

	if _, err := svc.Download(ctx, ownerA, record.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидался ErrNotFound при отсутствующем blob'е, получено: %v", err)
	}
}

// TestBatchDelete_BestEffort проверяет независимость исходов batch-удаления.
func TestBatchDelete_BestEffort(t *testing.T) {
	svc, _, _ := testFileService(t)
	ctx := context.Background()

	record, err := svc.Upload(ctx, ownerA, "keep-one.txt", "text/plain", bytes.NewReader([]byte("a")), 1)
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}

	outcomes := svc.BatchDelete(ctx, ownerA, []string{record.ID, "file-nonexistent"})

	if len(outcomes) != 2 {
		t.Fatalf("ожидалось 2 исхода, получено %d", len(outcomes))
	}
	if !outcomes[0].Deleted {
		t.Errorf("существующий файл должен быть удалён: %+v", outcomes[0])
	}
	if outcomes[1].Deleted {
		t.Errorf("несуществующий файл не может быть удалён: %+v", outcomes[1])
	}
	if outcomes[1].Error == "" {
		t.Error("неудачный исход должен содержать текст ошибки")
	}
}

// TestUpload_ConcurrentSameName проверяет, что параллельные загрузки
// одноимённых файлов получают разные записи и разные storage-имена.
func TestUpload_ConcurrentSameName(t *testing.T) {
	svc, _, _ := testFileService(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	records := make([]*model.FileRecord, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			records[i], errs[i] = svc.Upload(ctx, ownerA, "a.png", "image/png", bytes.NewReader([]byte{byte(i)}), 1)
		}(i)
	}
	wg.Wait()

	seenIDs := make(map[string]bool)
	seenNames := make(map[string]bool)
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("ошибка параллельной загрузки: %v", errs[i])
		}
		if seenIDs[records[i].ID] {
			t.Errorf("повторяющийся id записи: %s", records[i].ID)
		}
		if seenNames[records[i].StorageName] {
			t.Errorf("повторяющееся storage-имя: %s", records[i].StorageName)
		}
		seenIDs[records[i].ID] = true
		seenNames[records[i].StorageName] = true
	}
}

// TestOperationMetrics проверяет, что list, preview и download
// записывают исход операции в метрики, включая not_found.
func TestOperationMetrics(t *testing.T) {
	svc, _, _ := testFileService(t)
	ctx := context.Background()

	listBefore := testutil.ToFloat64(operationsTotal.WithLabelValues("list", "success"))
	previewBefore := testutil.ToFloat64(operationsTotal.WithLabelValues("preview", "success"))
	downloadNFBefore := testutil.ToFloat64(operationsTotal.WithLabelValues("download", "not_found"))

	record, err := svc.Upload(ctx, ownerA, "metric.txt", "text/plain", bytes.NewReader([]byte("m")), 1)
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}
	if _, err := svc.List(ctx, ownerA); err != nil {
		t.Fatalf("ошибка листинга: %v", err)
	}
	if _, err := svc.Preview(ctx, ownerA, record.ID); err != nil {
		t.Fatalf("ошибка предпросмотра: %v", err)
	}
	if _, err := svc.Download(ctx, ownerA, "file-nonexistent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидался ErrNotFound, получено %v", err)
	}

	if got := testutil.ToFloat64(operationsTotal.WithLabelValues("list", "success")); got != listBefore+1 {
		t.Errorf("list success = %v, ожидалось %v", got, listBefore+1)
	}
	if got := testutil.ToFloat64(operationsTotal.WithLabelValues("preview", "success")); got != previewBefore+1 {
		t.Errorf("preview success = %v, ожидалось %v", got, previewBefore+1)
	}
	if got := testutil.ToFloat64(operationsTotal.WithLabelValues("download", "not_found")); got != downloadNFBefore+1 {
		t.Errorf("download not_found = %v, ожидалось %v", got, downloadNFBefore+1)
	}
}

// TestNormalizeMimeType проверяет правила нормализации MIME-типов.
func TestNormalizeMimeType(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		want        string
	}{
		{"notes.md", "application/octet-stream", "text/markdown"},
		{"README.MD", "text/plain", "text/markdown"},
		{"doc.markdown", "", "text/markdown"},
		{"photo.jpg", "image/jpeg", "image/jpeg"},
		{"unknown.bin", "", "application/octet-stream"},
		{"page.html", "text/html; charset=koi8-r", "text/html"},
	}

	for _, tc := range cases {
		if got := NormalizeMimeType(tc.name, tc.contentType); got != tc.want {
			t.Errorf("NormalizeMimeType(%q, %q) = %q, ожидалось %q", tc.name, tc.contentType, got, tc.want)
		}
	}
}

// readDataDir возвращает имена blob'ов в директории данных.
func readDataDir(store *filestore.FileStore) ([]string, error) {
	entries, err := os.ReadDir(store.DataDir())
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
