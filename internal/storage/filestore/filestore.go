// Пакет filestore — операции с физическими файлами на диске.
// Плоское пространство имён под dataDir: каждая запись — один blob
// под сгенерированным уникальным storage-именем.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound — blob отсутствует на диске.
// Отличается от отсутствия метаданных в БД: запись и blob могут разойтись,
// поэтому проверяется независимо.
var ErrNotFound = errors.New("файл не найден на диске")

// FileStore — управление физическими файлами на диске.
type FileStore struct {
	// dataDir — корневая директория хранения файлов (FB_DATA_DIR)
	dataDir string
}

// SaveResult — результат сохранения файла на диск.
type SaveResult struct {
	// StorageName — имя blob'а в dataDir
	StorageName string
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
}

// New создаёт новый FileStore. Проверяет и создаёт директорию
// если она не существует.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	return &FileStore{dataDir: dataDir}, nil
}

// Save записывает данные из reader на диск под сгенерированным storage-именем.
// Формат имени: {unix-millis}-{uuid8}-{sanitized-name}{.ext}
// Возвращает имя, путь и размер записанного файла.
//
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (fs *FileStore) Save(reader io.Reader, originalName string) (*SaveResult, error) {
	storageName := GenerateStorageName(originalName)
	fullPath := filepath.Join(fs.dataDir, storageName)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, reader)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		StorageName: storageName,
		FullPath:    fullPath,
		Size:        size,
	}, nil
}

// Open открывает blob для потокового чтения.
// Возвращает ErrNotFound, если blob отсутствует на диске.
// Вызывающий код обязан закрыть файл.
func (fs *FileStore) Open(storageName string) (*os.File, error) {
	fullPath := filepath.Join(fs.dataDir, storageName)

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, storageName)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", storageName, err)
	}

	return f, nil
}

// Read возвращает содержимое blob'а целиком.
// Возвращает ErrNotFound, если blob отсутствует на диске.
func (fs *FileStore) Read(storageName string) ([]byte, error) {
	fullPath := filepath.Join(fs.dataDir, storageName)

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, storageName)
		}
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", storageName, err)
	}

	return data, nil
}

// Delete удаляет blob с диска. Идемпотентна:
// возвращает nil если blob уже не существует.
func (fs *FileStore) Delete(storageName string) error {
	fullPath := filepath.Join(fs.dataDir, storageName)

	err := os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storageName, err)
	}
	return nil
}

// Exists проверяет существование blob'а на диске.
func (fs *FileStore) Exists(storageName string) bool {
	fullPath := filepath.Join(fs.dataDir, storageName)
	_, err := os.Stat(fullPath)
	return err == nil
}

// Size возвращает размер blob'а на диске.
func (fs *FileStore) Size(storageName string) (int64, error) {
	fullPath := filepath.Join(fs.dataDir, storageName)
	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, storageName)
		}
		return 0, fmt.Errorf("ошибка получения информации о файле %s: %w", storageName, err)
	}
	return info.Size(), nil
}

// DataDir возвращает путь к директории данных.
func (fs *FileStore) DataDir() string {
	return fs.dataDir
}

// GenerateStorageName генерирует уникальное storage-имя blob'а.
// Формат: {unix-millis}-{uuid8}-{sanitized-name}{.ext}
// Пример: 1756600000000-a1b2c3d4-photo.jpg
//
// Timestamp делает имя сортируемым по времени загрузки, короткий UUID
// исключает коллизию двух одновременных загрузок одноимённых файлов.
// Координации между запросами не требуется.
func GenerateStorageName(originalName string) string {
	ext := filepath.Ext(originalName)
	name := strings.TrimSuffix(filepath.Base(originalName), ext)

	name = sanitize(name)

	// Ограничиваем длину имени для предотвращения проблем с FS.
	// Режем по рунам: sanitize пропускает кириллицу, байтовый срез
	// мог бы разрезать двухбайтовую руну пополам.
	if runes := []rune(name); len(runes) > 50 {
		name = string(runes[:50])
	}

	ts := time.Now().UTC().UnixMilli()
	uid := uuid.New().String()[:8] // Короткий UUID для уникальности

	if ext != "" {
		return fmt.Sprintf("%d-%s-%s%s", ts, uid, name, sanitizeExt(ext))
	}
	return fmt.Sprintf("%d-%s-%s", ts, uid, name)
}

// sanitize убирает небезопасные символы из строки для использования в имени файла.
// Оставляет только буквы, цифры, дефис, подчёркивание и точку.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' ||
			(r >= 0x0400 && r <= 0x04FF) { // Кириллица
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "file"
	}
	return result.String()
}

// sanitizeExt очищает расширение, сохраняя ведущую точку.
func sanitizeExt(ext string) string {
	cleaned := sanitize(strings.TrimPrefix(ext, "."))
	if cleaned == "file" {
		return ""
	}
	return "." + cleaned
}
