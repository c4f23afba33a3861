package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/filebox/internal/domain/model"
)

// fileColumns — список столбцов таблицы files для SELECT-запросов.
// DRY: одно место для всех SELECT'ов.
const fileColumns = `id, storage_name, original_name, size, mime_type, owner_id, created_at`

// FileRepository — интерфейс доступа к записям файлов.
type FileRepository interface {
	// Create вставляет новую запись. ID и CreatedAt назначаются здесь.
	// Возвращает ошибку валидации, если обязательные поля отсутствуют.
	Create(ctx context.Context, record *model.FileRecord) (*model.FileRecord, error)
	// ListByOwner возвращает все записи владельца, новые первыми.
	ListByOwner(ctx context.Context, ownerID string) ([]*model.FileRecord, error)
	// GetOwned возвращает запись по (id, owner_id) или ErrNotFound.
	GetOwned(ctx context.Context, id, ownerID string) (*model.FileRecord, error)
	// DeleteOwned удаляет запись по (id, owner_id).
	// Возвращает ErrNotFound, если запись отсутствует или не принадлежит владельцу.
	DeleteOwned(ctx context.Context, id, ownerID string) error
}

// fileRepo — реализация FileRepository через pgx.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий файлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

// Create вставляет новую запись файла.
func (r *fileRepo) Create(ctx context.Context, record *model.FileRecord) (*model.FileRecord, error) {
	if err := model.ValidateFileRecord(record); err != nil {
		return nil, err
	}

	created := *record
	created.ID = uuid.New().String()
	created.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO files (id, storage_name, original_name, size, mime_type, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		created.ID, created.StorageName, created.OriginalName,
		created.Size, created.MimeType, created.OwnerID, created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка вставки записи файла: %w", err)
	}

	return &created, nil
}

// ListByOwner возвращает все файлы владельца, отсортированные по времени
// создания по убыванию (новые первыми).
func (r *fileRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.FileRecord, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM files WHERE owner_id = $1 ORDER BY created_at DESC`,
		fileColumns,
	)

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		f := &model.FileRecord{}
		if err := rows.Scan(
			&f.ID, &f.StorageName, &f.OriginalName,
			&f.Size, &f.MimeType, &f.OwnerID, &f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи файла: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	return result, nil
}

// GetOwned возвращает файл по (id, owner_id) или ErrNotFound.
func (r *fileRepo) GetOwned(ctx context.Context, id, ownerID string) (*model.FileRecord, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM files WHERE id = $1 AND owner_id = $2`,
		fileColumns,
	)

	f := &model.FileRecord{}
	err := r.db.QueryRow(ctx, query, id, ownerID).Scan(
		&f.ID, &f.StorageName, &f.OriginalName,
		&f.Size, &f.MimeType, &f.OwnerID, &f.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

// DeleteOwned удаляет файл по (id, owner_id).
func (r *fileRepo) DeleteOwned(ctx context.Context, id, ownerID string) error {
	query := `DELETE FROM files WHERE id = $1 AND owner_id = $2`

	tag, err := r.db.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
