package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bigkaa/filebox/internal/domain/model"
)

// userColumns — список столбцов таблицы users для SELECT-запросов.
const userColumns = `id, email, name, password_hash, created_at, updated_at`

// uniqueViolation — код ошибки PostgreSQL для нарушения уникального индекса.
const uniqueViolation = "23505"

// UserRepository — интерфейс доступа к пользователям.
type UserRepository interface {
	// Create вставляет нового пользователя. ID и timestamps назначаются здесь.
	// Возвращает ErrDuplicateEmail при конфликте по email.
	Create(ctx context.Context, user *model.User) (*model.User, error)
	// GetByEmail возвращает пользователя по email или ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// GetByID возвращает пользователя по id или ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.User, error)
	// UpdateName обновляет отображаемое имя пользователя и возвращает
	// обновлённую запись или ErrNotFound.
	UpdateName(ctx context.Context, id, name string) (*model.User, error)
}

// userRepo — реализация UserRepository через pgx.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

// Create вставляет нового пользователя.
func (r *userRepo) Create(ctx context.Context, user *model.User) (*model.User, error) {
	created := *user
	created.ID = uuid.New().String()
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	query := `
		INSERT INTO users (id, email, name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		created.ID, created.Email, created.Name,
		created.PasswordHash, created.CreatedAt, created.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	return &created, nil
}

// GetByEmail возвращает пользователя по email.
func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)
	return r.scanOne(r.db.QueryRow(ctx, query, email))
}

// GetByID возвращает пользователя по id.
func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// UpdateName обновляет отображаемое имя пользователя.
func (r *userRepo) UpdateName(ctx context.Context, id, name string) (*model.User, error) {
	query := fmt.Sprintf(`
		UPDATE users SET name = $2, updated_at = $3
		WHERE id = $1
		RETURNING %s`, userColumns)

	return r.scanOne(r.db.QueryRow(ctx, query, id, name, time.Now().UTC()))
}

// scanOne сканирует одну строку в model.User.
func (r *userRepo) scanOne(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}
