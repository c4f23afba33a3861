// Пакет model — доменные модели Filebox.
// FileRecord — маппинг таблицы files, User — таблицы users.
// Модели — простые записи без логики сериализации; валидация вынесена
// в отдельные функции, скрытие полей (password hash) — забота API-слоя.
package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrValidation — базовая ошибка валидации доменной модели.
var ErrValidation = errors.New("ошибка валидации")

// FileRecord — запись файла в таблице files.
type FileRecord struct {
	// ID — UUID файла, назначается при создании, неизменяем
	ID string
	// StorageName — уникальное имя blob'а на диске, неизменяемо после создания
	StorageName string
	// OriginalName — имя файла, указанное пользователем при загрузке
	OriginalName string
	// Size — размер файла в байтах (фактическая длина blob'а)
	Size int64
	// MimeType — MIME-тип, нормализованный при загрузке
	MimeType string
	// OwnerID — UUID владельца; каждая операция чтения/изменения
	// фильтруется по (id, owner_id)
	OwnerID string
	// CreatedAt — время создания записи
	CreatedAt time.Time
}

// ValidateFileRecord проверяет обязательные поля записи перед вставкой.
// Возвращает ошибку, оборачивающую ErrValidation, с указанием поля.
func ValidateFileRecord(f *FileRecord) error {
	switch {
	case f.StorageName == "":
		return fmt.Errorf("%w: storage_name не задан", ErrValidation)
	case f.OriginalName == "":
		return fmt.Errorf("%w: original_name не задан", ErrValidation)
	case f.Size < 0:
		return fmt.Errorf("%w: size не может быть отрицательным", ErrValidation)
	case f.MimeType == "":
		return fmt.Errorf("%w: mime_type не задан", ErrValidation)
	case f.OwnerID == "":
		return fmt.Errorf("%w: owner_id не задан", ErrValidation)
	}
	return nil
}

// User — запись пользователя в таблице users.
type User struct {
	// ID — UUID пользователя
	ID string
	// Email — электронная почта, уникальна
	Email string
	// Name — отображаемое имя, изменяется через настройки
	Name string
	// PasswordHash — bcrypt-хэш пароля. Никогда не сериализуется наружу:
	// API-слой отдаёт только проекцию UserProfile.
	PasswordHash string
	// CreatedAt — время регистрации
	CreatedAt time.Time
	// UpdatedAt — время последнего изменения
	UpdatedAt time.Time
}

// UserProfile — проекция пользователя для отдачи клиенту (без password hash).
type UserProfile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Profile возвращает безопасную для сериализации проекцию пользователя.
func (u *User) Profile() UserProfile {
	return UserProfile{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
	}
}
