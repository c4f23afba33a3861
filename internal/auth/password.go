// Пакет auth — аутентификация Filebox: bcrypt-хэширование паролей
// и self-issued HS256 session-токены в HttpOnly cookie.
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Минимальная длина пароля при регистрации.
const MinPasswordLength = 6

// HashPassword возвращает bcrypt-хэш пароля.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("пароль короче %d символов", MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("ошибка хэширования пароля: %w", err)
	}
	return string(hash), nil
}

// CheckPassword сравнивает пароль с bcrypt-хэшем.
// Возвращает true при совпадении.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
