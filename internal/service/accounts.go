// accounts.go — сервис учётных записей: регистрация и вход.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bigkaa/filebox/internal/auth"
	"github.com/bigkaa/filebox/internal/domain/model"
	"github.com/bigkaa/filebox/internal/repository"
)

// ErrInvalidCredentials — неверная пара email/пароль.
// Не различает «нет пользователя» и «неверный пароль».
var ErrInvalidCredentials = errors.New("неверные учётные данные")

// AccountService — регистрация и аутентификация пользователей.
type AccountService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewAccountService создаёт сервис учётных записей.
func NewAccountService(users repository.UserRepository, logger *slog.Logger) *AccountService {
	return &AccountService{
		users:  users,
		logger: logger.With(slog.String("component", "account_service")),
	}
}

// Register создаёт нового пользователя.
// Email нормализуется к нижнему регистру. Возвращает ошибку валидации
// при пустых полях, коротком пароле или занятом email.
func (s *AccountService) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" {
		return nil, fmt.Errorf("%w: имя не задано", model.ErrValidation)
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: некорректный email", model.ErrValidation)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrValidation, err.Error())
	}

	user, err := s.users.Create(ctx, &model.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, fmt.Errorf("%w: email уже зарегистрирован", model.ErrValidation)
		}
		return nil, fmt.Errorf("ошибка регистрации: %w", err)
	}

	s.logger.Info("Пользователь зарегистрирован",
		slog.String("user_id", user.ID),
		slog.String("email", email),
	)

	return user, nil
}

// Login проверяет учётные данные и возвращает пользователя.
// Любая причина отказа — ErrInvalidCredentials: ответ не должен
// раскрывать, существует ли пользователь с таким email.
func (s *AccountService) Login(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("ошибка поиска пользователя: %w", err)
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// GetProfile возвращает пользователя по id.
func (s *AccountService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return user, nil
}
