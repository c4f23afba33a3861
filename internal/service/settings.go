// settings.go — сервис настроек пользователя.
// Единственная настройка — отображаемое имя; blob-хранилище не затрагивается.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bigkaa/filebox/internal/domain/model"
	"github.com/bigkaa/filebox/internal/repository"
)

// SettingsService — изменение настроек пользователя.
type SettingsService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewSettingsService создаёт сервис настроек.
func NewSettingsService(users repository.UserRepository, logger *slog.Logger) *SettingsService {
	return &SettingsService{
		users:  users,
		logger: logger.With(slog.String("component", "settings_service")),
	}
}

// UpdateDisplayName обновляет отображаемое имя пользователя
// и возвращает обновлённую запись.
func (s *SettingsService) UpdateDisplayName(ctx context.Context, ownerID, name string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: имя не может быть пустым", model.ErrValidation)
	}

	user, err := s.users.UpdateName(ctx, ownerID, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка обновления имени: %w", err)
	}

	s.logger.Info("Имя пользователя обновлено",
		slog.String("user_id", ownerID),
	)
	return user, nil
}
