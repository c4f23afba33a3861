// settings.go — HTTP handler настроек пользователя.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/filebox/internal/api/errors"
	"github.com/bigkaa/filebox/internal/api/middleware"
	"github.com/bigkaa/filebox/internal/auth"
	"github.com/bigkaa/filebox/internal/domain/model"
	"github.com/bigkaa/filebox/internal/service"
)

// SettingsHandler — обработчик настроек пользователя.
type SettingsHandler struct {
	settings *service.SettingsService
	sessions *auth.SessionManager
	logger   *slog.Logger
}

// NewSettingsHandler создаёт обработчик настроек.
func NewSettingsHandler(settings *service.SettingsService, sessions *auth.SessionManager, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		sessions: sessions,
		logger:   logger.With(slog.String("component", "settings_handler")),
	}
}

// updateSettingsRequest — тело запроса обновления настроек.
type updateSettingsRequest struct {
	Name string `json:"name"`
}

// Update обрабатывает PUT /api/v1/user/settings.
// Меняет отображаемое имя и перевыпускает session cookie:
// имя входит в claims токена.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	ac := middleware.AuthFromContext(r.Context())
	if ac == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	user, err := h.settings.UpdateDisplayName(r.Context(), ac.UserID, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		case errors.Is(err, service.ErrNotFound):
			apierrors.NotFound(w, "Пользователь не найден")
		default:
			h.logger.Error("Ошибка обновления настроек",
				slog.String("user_id", ac.UserID),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Не удалось обновить настройки")
		}
		return
	}

	if token, issueErr := h.sessions.Issue(user); issueErr == nil {
		h.sessions.SetSessionCookie(w, token)
	} else {
		h.logger.Warn("Не удалось перевыпустить session token",
			slog.String("user_id", ac.UserID),
			slog.String("error", issueErr.Error()),
		)
	}

	writeJSON(w, http.StatusOK, user.Profile())
}
