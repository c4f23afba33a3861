// auth.go — HTTP handlers аутентификации: регистрация, вход,
// выход, текущий профиль.
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

// AuthHandler — обработчик endpoints аутентификации.
type AuthHandler struct {
	accounts *service.AccountService
	sessions *auth.SessionManager
	logger   *slog.Logger
}

// NewAuthHandler создаёт обработчик endpoints аутентификации.
func NewAuthHandler(accounts *service.AccountService, sessions *auth.SessionManager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		sessions: sessions,
		logger:   logger.With(slog.String("component", "auth_handler")),
	}
}

// registerRequest — тело запроса регистрации.
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest — тело запроса входа.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register обрабатывает POST /api/v1/auth/register.
// Создаёт пользователя и сразу открывает сессию.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	user, err := h.accounts.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, model.ErrValidation) {
			apierrors.ValidationError(w, err.Error())
			return
		}
		h.logger.Error("Ошибка регистрации", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Не удалось зарегистрировать пользователя")
		return
	}

	if err := h.openSession(w, user); err != nil {
		apierrors.InternalError(w, "Не удалось открыть сессию")
		return
	}

	writeJSON(w, http.StatusCreated, user.Profile())
}

// Login обрабатывает POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	user, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			apierrors.Unauthorized(w, "Неверный email или пароль")
			return
		}
		h.logger.Error("Ошибка входа", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Не удалось выполнить вход")
		return
	}

	if err := h.openSession(w, user); err != nil {
		apierrors.InternalError(w, "Не удалось открыть сессию")
		return
	}

	writeJSON(w, http.StatusOK, user.Profile())
}

// Logout обрабатывает POST /api/v1/auth/logout.
// Сессия stateless, достаточно удалить cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.sessions.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me обрабатывает GET /api/v1/auth/me и возвращает профиль
// текущего пользователя.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac := middleware.AuthFromContext(r.Context())
	if ac == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	user, err := h.accounts.GetProfile(r.Context(), ac.UserID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			// Сессия ссылается на удалённого пользователя
			h.sessions.ClearSessionCookie(w)
			apierrors.Unauthorized(w, "Сессия недействительна")
			return
		}
		h.logger.Error("Ошибка получения профиля", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Не удалось получить профиль")
		return
	}

	writeJSON(w, http.StatusOK, user.Profile())
}

// openSession выпускает session token и устанавливает cookie.
func (h *AuthHandler) openSession(w http.ResponseWriter, user *model.User) error {
	token, err := h.sessions.Issue(user)
	if err != nil {
		h.logger.Error("Ошибка выпуска session token",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return err
	}
	h.sessions.SetSessionCookie(w, token)
	return nil
}
