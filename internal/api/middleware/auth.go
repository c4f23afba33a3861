// auth.go — session middleware Filebox.
// Извлекает session-токен из cookie, проверяет подпись и срок действия,
// помещает AuthContext в контекст запроса. Downstream-обработчики получают
// уже разрешённый owner id и никогда не разбирают учётные данные сами.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/filebox/internal/api/errors"
	"github.com/bigkaa/filebox/internal/auth"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyAuth — проверенный AuthContext в контексте запроса.
	ContextKeyAuth contextKey = "auth_context"
)

// SessionAuth — middleware проверки сессии API-запросов.
type SessionAuth struct {
	sessions *auth.SessionManager
	logger   *slog.Logger
}

// NewSessionAuth создаёт session middleware.
func NewSessionAuth(sessions *auth.SessionManager, logger *slog.Logger) *SessionAuth {
	return &SessionAuth{
		sessions: sessions,
		logger:   logger.With(slog.String("component", "session_auth")),
	}
}

// Middleware возвращает HTTP middleware проверки сессии.
// Отсутствующая или недействительная сессия → 401 JSON-ошибка
// (API потребляется SPA, redirect не используется).
func (sa *SessionAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, err := sa.sessions.FromRequest(r)
			if err != nil {
				sa.logger.Debug("Отклонён неаутентифицированный запрос",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("reason", err.Error()),
				)
				apierrors.Unauthorized(w, "Требуется аутентификация")
				return
			}

			setRequestUser(r.Context(), authCtx.UserID)

			ctx := context.WithValue(r.Context(), ContextKeyAuth, authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthFromContext извлекает AuthContext из контекста запроса.
// Возвращает nil если запрос не прошёл через SessionAuth middleware.
func AuthFromContext(ctx context.Context) *auth.AuthContext {
	authCtx, ok := ctx.Value(ContextKeyAuth).(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}
