// logging.go — middleware логирования входящих HTTP-запросов через slog.
// Перехватывает статус-код, размер ответа и длительность обработки.
// Probe-запросы (/health/*, /metrics) не логируются: kubelet и Prometheus
// опрашивают их каждые несколько секунд и забивают лог.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// responseWriter — обёртка для перехвата статус-кода ответа.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// requestUser — изменяемый держатель id пользователя запроса.
// RequestLogger кладёт его в контекст до аутентификации, SessionAuth
// заполняет после проверки cookie: на момент записи строки лога
// внешний middleware уже не видит контекст, обогащённый внутренним.
type requestUser struct {
	id string
}

// contextKeyRequestUser — держатель requestUser в контексте запроса.
const contextKeyRequestUser contextKey = "request_user"

// setRequestUser записывает id аутентифицированного пользователя
// в держатель, если запрос проходит через RequestLogger.
func setRequestUser(ctx context.Context, userID string) {
	if holder, ok := ctx.Value(contextKeyRequestUser).(*requestUser); ok {
		holder.id = userID
	}
}

// isProbePath сообщает, является ли путь служебным probe-endpoint'ом.
func isProbePath(path string) bool {
	return strings.HasPrefix(path, "/health/") || path == "/metrics"
}

// RequestLogger возвращает middleware, логирующий каждый HTTP-запрос:
// метод, путь, статус, длительность, размер ответа, remote_addr и,
// для аутентифицированных запросов, user_id.
// Уровень логирования зависит от статус-кода: INFO (1xx-3xx), WARN (4xx), ERROR (5xx).
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isProbePath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := newResponseWriter(w)

			user := &requestUser{}
			ctx := context.WithValue(r.Context(), contextKeyRequestUser, user)

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			duration := time.Since(start)

			level := slog.LevelInfo
			if wrapped.statusCode >= 500 {
				level = slog.LevelError
			} else if wrapped.statusCode >= 400 {
				level = slog.LevelWarn
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", duration),
				slog.Int64("bytes", wrapped.written),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if user.id != "" {
				attrs = append(attrs, slog.String("user_id", user.id))
			}

			logger.LogAttrs(r.Context(), level, "HTTP запрос", attrs...)
		})
	}
}
