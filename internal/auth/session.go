package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/filebox/internal/domain/model"
)

// Имя cookie сессии.
const SessionCookieName = "filebox_session"

// Ошибки проверки сессии.
var (
	// ErrNoSession — cookie отсутствует в запросе.
	ErrNoSession = errors.New("сессия отсутствует")
	// ErrInvalidSession — токен повреждён, подпись неверна или срок истёк.
	ErrInvalidSession = errors.New("недействительная сессия")
)

// SessionClaims — данные сессии, переносимые в подписанном токене.
// После проверки подписи становятся AuthContext запроса: downstream-код
// получает уже разрешённый owner id и не разбирает учётные данные сам.
type sessionClaims struct {
	jwt.RegisteredClaims
	// Name — отображаемое имя пользователя.
	Name string `json:"name"`
	// Email — электронная почта пользователя.
	Email string `json:"email"`
}

// AuthContext — проверенная идентичность вызывающего.
type AuthContext struct {
	// UserID — UUID пользователя (sub токена), owner id для всех операций.
	UserID string
	// Name — отображаемое имя.
	Name string
	// Email — электронная почта.
	Email string
}

// SessionManager — выпуск и проверка session-токенов (HS256).
type SessionManager struct {
	// secret — ключ подписи HS256.
	secret []byte
	// ttl — время жизни выпускаемых токенов.
	ttl time.Duration
	// secure — Secure flag для cookie (true для HTTPS).
	secure bool
}

// NewSessionManager создаёт менеджер сессий.
// Если secret пустой — генерируется случайный ключ
// (сессии не переживают рестарт процесса).
func NewSessionManager(secret string, ttl time.Duration, secure bool) (*SessionManager, error) {
	key := []byte(secret)
	if secret == "" {
		key = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, fmt.Errorf("ошибка генерации ключа сессии: %w", err)
		}
	}

	return &SessionManager{
		secret: key,
		ttl:    ttl,
		secure: secure,
	}, nil
}

// Issue выпускает подписанный session-токен для пользователя.
func (sm *SessionManager) Issue(user *model.User) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sm.ttl)),
		},
		Name:  user.Name,
		Email: user.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(sm.secret)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи session-токена: %w", err)
	}
	return signed, nil
}

// Verify проверяет подпись и срок действия токена.
// Возвращает AuthContext или ErrInvalidSession.
func (sm *SessionManager) Verify(tokenString string) (*AuthContext, error) {
	claims := &sessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("неожиданный метод подписи: %v", t.Header["alg"])
			}
			return sm.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}
	if claims.Subject == "" {
		return nil, ErrInvalidSession
	}

	return &AuthContext{
		UserID: claims.Subject,
		Name:   claims.Name,
		Email:  claims.Email,
	}, nil
}

// SetSessionCookie устанавливает session cookie в ответ.
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sm.ttl.Seconds()),
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie удаляет session cookie из ответа (logout).
func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest извлекает и проверяет сессию из cookie запроса.
// Возвращает ErrNoSession если cookie отсутствует,
// ErrInvalidSession если токен не прошёл проверку.
func (sm *SessionManager) FromRequest(r *http.Request) (*AuthContext, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return nil, ErrNoSession
		}
		return nil, ErrNoSession
	}

	return sm.Verify(cookie.Value)
}
