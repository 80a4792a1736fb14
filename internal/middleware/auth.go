// Package middleware содержит HTTP middleware сервиса маркетплейса.
package middleware

import (
	"context"
	"net/http"
	"time"
)

type contextKey string

const userIDKey contextKey = "userID"

// SessionCookieName — имя cookie, в которой передаётся идентификатор сессии.
const SessionCookieName = "session_id"

// SessionValidator проверяет сессию и возвращает идентификатор её владельца.
type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID string) (string, error)
}

// AuthMiddleware выполняет аутентификацию пользователя по cookie сессии.
type AuthMiddleware struct {
	sessions SessionValidator
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware поверх указанного
// хранилища сессий.
func NewAuthMiddleware(sessions SessionValidator) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// Middleware проверяет cookie сессии и добавляет идентификатор пользователя
// в контекст запроса. Запросы без действующей сессии отклоняются с кодом 401.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		userID, err := a.sessions.ValidateSession(r.Context(), cookie.Value)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetSessionCookie устанавливает cookie с идентификатором сессии и сроком
// действия, совпадающим со сроком действия сессии.
func SetSessionCookie(w http.ResponseWriter, sessionID string, expiry time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Expires:  expiry,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie удаляет cookie сессии.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetUserIDFromContext извлекает идентификатор пользователя из контекста запроса.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}
