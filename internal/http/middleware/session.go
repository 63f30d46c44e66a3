package middleware

import (
	"context"
	"net/http"

	"github.com/shelfwise/lending/internal/http/response"
	"github.com/shelfwise/lending/pkg/logger"
)

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "session"

type emailKeyType struct{}

var emailKey emailKeyType

// SessionValidator verifies a session token and returns the email bound
// to it.
type SessionValidator interface {
	ValidateSession(token string) (string, error)
}

// RequireSession resolves the session cookie once and passes the
// authenticated email into the request context. Requests without a
// valid cookie are rejected before reaching the handler.
func RequireSession(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				response.Unauthorized(w, "Authentication required")
				return
			}

			email, err := sessions.ValidateSession(cookie.Value)
			if err != nil {
				response.Unauthorized(w, "Authentication failed")
				return
			}

			ctx := context.WithValue(r.Context(), emailKey, email)
			ctx = context.WithValue(ctx, logger.EmailKey, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// EmailFromContext returns the authenticated email set by
// RequireSession.
func EmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailKey).(string)
	return email, ok
}

// SetSessionCookie writes the session cookie with the hardening
// attributes the token relies on.
func SetSessionCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie immediately.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}
