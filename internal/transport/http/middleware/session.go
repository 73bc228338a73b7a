package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/meditrack-api/internal/pkg/id"
)

const SessionKey contextKey = "session_id"

// SessionCookie is the anonymous browser session cookie. It carries no
// identity; it only scopes OTP challenges and doctor grants to one browser.
const SessionCookie = "mt_session"

// Session returns middleware that reads the session cookie, minting a fresh
// session ID when absent, and injects the ID into the request context.
func Session(ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := ""
			if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
				sid = c.Value
			}
			if sid == "" {
				sid = id.New()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    sid,
					Path:     "/",
					MaxAge:   int(ttl.Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sid)))
		})
	}
}

// WithSessionID returns a context carrying the given session ID.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionKey, sessionID)
}

// SessionFromContext extracts the session ID from the request context.
func SessionFromContext(ctx context.Context) (string, bool) {
	sid, ok := ctx.Value(SessionKey).(string)
	return sid, ok && sid != ""
}
