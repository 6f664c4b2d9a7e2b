package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"hoofprint/internal/domain"
	"hoofprint/internal/observability"
)

type contextKey string

const identityKey contextKey = "identity"

// SessionCookieName carries the opaque session ID.
const SessionCookieName = "hoofprint_session"

// Resolver maps a session ID to the identity of a live user.
type Resolver interface {
	Resolve(ctx context.Context, sessionID string) (*domain.Identity, error)
	SessionTTL() time.Duration
}

// ErrorHandler renders a request failure. Middleware hands every rejection
// to one so the response format lives in a single place.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Authenticate resolves the session cookie on every request and attaches the
// identity when the caller is logged in. Anonymous callers pass through;
// RequireLogin turns a missing identity into a redirect.
func Authenticate(resolver Resolver, secure bool, onError ErrorHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := SessionID(r)
			if sessionID == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := resolver.Resolve(r.Context(), sessionID)
			if errors.Is(err, domain.ErrNeedsLogin) {
				ClearSessionCookie(w, secure)
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				onError(w, r, err)
				return
			}

			SetSessionCookie(w, sessionID, resolver.SessionTTL(), secure)

			ctx := WithIdentity(r.Context(), identity)
			ctx = observability.WithUserID(ctx, identity.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireLogin rejects requests without an authenticated identity with
// domain.ErrNeedsLogin.
func RequireLogin(onError ErrorHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := GetIdentity(r.Context()); !ok {
				onError(w, r, domain.ErrNeedsLogin)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireGroup rejects identities outside group with domain.ErrForbidden.
// Membership comes from the identity resolved for this request.
func RequireGroup(group string, onError ErrorHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := GetIdentity(r.Context())
			if !ok {
				onError(w, r, domain.ErrNeedsLogin)
				return
			}
			if err := identity.RequireGroup(group); err != nil {
				observability.FromContext(r.Context()).Warn("forbidden",
					"group", group,
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionID returns the session cookie value, or "".
func SessionID(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SetSessionCookie writes the session cookie with a Max-Age of ttl.
func SetSessionCookie(w http.ResponseWriter, sessionID string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie tells the browser to drop the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func GetIdentity(ctx context.Context) (*domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*domain.Identity)
	return identity, ok && identity != nil
}

func WithIdentity(ctx context.Context, identity *domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}
