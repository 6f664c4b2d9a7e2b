package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"hoofprint/internal/domain"
	"hoofprint/internal/observability"
)

// TokenValidator consumes the pending CSRF token of a session.
type TokenValidator interface {
	Validate(ctx context.Context, sessionID, scope, submitted string) error
}

// ScopeFunc returns the scope a submitted form acts on, such as the target
// user of an admin action.
type ScopeFunc func(r *http.Request) string

// CSRF validates single-use tokens on state-changing requests using the
// synchronizer token pattern. Safe methods pass untouched. Any other method
// consumes the session's pending token whether or not it matches.
//
// Token sources (checked in order):
// - Form field: csrf_token
// - Header: X-CSRF-Token
// - Header: X-XSRF-Token (alternate)
func CSRF(tokens TokenValidator, scope ScopeFunc, onError ErrorHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			identity, ok := GetIdentity(r.Context())
			if !ok {
				onError(w, r, domain.ErrNeedsLogin)
				return
			}

			submitted := extractCSRFToken(r)
			var s string
			if scope != nil {
				s = scope(r)
			}

			err := tokens.Validate(r.Context(), identity.SessionID, s, submitted)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, domain.ErrMissingCSRFToken):
				logCSRFFailure(r, "missing token")
				observability.CSRFRejectionsTotal.WithLabelValues("missing").Inc()
				onError(w, r, err)
			case errors.Is(err, domain.ErrInvalidCSRFToken):
				logCSRFFailure(r, "invalid token")
				observability.CSRFRejectionsTotal.WithLabelValues("invalid").Inc()
				onError(w, r, err)
			default:
				onError(w, r, err)
			}
		})
	}
}

// FormValueScope scopes tokens by a submitted form field.
func FormValueScope(field string) ScopeFunc {
	return func(r *http.Request) string {
		return r.FormValue(field)
	}
}

// isSafeMethod returns true if the HTTP method is idempotent and cacheable.
// These methods should not modify state and don't require CSRF tokens.
func isSafeMethod(method string) bool {
	return method == http.MethodGet ||
		method == http.MethodHead ||
		method == http.MethodOptions
}

func extractCSRFToken(r *http.Request) string {
	token := r.FormValue("csrf_token")
	if token != "" {
		return token
	}

	token = r.Header.Get("X-CSRF-Token")
	if token != "" {
		return token
	}

	return r.Header.Get("X-XSRF-Token")
}

// logCSRFFailure logs a security event when CSRF validation fails. The
// user_id comes from the request logger set up by Authenticate.
func logCSRFFailure(r *http.Request, reason string) {
	observability.FromContext(r.Context()).Warn("CSRF validation failed",
		slog.String("reason", reason),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)
}
