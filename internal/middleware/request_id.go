package middleware

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"hoofprint/internal/observability"
)

// RequestContext copies the chi request ID into the logging context so
// every log line of a request carries it. Mount it after chi's RequestID.
func RequestContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := chimiddleware.GetReqID(r.Context()); id != "" {
				r = r.WithContext(observability.WithRequestID(r.Context(), id))
				w.Header().Set(chimiddleware.RequestIDHeader, id)
			}
			next.ServeHTTP(w, r)
		})
	}
}
