package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"hoofprint/internal/observability"
	"hoofprint/internal/testutil"
)

func TestRequestContext(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(observability.NewLogger(&buf, "info", "json"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	handler := chimiddleware.RequestID(RequestContext()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		observability.FromContext(r.Context()).Info("inside")
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(chimiddleware.RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	testutil.AssertHeader(t, w, chimiddleware.RequestIDHeader, "req-123")
	testutil.AssertContains(t, buf.String(), `"request_id":"req-123"`)
}
