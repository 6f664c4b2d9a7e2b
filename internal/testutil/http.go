package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// NewFormRequest builds a url-encoded form submission.
func NewFormRequest(t *testing.T, method, target string, form url.Values) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// NewRequestWithCookie builds a body-less request presenting one cookie.
func NewRequestWithCookie(t *testing.T, method, target, name, value string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.AddCookie(&http.Cookie{Name: name, Value: value})
	return req
}

func AssertStatusCode(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Errorf("status: got %d, want %d; body:\n%s", w.Code, want, w.Body.String())
	}
}

// AssertRedirect checks both the status and the Location header.
func AssertRedirect(t *testing.T, w *httptest.ResponseRecorder, status int, location string) {
	t.Helper()
	AssertStatusCode(t, w, status)
	if got := w.Header().Get("Location"); got != location {
		t.Errorf("Location: got %q, want %q", got, location)
	}
}

func AssertHeader(t *testing.T, w *httptest.ResponseRecorder, key, want string) {
	t.Helper()
	if got := w.Header().Get(key); got != want {
		t.Errorf("header %s: got %q, want %q", key, got, want)
	}
}

func AssertHeaderContains(t *testing.T, w *httptest.ResponseRecorder, key, substr string) {
	t.Helper()
	if got := w.Header().Get(key); !strings.Contains(got, substr) {
		t.Errorf("header %s: got %q, want it to contain %q", key, got, substr)
	}
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// AssertCookie returns the cookie named name set by the response. It
// stops the test when there is none.
func AssertCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	c := findCookie(w, name)
	if c == nil {
		t.Fatalf("response set no %q cookie", name)
	}
	return c
}

// AssertNoCookie fails when the response sets a live cookie named name.
// A clearing cookie (empty value or negative Max-Age) does not count.
func AssertNoCookie(t *testing.T, w *httptest.ResponseRecorder, name string) {
	t.Helper()
	if c := findCookie(w, name); c != nil && c.Value != "" && c.MaxAge >= 0 {
		t.Errorf("unexpected %q cookie with value %q", name, c.Value)
	}
}
