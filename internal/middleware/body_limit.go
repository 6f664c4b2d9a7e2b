package middleware

import "net/http"

// MaxFormBytes bounds url-encoded form bodies.
const MaxFormBytes = 64 << 10

// LimitBody caps request bodies at n bytes. Mount it ahead of anything
// that parses the form, such as CSRF; reads past the cap fail and the
// form parses as empty.
func LimitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && !isSafeMethod(r.Method) {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}
