package handler

import (
	"errors"
	"net/http"

	"hoofprint/internal/domain"
	"hoofprint/internal/observability"
)

// Error maps err to a response. It is the single place request failures
// become status codes, and it doubles as the middleware ErrorHandler.
// Unrecognised errors are logged and shown only as a generic 500.
func (rd *Renderer) Error(w http.ResponseWriter, r *http.Request, err error) {
	if v, ok := domain.IsValidationError(err); ok {
		rd.Render(w, r, http.StatusBadRequest, pageError, &Page{Title: "Invalid input", Fields: v.Fields})
		return
	}

	switch {
	case errors.Is(err, domain.ErrNeedsLogin):
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	case errors.Is(err, domain.ErrForbidden):
		rd.Render(w, r, http.StatusForbidden, pageError, &Page{Title: "Forbidden"})
	case errors.Is(err, domain.ErrMissingCSRFToken):
		rd.Render(w, r, http.StatusForbidden, pageError, &Page{Title: "Missing form token", Error: "This form has expired. Please go back and try again."})
	case errors.Is(err, domain.ErrInvalidCSRFToken):
		rd.Render(w, r, http.StatusForbidden, pageError, &Page{Title: "Invalid form token", Error: "This form token is not valid. Please go back and try again."})
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrCodeNotFound), errors.Is(err, domain.ErrSiteNotFound):
		rd.Render(w, r, http.StatusNotFound, pageError, &Page{Title: "Not Found"})
	case errors.Is(err, domain.ErrEmailExists):
		rd.Render(w, r, http.StatusConflict, pageError, &Page{Title: "Conflict", Error: emailExistsMessage})
	default:
		observability.FromContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		rd.Render(w, r, http.StatusInternalServerError, pageError, &Page{Title: "Internal Server Error"})
	}
}

// NotFound renders the 404 page for unmatched routes.
func (rd *Renderer) NotFound(w http.ResponseWriter, r *http.Request) {
	rd.Render(w, r, http.StatusNotFound, pageError, &Page{Title: "Not Found"})
}
