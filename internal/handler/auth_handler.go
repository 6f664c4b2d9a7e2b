package handler

import (
	"errors"
	"net/http"
	"net/url"

	"hoofprint/internal/domain"
	"hoofprint/internal/middleware"
	"hoofprint/internal/observability"
	"hoofprint/internal/service"
)

const (
	invalidCredentialsMessage = "Invalid email or password"
	emailExistsMessage        = "User with that email already exists!"
	accountCreatedMessage     = "Account created successfully! Please log in."
)


// AuthHandler serves login, logout and registration.
type AuthHandler struct {
	authService *service.AuthService
	render      *Renderer
	secure      bool
}

// NewAuthHandler creates a new authentication handler. secure marks the
// session cookie Secure and should be set when serving TLS.
func NewAuthHandler(authService *service.AuthService, render *Renderer, secure bool) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		render:      render,
		secure:      secure,
	}
}

// LoginPage renders the login form. Already authenticated callers go home.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetIdentity(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	q := r.URL.Query()
	h.render.Render(w, r, http.StatusOK, pageLogin, &Page{
		Title:   "Log in",
		Success: q.Get("success"),
		Form:    map[string]string{"email": q.Get("email")},
	})
}

// Login verifies credentials and starts a session. Every credential failure
// re-renders the form with the same message.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		h.render.Error(w, r, malformedForm())
		return
	}
	email := r.PostFormValue("email")

	session, user, err := h.authService.Login(r.Context(), email, r.PostFormValue("password"), middleware.SessionID(r))
	if errors.Is(err, domain.ErrInvalidCredentials) {
		h.render.Render(w, r, http.StatusOK, pageLogin, &Page{
			Title: "Log in",
			Error: invalidCredentialsMessage,
			Form:  map[string]string{"email": email},
		})
		return
	}
	if err != nil {
		h.render.Error(w, r, err)
		return
	}

	middleware.SetSessionCookie(w, session.ID, h.authService.SessionTTL(), h.secure)
	observability.FromContext(observability.WithUserID(r.Context(), user.ID)).Info("user logged in")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout deletes the session and returns to the login page.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context(), middleware.SessionID(r)); err != nil {
		h.render.Error(w, r, err)
		return
	}

	middleware.ClearSessionCookie(w, h.secure)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetIdentity(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render.Render(w, r, http.StatusOK, pageRegister, &Page{Title: "Register"})
}

// Register creates an account and sends the caller to log in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetIdentity(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if !parseForm(w, r) {
		h.render.Error(w, r, malformedForm())
		return
	}

	form := map[string]string{
		"name":  r.PostFormValue("name"),
		"email": r.PostFormValue("email"),
	}

	user, err := h.authService.Register(r.Context(), form["name"], form["email"], r.PostFormValue("password"))
	if errors.Is(err, domain.ErrEmailExists) {
		h.render.Render(w, r, http.StatusConflict, pageRegister, &Page{Title: "Register", Error: emailExistsMessage, Form: form})
		return
	}
	if v, ok := domain.IsValidationError(err); ok {
		h.render.Render(w, r, http.StatusBadRequest, pageRegister, &Page{Title: "Register", Fields: v.Fields, Form: form})
		return
	}
	if err != nil {
		h.render.Error(w, r, err)
		return
	}

	q := url.Values{}
	q.Set("success", accountCreatedMessage)
	q.Set("email", user.Email)
	http.Redirect(w, r, "/login?"+q.Encode(), http.StatusSeeOther)
}

// parseForm reads a bounded url-encoded body.
func parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, middleware.MaxFormBytes)
	return r.ParseForm() == nil
}

func malformedForm() error {
	v := domain.NewValidationError()
	v.Add("form", "Malformed form")
	return v
}
