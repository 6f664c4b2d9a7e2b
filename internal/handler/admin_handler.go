package handler

import (
	"net/http"

	"hoofprint/internal/middleware"
	"hoofprint/internal/observability"
	"hoofprint/internal/security"
	"hoofprint/internal/service"
)

// AdminHandler serves the admin dashboard and password resets. Routes are
// mounted behind RequireGroup(admin); the reset POST also behind CSRF
// scoped to the submitted user_id.
type AdminHandler struct {
	authService *service.AuthService
	tokens      *security.TokenManager
	render      *Renderer
}

func NewAdminHandler(authService *service.AuthService, tokens *security.TokenManager, render *Renderer) *AdminHandler {
	return &AdminHandler{
		authService: authService,
		tokens:      tokens,
		render:      render,
	}
}

// Dashboard lists every user by email.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	users, err := h.authService.ListUsers(r.Context())
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, pageAdmin, &Page{Title: "Users", Users: users})
}

// ResetConfirm issues a CSRF token bound to the target user and renders the
// confirmation form carrying it.
func (h *AdminHandler) ResetConfirm(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.GetIdentity(r.Context())

	target, err := h.authService.GetUser(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		h.render.Error(w, r, err)
		return
	}

	token, err := h.tokens.Issue(r.Context(), identity.SessionID, target.ID)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}

	h.render.Render(w, r, http.StatusOK, pageResetConfirm, &Page{
		Title:     "Reset password",
		Target:    target,
		CSRFToken: token,
	})
}

// ResetSubmit regenerates the target's password and shows it once. The
// CSRF token has already been consumed by middleware.
func (h *AdminHandler) ResetSubmit(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.GetIdentity(r.Context())

	password, target, err := h.authService.ResetPassword(r.Context(), identity.UserID, r.PostFormValue("user_id"))
	if err != nil {
		h.render.Error(w, r, err)
		return
	}

	observability.FromContext(r.Context()).Info("admin reset user password",
		"admin_email", identity.Email,
		"target_email", target.Email,
	)

	h.render.Render(w, r, http.StatusOK, pageResetComplete, &Page{
		Title:       "Password reset",
		Target:      target,
		NewPassword: password,
	})
}
