package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hoofprint/internal/domain"
	"hoofprint/internal/middleware"
	"hoofprint/internal/service"
)

// CodeHandler serves the caller's barcodes and QR codes. Every route sits
// behind RequireLogin.
type CodeHandler struct {
	codeService *service.CodeService
	render      *Renderer
}

func NewCodeHandler(codeService *service.CodeService, render *Renderer) *CodeHandler {
	return &CodeHandler{
		codeService: codeService,
		render:      render,
	}
}

func (h *CodeHandler) Home(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.GetIdentity(r.Context())

	codes, err := h.codeService.ListForUser(r.Context(), identity.UserID)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, pageHome, &Page{Title: "My codes", Codes: codes})
}

func (h *CodeHandler) CreatePage(w http.ResponseWriter, r *http.Request) {
	sites, err := h.codeService.ListSites(r.Context())
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, pageCreate, &Page{
		Title: "Add code",
		Sites: sites,
		Form:  map[string]string{"type": domain.CodeTypeBarcode, "site_id": domain.DefaultSiteID},
	})
}

func (h *CodeHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.GetIdentity(r.Context())
	if !parseForm(w, r) {
		h.render.Error(w, r, malformedForm())
		return
	}

	in := codeInput(r)
	code, err := h.codeService.Create(r.Context(), identity.UserID, in)
	if v, ok := domain.IsValidationError(err); ok {
		h.renderInvalid(w, r, "Add code", nil, in, v)
		return
	}
	if err != nil {
		h.render.Error(w, r, err)
		return
	}

	http.Redirect(w, r, "/view/"+code.ID, http.StatusSeeOther)
}

// EditPage shows the code form pre-filled. Only the owner may open it.
func (h *CodeHandler) EditPage(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.GetIdentity(r.Context())

	code, err := h.codeService.GetOwned(r.Context(), identity.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	sites, err := h.codeService.ListSites(r.Context())
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, pageCreate, &Page{
		Title: "Edit code",
		Code:  code,
		Sites: sites,
		Form:  map[string]string{"type": code.Type, "value": code.Value, "site_id": code.SiteID, "name": code.Name},
	})
}

func (h *CodeHandler) Edit(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.GetIdentity(r.Context())
	if !parseForm(w, r) {
		h.render.Error(w, r, malformedForm())
		return
	}

	in := codeInput(r)
	code, err := h.codeService.Update(r.Context(), identity.UserID, chi.URLParam(r, "id"), in)
	if v, ok := domain.IsValidationError(err); ok {
		h.renderInvalid(w, r, "Edit code", &domain.Code{ID: chi.URLParam(r, "id")}, in, v)
		return
	}
	if err != nil {
		h.render.Error(w, r, err)
		return
	}

	http.Redirect(w, r, "/view/"+code.ID, http.StatusSeeOther)
}

// renderInvalid re-renders the code form with the submitted values and
// field errors. code is nil when creating.
func (h *CodeHandler) renderInvalid(w http.ResponseWriter, r *http.Request, title string, code *domain.Code, in service.CodeInput, v *domain.ValidationError) {
	sites, err := h.codeService.ListSites(r.Context())
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusBadRequest, pageCreate, &Page{
		Title:  title,
		Code:   code,
		Sites:  sites,
		Fields: v.Fields,
		Form:   map[string]string{"type": in.Type, "value": in.Value, "site_id": in.SiteID, "name": in.Name},
	})
}

func codeInput(r *http.Request) service.CodeInput {
	return service.CodeInput{
		Type:   r.PostFormValue("type"),
		Value:  r.PostFormValue("value"),
		SiteID: r.PostFormValue("site_id"),
		Name:   r.PostFormValue("name"),
	}
}

// View shows a code to any authenticated user; only the owner gets the
// delete button.
func (h *CodeHandler) View(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.GetIdentity(r.Context())

	code, err := h.codeService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, pageView, &Page{
		Title:   "Code",
		Code:    code,
		IsOwner: code.UserID == identity.UserID,
	})
}

func (h *CodeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.GetIdentity(r.Context())

	if err := h.codeService.Delete(r.Context(), identity.UserID, chi.URLParam(r, "id")); err != nil {
		h.render.Error(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
