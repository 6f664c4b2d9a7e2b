package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"hoofprint/internal/domain"
	"hoofprint/internal/middleware"
	"hoofprint/internal/observability"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Page names.
const (
	pageLogin         = "login"
	pageRegister      = "register"
	pageHome          = "home"
	pageCreate        = "create"
	pageView          = "view"
	pageAdmin         = "admin"
	pageResetConfirm  = "reset_confirm"
	pageResetComplete = "reset_complete"
	pageError         = "error"
)

// Page is the data every template renders from. Handlers fill the fields
// their page uses.
type Page struct {
	Title    string
	Identity *domain.Identity
	Success  string
	Error    string
	Form     map[string]string
	Fields   map[string]string

	Users       []*domain.User
	Codes       []*domain.Code
	Code        *domain.Code
	IsOwner     bool
	Sites       []*domain.Site
	Target      *domain.User
	CSRFToken   string
	NewPassword string
}

// Renderer executes the embedded page templates.
type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	names := []string{
		pageLogin, pageRegister, pageHome, pageCreate, pageView,
		pageAdmin, pageResetConfirm, pageResetComplete, pageError,
	}

	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &Renderer{pages: pages}, nil
}

// StaticFS serves the embedded stylesheet and other assets.
func StaticFS() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

// Render writes page with status. The identity of the request is filled in
// when the caller left it empty. Output is buffered so a template failure
// never leaves a half-written page.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, page *Page) {
	if page.Identity == nil {
		page.Identity, _ = middleware.GetIdentity(r.Context())
	}

	tmpl, ok := rd.pages[name]
	if !ok {
		observability.FromContext(r.Context()).Error("unknown template", "name", name)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", page); err != nil {
		observability.FromContext(r.Context()).Error("failed to render template", "name", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
