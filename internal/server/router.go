// Package server assembles the HTTP routes and their middleware chains.
package server

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hoofprint/internal/domain"
	"hoofprint/internal/handler"
	"hoofprint/internal/middleware"
	"hoofprint/internal/security"
	"hoofprint/internal/service"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	DB           *sql.DB
	Auth         *service.AuthService
	Codes        *service.CodeService
	Tokens       *security.TokenManager
	Renderer     *handler.Renderer
	LoginLimiter *middleware.RateLimiter

	// ReadyChecks are pinged by /health/ready next to the database.
	ReadyChecks map[string]handler.Pinger

	// StaticOrigins may fetch /static assets cross-origin.
	StaticOrigins []string

	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
}

// NewRouter builds the application handler.
//
// Every page route resolves the caller once in Authenticate; RequireLogin
// and RequireGroup then gate on the identity it stored.
func NewRouter(d Deps) http.Handler {
	rd := d.Renderer
	authHandler := handler.NewAuthHandler(d.Auth, rd, d.SecureCookies)
	codeHandler := handler.NewCodeHandler(d.Codes, rd)
	adminHandler := handler.NewAdminHandler(d.Auth, d.Tokens, rd)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestContext())
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger())
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.Metrics())

	r.Get("/health", handler.Health)
	r.Get("/health/ready", handler.Ready(d.DB, d.ReadyChecks))
	r.Handle("/metrics", promhttp.Handler())

	r.With(middleware.StaticCache(), middleware.CORS(d.StaticOrigins)).
		Handle("/static/*", http.StripPrefix("/static/", http.FileServer(handler.StaticFS())))

	r.NotFound(rd.NotFound)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(d.Auth, d.SecureCookies, rd.Error))

		r.Get("/login", authHandler.LoginPage)
		r.Get("/register", authHandler.RegisterPage)
		r.Get("/logout", authHandler.Logout)
		r.Post("/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			if d.LoginLimiter != nil {
				r.Use(d.LoginLimiter.Middleware())
			}
			r.Post("/login", authHandler.Login)
			r.Post("/register", authHandler.Register)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireLogin(rd.Error))

			r.Get("/", codeHandler.Home)
			r.Get("/create", codeHandler.CreatePage)
			r.Post("/create", codeHandler.Create)
			r.Get("/view/{id}", codeHandler.View)
			r.Get("/edit/{id}", codeHandler.EditPage)
			r.Post("/edit/{id}", codeHandler.Edit)
			r.Post("/delete/{id}", codeHandler.Delete)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireGroup(domain.GroupAdmin, rd.Error))
			r.Use(middleware.NoStore())
			r.Use(middleware.LimitBody(middleware.MaxFormBytes))

			r.Get("/", adminHandler.Dashboard)
			r.Get("/password-reset", adminHandler.ResetConfirm)
			r.With(middleware.CSRF(d.Tokens, middleware.FormValueScope("user_id"), rd.Error)).
				Post("/password-reset", adminHandler.ResetSubmit)
		})
	})

	return r
}
