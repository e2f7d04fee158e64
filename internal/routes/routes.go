package routes

import (
	"net/http"

	"github.com/blandib/spiritual-journal-api/internal/apperr"
	"github.com/blandib/spiritual-journal-api/internal/handlers"
	"github.com/blandib/spiritual-journal-api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/blandib/spiritual-journal-api/docs" // registers the swagger spec
)

// LoginPaths are the routes the login rate limiter applies to.
var LoginPaths = []string{"/auth/login", "/auth/google/callback"}

// Deps is everything the routes need. Nil handlers leave their family unmounted.
type Deps struct {
	Users      *handlers.Users
	Entries    *handlers.Entries
	Comments   *handlers.Comments
	Categories *handlers.Categories
	Auth       *handlers.Auth
	DB         handlers.Pinger
	Errors     handlers.Errors
}

// resource is the five-operation surface every CRUD handler exposes.
type resource interface {
	List(http.ResponseWriter, *http.Request)
	Get(http.ResponseWriter, *http.Request)
	Create(http.ResponseWriter, *http.Request)
	Update(http.ResponseWriter, *http.Request)
	Delete(http.ResponseWriter, *http.Request)
}

func mountResource(r chi.Router, h resource, errs handlers.Errors, extra func(r chi.Router)) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Use(middleware.ValidateObjectID("id", errs))
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
		if extra != nil {
			extra(r)
		}
	})
}

func SetupRoutes(r chi.Router, d Deps) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api-docs/index.html", http.StatusFound)
	})
	r.Get("/success.html", successPage)

	r.Get("/health", handlers.Health(d.DB))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api-docs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api-docs/index.html", http.StatusMovedPermanently)
	})
	r.Get("/api-docs/*", httpSwagger.Handler(
		httpSwagger.URL("/api-docs/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
	))

	if d.Users != nil {
		r.Route("/users", func(r chi.Router) {
			mountResource(r, d.Users, d.Errors, func(r chi.Router) {
				r.Post("/avatar", d.Users.UploadAvatar)
			})
		})
	}
	if d.Entries != nil {
		r.Route("/entries", func(r chi.Router) { mountResource(r, d.Entries, d.Errors, nil) })
	}
	if d.Comments != nil {
		r.Route("/comments", func(r chi.Router) { mountResource(r, d.Comments, d.Errors, nil) })
	}
	if d.Categories != nil {
		r.Route("/categories", func(r chi.Router) { mountResource(r, d.Categories, d.Errors, nil) })
	}

	if d.Auth != nil {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/google", d.Auth.Login)
			r.Get("/google/callback", d.Auth.Callback)
			r.Post("/login", d.Auth.PasswordLogin)
			r.Get("/logout", d.Auth.Logout)
			r.Get("/me", d.Auth.Me)
		})
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		d.Errors.Fail(w, r, handlers.RouteNotFound(r))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		d.Errors.Fail(w, r, &apperr.MethodNotAllowedError{Method: r.Method, Path: r.URL.Path})
	})
}

const successHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Signed in</title></head>
<body>
<h1>You are signed in</h1>
<p>You can close this window and return to your journal.</p>
<p><a href="/auth/me">View your profile</a> · <a href="/auth/logout">Log out</a></p>
</body>
</html>
`

func successPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(successHTML))
}
