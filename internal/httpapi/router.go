package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"krafti/internal/db"
	"krafti/internal/telemetry"
)

// Routes constructs the chi router containing all API endpoints.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(telemetry.Middleware(a.config.ServiceName, a.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(a.config.RequestTimeout))

	allowed := a.config.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	if a.config.RateLimit > 0 {
		r.Use(httprate.LimitByIP(a.config.RateLimit, time.Minute))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context(), a.db); err != nil {
			respondError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(a.authenticate)

		r.Post("/security/login", a.handleLogin)
		r.Post("/security/logout", a.handleLogout)
		r.With(a.requireViewer).Get("/user/profile", a.handleProfile)

		r.Route("/web/{entity}", func(r chi.Router) {
			r.Get("/", a.handleList(a.web))
			r.Get("/{id}", a.handleGet(a.web))
		})

		r.Route("/admin/{entity}", func(r chi.Router) {
			r.Use(a.requireViewer, a.requireScope)
			r.Get("/", a.handleList(a.admin))
			r.Post("/", a.handleCreate)
			r.Get("/{id}", a.handleGet(a.admin))
			r.Put("/{id}", a.handleUpdate)
			r.Patch("/{id}", a.handleUpdate)
			r.Delete("/{id}", a.handleDelete)
		})
	})

	return r
}
