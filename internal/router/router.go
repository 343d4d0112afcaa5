package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appMiddleware "github.com/pagetrail/bookshop-directory/app/middleware"
	"github.com/pagetrail/bookshop-directory/internal/api/auth"
	"github.com/pagetrail/bookshop-directory/internal/api/bookshop"
	"github.com/pagetrail/bookshop-directory/internal/api/directory"
	"github.com/pagetrail/bookshop-directory/internal/api/event"
	"github.com/pagetrail/bookshop-directory/internal/api/feature"
)

// Config carries the handlers and middleware the router wires together.
// Server-wide middleware (request id, logger, recoverer) is applied by
// main before mounting this router.
type Config struct {
	AuthHandler            *auth.Handler
	BookshopHandler        *bookshop.Handler
	DirectoryHandler       *directory.Handler
	EventHandler           *event.Handler
	FeatureHandler         *feature.Handler
	MetaInjector           *appMiddleware.MetaInjector
	RateLimiter            *appMiddleware.RateLimiter
	AuthenticateMiddleware func(http.Handler) http.Handler
}

// SetupRouter wires the public API, the admin API and the SEO shell.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	// Detail pages get per-shop meta tags injected into the shell.
	if cfg.MetaInjector != nil {
		r.Get("/shops/{slug}", cfg.MetaInjector.ServeHTTP)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware)
		}

		// Public routes.
		r.Group(func(r chi.Router) {
			r.Get("/bookshops", cfg.DirectoryHandler.ListBookshops)
			r.Get("/bookshops/{idOrSlug}", cfg.BookshopHandler.GetBookshop)
			r.Get("/bookshops/{id}/events", cfg.EventHandler.GetBookshopEvents)
			r.Get("/events/upcoming", cfg.EventHandler.GetUpcomingEvents)
			r.Get("/features", cfg.FeatureHandler.GetFeatures)

			r.Get("/directory/markers", cfg.DirectoryHandler.GetMarkers)
			r.Get("/directory/markers/{clusterID}/expand", cfg.DirectoryHandler.ExpandCluster)
			r.Get("/directory/fit", cfg.DirectoryHandler.FitViewport)

			r.Post("/auth/login", cfg.AuthHandler.Login)
			r.Post("/auth/refresh", cfg.AuthHandler.Refresh)
		})

		// Admin routes.
		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)

			r.Post("/auth/logout", cfg.AuthHandler.Logout)

			r.Post("/bookshops", cfg.BookshopHandler.CreateBookshop)
			r.Post("/bookshops/import", cfg.BookshopHandler.ImportBookshops)
			r.Put("/bookshops/{id}", cfg.BookshopHandler.UpdateBookshop)
			r.Delete("/bookshops/{id}", cfg.BookshopHandler.DeleteBookshop)
			r.Delete("/bookshops/{id}/purge", cfg.BookshopHandler.PurgeBookshop)

			r.Post("/bookshops/{id}/events", cfg.EventHandler.CreateEvent)
		})
	})

	return r
}
