package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions carries the optional parts of the management router.
type RouterOptions struct {
	AllowedOrigins []string
	// Tracking, when set, mounts the public tracking routes on the same mux.
	Tracking interface{ Mount(chi.Router) }
	// Metrics, when set, is served at /metrics.
	Metrics http.Handler
}

// SetupRoutes configures all routes.
func SetupRoutes(h *Handlers, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", OrgHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}
	if opts.Tracking != nil {
		opts.Tracking.Mount(r)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireOrg)

		r.Get("/analytics/campaigns/{id}", h.GetCampaignAnalytics)
		r.Post("/analytics/campaigns/{id}/calculate", h.RecalculateCampaignAnalytics)
		r.Post("/campaigns/{id}/send", h.SendCampaign)
	})

	return r
}
