// Package api wires the runair HTTP routes.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/runair/runair/internal/api/handler"
	"github.com/runair/runair/internal/api/middleware"
)

// RouterConfig holds the router dependencies.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Metrics   *middleware.Metrics

	Queries handler.LocationQuerier

	// Admin serves the manual triggers. Nil leaves the admin routes unmounted.
	Admin *handler.AdminHandler
	// Tokens authorises admin requests. Nil rejects every admin request.
	Tokens middleware.TokenAuthorizer

	Checks    []handler.Check
	Providers handler.ProviderHealth

	RequireTLS bool
}

// NewRouter builds the chi router with the full middleware chain.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	ops := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Checks:    cfg.Checks,
		Providers: cfg.Providers,
	})
	locations := handler.NewLocationHandler(cfg.Queries, cfg.Logger)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", ops.HealthCheck)
			r.Get("/ready", ops.ReadinessCheck)
			r.Get("/status", ops.SystemStatus)
		})

		r.Route("/locations", func(r chi.Router) {
			// Browsing may refresh a whole page upstream.
			r.With(middleware.RateLimitByIP(middleware.BrowseRateLimit)).Get("/", locations.Browse)

			r.Route("/{locationId}", func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(middleware.StandardRateLimit))
				r.Get("/", locations.Details)
				r.Get("/summary", locations.Summary)
				r.Get("/condition", locations.Condition)
			})
		})

		r.With(middleware.RateLimitByIP(middleware.StandardRateLimit)).Get("/catalog", locations.Catalog)

		if cfg.Admin != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.AdminAuth(cfg.Tokens))
				r.Use(middleware.RateLimitBySubject(middleware.AdminRateLimit))
				r.Post("/locations/{locationId}/refresh", cfg.Admin.RefreshLocation)
				r.Post("/ingestion:run", cfg.Admin.RunIngestion)
			})
		}
	})

	return r
}
