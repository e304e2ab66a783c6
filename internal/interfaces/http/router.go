// Package http assembles the REST surface: routing, middleware, and the
// server lifecycle.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/propsage/compval/internal/interfaces/http/handlers"
	"github.com/propsage/compval/internal/interfaces/http/middleware"
	"github.com/propsage/compval/internal/infrastructure/monitoring/logging"
	"github.com/propsage/compval/internal/infrastructure/monitoring/prometheus"
)

// RouterConfig wires handlers and cross-cutting concerns into the chi
// router. Nil handlers leave their routes unregistered; nil middleware
// inputs fall back to sensible defaults or are skipped.
type RouterConfig struct {
	ValuationHandler  *handlers.ValuationHandler
	ComparableHandler *handlers.ComparableHandler
	HealthHandler     *handlers.HealthHandler

	Logger  logging.Logger
	Metrics *prometheus.AppMetrics

	// MetricsHandler serves GET /metrics. Usually the collector's
	// prometheus handler.
	MetricsHandler http.Handler

	// RateLimiter throttles the /api/v1 group when set.
	RateLimiter middleware.RateLimiter

	CORS    *middleware.CORSConfig
	Logging *middleware.LoggingConfig
}

// NewRouter builds the complete route tree.
func NewRouter(cfg RouterConfig) chi.Router {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}

	logCfg := middleware.DefaultLoggingConfig()
	if cfg.Logging != nil {
		logCfg = *cfg.Logging
	}
	r.Use(middleware.RequestLogging(cfg.Logger, logCfg))

	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	// Probe endpoints stay outside the API group: no rate limiting, no
	// versioning, minimal middleware.
	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.RateLimiter != nil {
			api.Use(middleware.RateLimit(cfg.RateLimiter, middleware.DefaultRateLimitConfig()))
		}
		registerValuationRoutes(api, cfg.ValuationHandler)
		registerComparableRoutes(api, cfg.ComparableHandler)
	})

	return r
}

func registerValuationRoutes(r chi.Router, h *handlers.ValuationHandler) {
	if h == nil {
		return
	}
	r.Post("/valuations", h.Create)
	r.Post("/valuations/async", h.CreateAsync)
	r.Get("/valuations/confidence-levels", h.ConfidenceLevels)
}

func registerComparableRoutes(r chi.Router, h *handlers.ComparableHandler) {
	if h == nil {
		return
	}
	r.Get("/comparables", h.Search)
	r.Post("/comparables", h.Create)
	r.Get("/neighborhoods/{name}/stats", h.NeighborhoodStats)
}
