package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LightMap-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/LightMap-Intelligence/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and infrastructure the route tree
// needs.  Nil handlers leave their routes unmounted, so a deployment without
// kafka or a dictionary store still serves resolve.
type RouterConfig struct {
	MappingHandler    *handlers.MappingHandler
	DictionaryHandler *handlers.DictionaryHandler
	CoverageHandler   *handlers.CoverageHandler
	HealthHandler     *handlers.HealthHandler

	Logger           logging.Logger
	Metrics          *prometheus.AppMetrics
	MetricsCollector prometheus.MetricsCollector
}

// NewRouter constructs the complete HTTP route tree: global middleware,
// public probes, the metrics endpoint, and the /api/v1 resource groups.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, middleware.DefaultLoggingConfig()))
	}
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.Handle("/metrics", cfg.MetricsCollector.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		registerMappingRoutes(api, cfg.MappingHandler)
		registerDictionaryRoutes(api, cfg.DictionaryHandler)
		registerCoverageRoutes(api, cfg.CoverageHandler)
	})

	return r
}

// registerMappingRoutes mounts the resolution endpoints under /mappings.
func registerMappingRoutes(r chi.Router, h *handlers.MappingHandler) {
	if h == nil {
		return
	}
	r.Route("/mappings", func(mr chi.Router) {
		mr.Post("/resolve", h.Resolve)
		mr.Post("/sessions", h.FinalizeSession)
	})
}

// registerDictionaryRoutes mounts dictionary endpoints under /dictionary.
func registerDictionaryRoutes(r chi.Router, h *handlers.DictionaryHandler) {
	if h == nil {
		return
	}
	r.Route("/dictionary", func(dr chi.Router) {
		dr.Get("/lookup", h.Lookup)
		dr.Get("/stats", h.GetStats)
	})
}

// registerCoverageRoutes mounts the boost endpoint under /coverage.
func registerCoverageRoutes(r chi.Router, h *handlers.CoverageHandler) {
	if h == nil {
		return
	}
	r.Route("/coverage", func(cr chi.Router) {
		cr.Get("/boost", h.Boost)
	})
}
