// Package server is the HTTP surface of Ward: the dashboard and setup API,
// performance and Prometheus endpoints, and the MCP endpoint, plus the
// listener instances the restart coordinator swaps.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jamesprial/ward/internal/metrics"
	"github.com/jamesprial/ward/internal/settings"
	"github.com/jamesprial/ward/internal/setup"
	"github.com/jamesprial/ward/internal/system"
)

// Deps are the collaborators of the router.
type Deps struct {
	Settings *settings.Service
	Setup    *setup.Service
	Monitor  system.Monitor
	Metrics  *metrics.Recorder
	// Gatherer serves /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// MCP serves /mcp; nil disables the endpoint.
	MCP    http.Handler
	Logger zerolog.Logger
}

// NewRouter builds the HTTP handler. Every request first passes the
// reload-on-demand check.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger.With().Str("component", "http").Logger()
	h := &handlers{
		settings: d.Settings,
		setup:    d.Setup,
		monitor:  d.Monitor,
		metrics:  d.Metrics,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(recoverer(d.Settings, logger))
	r.Use(reloadOnDemand(d.Settings))

	r.Get("/", h.index)

	r.Route("/api", func(r chi.Router) {
		r.Post("/setup", h.submitSetup)
		r.Get("/info", h.info)
		r.Get("/usage", h.usage)
		r.Get("/uptime", h.uptime)

		r.Route("/performance", func(r chi.Router) {
			r.Get("/summary", h.performanceSummary)
			r.Get("/metrics", h.performanceMetrics)
			r.Get("/startup-time", h.performanceStartup)
			r.Get("/memory", h.performanceMemory)
		})
	})

	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	if d.MCP != nil {
		r.Handle("/mcp", d.MCP)
	}

	r.NotFound(h.notFound)
	return r
}
