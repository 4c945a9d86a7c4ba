package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/jamesprial/ward/internal/metrics"
	"github.com/jamesprial/ward/internal/settings"
	"github.com/jamesprial/ward/internal/setup"
	"github.com/jamesprial/ward/internal/system"
)

const maxSetupBody = 4 << 10

type handlers struct {
	settings *settings.Service
	setup    *setup.Service
	monitor  system.Monitor
	metrics  *metrics.Recorder
	logger   zerolog.Logger
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	if !h.settings.IsConfigured() {
		writeJSON(w, http.StatusOK, SetupPage{View: ViewSetup})
		return
	}
	if err := h.settings.EnsureDefaults(); err != nil {
		h.logger.Warn().Err(err).Msg("could not backfill setup defaults")
	}

	info, err := h.monitor.Info(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	uptime, err := h.monitor.Uptime(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	rec := h.settings.Snapshot()
	writeJSON(w, http.StatusOK, DashboardPage{
		View:            ViewIndex,
		Theme:           rec.Theme,
		ServerName:      rec.ServerName,
		EnableFog:       rec.EnableFog,
		BackgroundColor: rec.BackgroundColor,
		Info:            info,
		Uptime:          uptime,
		Version:         Version,
	})
}

func (h *handlers) submitSetup(w http.ResponseWriter, r *http.Request) {
	var form settings.Form
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSetupBody))
	if err := dec.Decode(&form); err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	resp, err := h.setup.Submit(r.Context(), form)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) info(w http.ResponseWriter, r *http.Request) {
	if !h.settings.IsConfigured() {
		writeError(w, h.logger, settings.ErrNotConfigured)
		return
	}
	info, err := h.monitor.Info(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *handlers) usage(w http.ResponseWriter, r *http.Request) {
	if !h.settings.IsConfigured() {
		writeError(w, h.logger, settings.ErrNotConfigured)
		return
	}
	usage, err := h.monitor.Usage(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

func (h *handlers) uptime(w http.ResponseWriter, r *http.Request) {
	uptime, err := h.monitor.Uptime(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, uptime)
}

func (h *handlers) performanceSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"startupTime": h.metrics.FormattedStartupTime(),
		"summary":     h.metrics.Summary(),
	})
}

func (h *handlers) performanceMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.Timings())
}

func (h *handlers) performanceStartup(w http.ResponseWriter, r *http.Request) {
	ms := int64(-1)
	if d := h.metrics.StartupTime(); d >= 0 {
		ms = d.Milliseconds()
	}
	writeJSON(w, http.StatusOK, map[string]int64{"startupTimeMs": ms})
}

func (h *handlers) performanceMemory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.Memory())
}

func (h *handlers) notFound(w http.ResponseWriter, r *http.Request) {
	if !h.settings.IsConfigured() {
		writeJSON(w, http.StatusNotFound, SetupPage{View: ViewSetup})
		return
	}
	writeJSON(w, http.StatusNotFound, ErrorPage{View: ViewNotFound, Theme: h.settings.Theme()})
}
