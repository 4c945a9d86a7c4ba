// Package setup performs the one-time configuration of Ward: from environment
// variables at process start, or from the setup form at runtime.
package setup

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jamesprial/ward/internal/audit"
	"github.com/jamesprial/ward/internal/settings"
	"github.com/jamesprial/ward/internal/state"
	"github.com/jamesprial/ward/internal/store"
)

// Environment variables read by Bootstrap. Any one of them being set
// triggers bootstrap.
const (
	EnvName       = "WARD_NAME"
	EnvTheme      = "WARD_THEME"
	EnvPort       = "WARD_PORT"
	EnvFog        = "WARD_FOG"
	EnvBackground = "WARD_BACKGROUND"
)

// EnvVars lists the bootstrap variables in record order.
var EnvVars = []string{EnvName, EnvTheme, EnvPort, EnvFog, EnvBackground}

// ReasonBootstrap is the restart reason requested after bootstrap.
const ReasonBootstrap = "bootstrap"

// Restarter schedules a listener restart without blocking.
type Restarter interface {
	Restart(reason string)
}

// LookupFunc reports the value of an environment variable and whether it is
// set. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Bootstrap writes the setup file from WARD_* environment variables.
type Bootstrap struct {
	store     *store.Store
	tracker   *state.Tracker
	restarter Restarter
	lookup    LookupFunc
	logger    zerolog.Logger
	audit     *audit.Logger
}

// BootstrapOption configures a Bootstrap.
type BootstrapOption func(*Bootstrap)

// WithLookup replaces os.LookupEnv.
func WithLookup(fn LookupFunc) BootstrapOption {
	return func(b *Bootstrap) {
		if fn != nil {
			b.lookup = fn
		}
	}
}

// WithBootstrapLogger sets the logger.
func WithBootstrapLogger(l zerolog.Logger) BootstrapOption {
	return func(b *Bootstrap) { b.logger = l.With().Str("component", "bootstrap").Logger() }
}

// WithBootstrapAudit sets the audit logger.
func WithBootstrapAudit(a *audit.Logger) BootstrapOption {
	return func(b *Bootstrap) { b.audit = a }
}

// NewBootstrap returns a Bootstrap. restarter may be nil.
func NewBootstrap(st *store.Store, tracker *state.Tracker, restarter Restarter, opts ...BootstrapOption) *Bootstrap {
	b := &Bootstrap{
		store:     st,
		tracker:   tracker,
		restarter: restarter,
		lookup:    os.LookupEnv,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Present reports whether any bootstrap variable is set.
func (b *Bootstrap) Present() bool {
	for _, key := range EnvVars {
		if _, ok := b.lookup(key); ok {
			return true
		}
	}
	return false
}

// Record builds the configuration described by the environment. Absent
// variables take their default; the theme is lowercased.
func (b *Bootstrap) Record() (settings.Record, error) {
	def := settings.DefaultRecord()
	form := def.Form()
	if v, ok := b.lookup(EnvName); ok {
		form.ServerName = v
	}
	if v, ok := b.lookup(EnvTheme); ok {
		form.Theme = strings.ToLower(v)
	}
	if v, ok := b.lookup(EnvPort); ok {
		form.Port = v
	}
	if v, ok := b.lookup(EnvFog); ok {
		form.EnableFog = v
	}
	if v, ok := b.lookup(EnvBackground); ok {
		form.BackgroundColor = v
	}
	return settings.ParseForm(form)
}

// Run bootstraps from the environment. With no variable set it does nothing
// and returns false. Otherwise the environment record replaces any existing
// setup file, the tracker is marked Configured and a restart is requested.
// An invalid environment aborts before the existing file is touched.
func (b *Bootstrap) Run(ctx context.Context) (bool, error) {
	if !b.Present() {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	start := time.Now()

	rec, err := b.Record()
	if err != nil {
		b.audit.Record("bootstrap", nil, audit.ResultOf(err), start)
		return false, fmt.Errorf("bootstrap from environment: %w", err)
	}

	if b.store.Exists() {
		b.logger.Info().Str("path", b.store.Path()).Msg("environment overrides existing setup file")
		b.tracker.Reset()
		if err := b.store.Delete(); err != nil {
			b.audit.Record("bootstrap", recordParams(rec), audit.ResultOf(err), start)
			return false, fmt.Errorf("bootstrap from environment: %w", err)
		}
	}

	if err := b.store.WriteAll(rec.KeyValues()); err != nil {
		b.audit.Record("bootstrap", recordParams(rec), audit.ResultOf(err), start)
		return false, fmt.Errorf("bootstrap from environment: %w", err)
	}
	b.tracker.MarkConfigured()

	b.logger.Info().
		Str("serverName", rec.ServerName).
		Str("theme", string(rec.Theme)).
		Int("port", rec.Port).
		Msg("configured from environment")
	b.audit.Record("bootstrap", recordParams(rec), audit.ResultSuccess, start)

	if b.restarter != nil {
		b.restarter.Restart(ReasonBootstrap)
	}
	return true, nil
}

func recordParams(rec settings.Record) map[string]any {
	return map[string]any{
		settings.KeyServerName:      rec.ServerName,
		settings.KeyTheme:           string(rec.Theme),
		settings.KeyPort:            strconv.Itoa(rec.Port),
		settings.KeyEnableFog:       strconv.FormatBool(rec.EnableFog),
		settings.KeyBackgroundColor: rec.BackgroundColor,
	}
}
