package settings

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jamesprial/ward/internal/metrics"
	"github.com/jamesprial/ward/internal/state"
	"github.com/jamesprial/ward/internal/store"
)

// ReasonPortChange is the restart reason used when a new port is applied.
const ReasonPortChange = "port_change"

// PortSource reports the port the listener is bound to, or 0 when no
// listener is serving yet.
type PortSource interface {
	BoundPort() int
}

// Restarter schedules a listener restart. Restart must not block.
type Restarter interface {
	Restart(reason string)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for load and reload diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l.With().Str("component", "settings").Logger() }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

// Service is the only writer of the active configuration. It is safe for
// concurrent use.
type Service struct {
	store     *store.Store
	tracker   *state.Tracker
	ports     PortSource
	restarter Restarter
	logger    zerolog.Logger
	metrics   *metrics.Recorder

	// reloadMu serialises reload-on-demand so concurrent requests reload once.
	reloadMu sync.Mutex

	mu     sync.RWMutex
	values map[string]string
	port   int
}

// NewService returns a Service over st. ports and restarter may be nil, in
// which case no listener is considered bound and no restart is ever
// requested.
func NewService(st *store.Store, tracker *state.Tracker, ports PortSource, restarter Restarter, opts ...Option) *Service {
	s := &Service{
		store:     st,
		tracker:   tracker,
		ports:     ports,
		restarter: restarter,
		logger:    zerolog.Nop(),
		values:    make(map[string]string),
		port:      InitialPort,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load copies every key present in the store into the active configuration.
// Absent keys keep their current value. A missing store is logged and is not
// an error. If the stored port differs from the bound port a restart is
// requested.
func (s *Service) Load() error {
	return s.load(false, true)
}

// load reads the store and swaps the result into the active configuration
// in one step. With replace, keys absent from the store are dropped and the
// port falls back to InitialPort. A store that cannot be read leaves the
// active configuration untouched.
func (s *Service) load(replace, allowRestart bool) error {
	stored := map[string]string{}
	if s.store.Exists() {
		var err error
		if stored, err = s.store.ReadAll(); err != nil {
			s.logger.Error().Err(err).Msg("failed to load configuration, keeping active values")
			return fmt.Errorf("load configuration: %w", err)
		}
	} else {
		s.logger.Warn().Str("path", s.store.Path()).Msg("setup file does not exist")
		if !replace {
			return nil
		}
	}

	s.mu.Lock()
	values, port := make(map[string]string, len(Keys)), InitialPort
	if !replace {
		for k, v := range s.values {
			values[k] = v
		}
		port = s.port
	}
	for _, key := range Keys {
		if v, ok := stored[key]; ok && key != KeyPort {
			values[key] = v
		}
	}
	raw, hasPort := stored[KeyPort]
	var portErr error
	if hasPort {
		var p int
		if p, portErr = ParsePort(raw); portErr == nil {
			port = p
			values[KeyPort] = strconv.Itoa(p)
		}
	}
	s.values, s.port = values, port
	s.mu.Unlock()

	switch {
	case portErr != nil:
		s.logger.Warn().Err(portErr).Msg("ignoring stored port")
	case hasPort:
		s.checkBound(port, allowRestart)
	}

	s.logger.Info().Str("path", s.store.Path()).Msg("configuration loaded")
	return nil
}

// ApplyPort sets the intended listening port. An unparsable or out-of-range
// value returns a *PortError and leaves the active port unchanged. When a
// listener is bound to a different port a restart is requested and true is
// returned.
func (s *Service) ApplyPort(raw string) (bool, error) {
	port, err := ParsePort(raw)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	s.port = port
	s.values[KeyPort] = strconv.Itoa(port)
	s.mu.Unlock()

	return s.checkBound(port, true), nil
}

// checkBound reports whether port differs from the bound listener and, when
// allowed, requests the restart that moves it.
func (s *Service) checkBound(port int, allowRestart bool) bool {
	bound := 0
	if s.ports != nil {
		bound = s.ports.BoundPort()
	}
	if bound == 0 || bound == port {
		return false
	}

	s.logger.Info().Int("from", bound).Int("to", port).Msg("port changed, restart required")
	if allowRestart && s.restarter != nil {
		s.restarter.Restart(ReasonPortChange)
	}
	return true
}

// Reload replaces the active configuration with the store contents and marks
// the application configured. On a read failure the active configuration is
// kept.
func (s *Service) Reload() error {
	err := s.load(true, true)
	s.metrics.ObserveReload(err)
	if err != nil {
		return err
	}
	s.tracker.MarkConfigured()
	s.metrics.SetConfigured(true)
	s.logger.Info().Msg("configuration reloaded")
	return nil
}

// Resync brings the tracker and the active configuration in line with the
// store without requesting a restart. The listener builder calls it while a
// restart is already in progress. A missing store resets the tracker.
func (s *Service) Resync() error {
	if !s.store.Exists() {
		s.clear()
		if s.tracker.IsConfigured() {
			s.logger.Warn().Str("path", s.store.Path()).Msg("setup file removed, returning to setup")
		}
		s.tracker.Reset()
		s.metrics.SetConfigured(false)
		return nil
	}
	if err := s.load(true, false); err != nil {
		return err
	}
	s.tracker.MarkConfigured()
	s.metrics.SetConfigured(true)
	return nil
}

// ReloadIfStale reloads when the store exists but the tracker still reports
// Unconfigured. Failures are logged and the current configuration is kept.
// It reports whether a reload happened.
func (s *Service) ReloadIfStale() bool {
	if s.tracker.IsConfigured() || !s.store.Exists() {
		return false
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	if s.tracker.IsConfigured() {
		return false
	}

	s.logger.Info().Msg("setup file present but not loaded, reloading")
	if err := s.Reload(); err != nil {
		s.logger.Error().Err(err).Msg("reload on demand failed")
		return false
	}
	return true
}

// EnsureDefaults writes enableFog and backgroundColor into a configured store
// that predates them.
func (s *Service) EnsureDefaults() error {
	if !s.tracker.IsConfigured() {
		return nil
	}
	stored, err := s.store.ReadAll()
	if err != nil {
		return fmt.Errorf("read setup defaults: %w", err)
	}

	var missing []store.KeyValue
	if _, ok := stored[KeyEnableFog]; !ok {
		missing = append(missing, store.KeyValue{Key: KeyEnableFog, Value: strconv.FormatBool(DefaultEnableFog)})
	}
	if _, ok := stored[KeyBackgroundColor]; !ok {
		missing = append(missing, store.KeyValue{Key: KeyBackgroundColor, Value: LegacyBackgroundColor})
	}
	if len(missing) == 0 {
		return nil
	}
	if err := s.store.WriteAll(missing); err != nil {
		return fmt.Errorf("write setup defaults: %w", err)
	}

	s.mu.Lock()
	for _, kv := range missing {
		s.values[kv.Key] = kv.Value
	}
	s.mu.Unlock()
	return nil
}

// Value returns the active value of key, or false when the store did not
// provide one.
func (s *Service) Value(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Values returns a copy of every active value.
func (s *Service) Values() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Loaded reports whether any value has been loaded.
func (s *Service) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values) > 0
}

// Snapshot returns the active configuration with defaults for absent or
// unusable values.
func (s *Service) Snapshot() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := DefaultRecord()
	rec.Port = s.port
	if v, ok := s.values[KeyServerName]; ok && validateServerName(v) == nil {
		rec.ServerName = v
	}
	if v, ok := s.values[KeyTheme]; ok && validateTheme(Theme(v)) == nil {
		rec.Theme = Theme(v)
	}
	if v, ok := s.values[KeyEnableFog]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			rec.EnableFog = b
		}
	}
	if v, ok := s.values[KeyBackgroundColor]; ok && validateBackground(v) == nil {
		rec.BackgroundColor = v
	}
	return rec
}

// Theme returns the active theme.
func (s *Service) Theme() Theme { return s.Snapshot().Theme }

// ListenPort returns the port a new listener should bind: the configured port
// once the application is configured, InitialPort before that.
func (s *Service) ListenPort() int {
	if !s.tracker.IsConfigured() {
		return InitialPort
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.port
}

// IsConfigured reports the tracker state.
func (s *Service) IsConfigured() bool { return s.tracker.IsConfigured() }

// Store returns the backing store.
func (s *Service) Store() *store.Store { return s.store }

func (s *Service) clear() {
	s.mu.Lock()
	s.values = make(map[string]string)
	s.port = InitialPort
	s.mu.Unlock()
}
