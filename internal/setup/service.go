package setup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jamesprial/ward/internal/audit"
	"github.com/jamesprial/ward/internal/metrics"
	"github.com/jamesprial/ward/internal/settings"
)

// SuccessMessage is returned to the client after a successful submission.
const SuccessMessage = "Settings saved correctly"

// Submission results recorded in metrics.
const (
	resultSaved    = "saved"
	resultRejected = "rejected"
	resultInvalid  = "invalid"
	resultFailed   = "failed"
)

// Response is the body returned for a successful submission.
type Response struct {
	Message string `json:"message"`
}

// Service accepts the setup form. Only the first submission is accepted.
type Service struct {
	settings *settings.Service
	logger   zerolog.Logger
	metrics  *metrics.Recorder
	audit    *audit.Logger

	// mu serialises submissions so only one can pass the configured check.
	mu sync.Mutex
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l.With().Str("component", "setup").Logger() }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithAudit sets the audit logger.
func WithAudit(a *audit.Logger) ServiceOption {
	return func(s *Service) { s.audit = a }
}

// NewService returns a Service writing through svc.
func NewService(svc *settings.Service, opts ...ServiceOption) *Service {
	s := &Service{settings: svc, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates and persists form, then applies it. The listener is
// restarted only when the submitted port differs from the bound one;
// otherwise the configuration is reloaded in place.
//
// Submit fails with settings.ErrAlreadyConfigured once the application is
// configured, including when a setup file exists that has not been loaded
// yet. Validation failures match settings.ErrInvalidRecord and write
// failures are *store.IOError.
func (s *Service) Submit(ctx context.Context, form settings.Form) (Response, error) {
	start := time.Now()
	params := formParams(form)

	s.mu.Lock()
	resp, result, err := s.submit(ctx, form)
	s.mu.Unlock()
	s.metrics.ObserveSetup(result)
	s.audit.Record("setup_submit", params, audit.ResultOf(err), start)
	if err != nil {
		ev := s.logger.Warn()
		if result == resultFailed {
			ev = s.logger.Error()
		}
		ev.Err(err).Str("result", result).Msg("setup submission not applied")
		return Response{}, err
	}
	s.logger.Info().Str("serverName", form.ServerName).Str("port", form.Port).Msg("setup saved")
	return resp, nil
}

func (s *Service) submit(ctx context.Context, form settings.Form) (Response, string, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, resultFailed, err
	}
	if s.settings.IsConfigured() {
		return Response{}, resultRejected, settings.ErrAlreadyConfigured
	}
	st := s.settings.Store()
	if st.Exists() {
		// The file is there but was never loaded; load it instead of
		// overwriting it.
		s.settings.ReloadIfStale()
		return Response{}, resultRejected, settings.ErrAlreadyConfigured
	}

	rec, err := settings.ParseForm(form)
	if err != nil {
		return Response{}, resultInvalid, err
	}

	if err := st.WriteAll(rec.KeyValues()); err != nil {
		return Response{}, resultFailed, fmt.Errorf("save setup: %w", err)
	}
	if err := s.settings.Reload(); err != nil {
		return Response{}, resultFailed, fmt.Errorf("apply setup: %w", err)
	}
	return Response{Message: SuccessMessage}, resultSaved, nil
}

func formParams(f settings.Form) map[string]any {
	return map[string]any{
		settings.KeyServerName:      f.ServerName,
		settings.KeyTheme:           f.Theme,
		settings.KeyPort:            f.Port,
		settings.KeyEnableFog:       f.EnableFog,
		settings.KeyBackgroundColor: f.BackgroundColor,
	}
}
