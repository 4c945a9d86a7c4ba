package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/jamesprial/ward/internal/restart"
	"github.com/jamesprial/ward/internal/settings"
)

// Builder creates listener instances for the restart coordinator.
type Builder struct {
	Settings *settings.Service
	Handler  http.Handler
	Host     string
	Options  InstanceOptions
	Logger   zerolog.Logger
}

// Build brings the active configuration in line with the setup file, then
// returns an unbound instance on the resulting port. Resync never requests
// a restart, so building cannot schedule another build.
func (b *Builder) Build(ctx context.Context) (restart.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.Settings.Resync(); err != nil {
		return nil, fmt.Errorf("resync settings: %w", err)
	}
	port := b.Settings.ListenPort()
	b.Logger.Debug().Int("port", port).Msg("building listener")
	return NewInstance(b.Host, port, b.Handler, b.Options), nil
}
