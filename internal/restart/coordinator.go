// Package restart supervises the HTTP listener and replaces it when the
// configuration requires a different one.
package restart

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/jamesprial/ward/internal/audit"
	"github.com/jamesprial/ward/internal/metrics"
)

// DefaultShutdownTimeout bounds the graceful shutdown of a replaced listener.
const DefaultShutdownTimeout = 15 * time.Second

// Instance is one listener generation.
type Instance interface {
	// Port is the TCP port the instance binds.
	Port() int
	// Listen binds the port. Calling it on a bound instance is a no-op.
	Listen() error
	// Serve blocks until the instance stops. It returns nil after Shutdown.
	Serve() error
	// Shutdown stops accepting connections and waits for in-flight
	// requests to finish or ctx to expire.
	Shutdown(ctx context.Context) error
}

// Builder creates the next instance from the current persisted
// configuration. It runs on the supervisor goroutine.
type Builder func(ctx context.Context) (Instance, error)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = l.With().Str("component", "restart").Logger() }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithAudit sets the audit logger.
func WithAudit(a *audit.Logger) Option {
	return func(c *Coordinator) { c.audit = a }
}

// WithShutdownTimeout sets how long a replaced instance may take to drain.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.shutdownTimeout = d
		}
	}
}

// Coordinator serialises listener restarts. Requests are queued, not dropped:
// at most one request is kept pending, so any number of requests made while
// a restart is in flight result in exactly one further restart. Requests made
// before the first instance is serving are satisfied by the initial build.
type Coordinator struct {
	requests        chan string
	bound           atomic.Int64
	logger          zerolog.Logger
	metrics         *metrics.Recorder
	audit           *audit.Logger
	shutdownTimeout time.Duration
}

// New returns a Coordinator. Call Run to start supervising.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		requests:        make(chan string, 1),
		logger:          zerolog.Nop(),
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restart requests a restart and returns immediately.
func (c *Coordinator) Restart(reason string) {
	select {
	case c.requests <- reason:
		c.logger.Info().Str("reason", reason).Msg("restart requested")
	default:
		c.logger.Debug().Str("reason", reason).Msg("restart already pending")
	}
}

// BoundPort returns the port of the serving instance, or 0 when none is
// serving.
func (c *Coordinator) BoundPort() int { return int(c.bound.Load()) }

type running struct {
	inst Instance
	done chan error
}

func (c *Coordinator) start(inst Instance) *running {
	r := &running{inst: inst, done: make(chan error, 1)}
	go func() { r.done <- inst.Serve() }()
	c.bound.Store(int64(inst.Port()))
	return r
}

// Run builds and serves the first instance, then handles restart requests
// until ctx is done. It returns nil after a clean shutdown, or an error when
// the first instance cannot start, a serving instance stops unexpectedly, or
// a restart leaves no instance serving.
func (c *Coordinator) Run(ctx context.Context, build Builder) error {
	c.drain()

	inst, err := build(ctx)
	if err != nil {
		return fmt.Errorf("build listener: %w", err)
	}
	if err := inst.Listen(); err != nil {
		return fmt.Errorf("listen on port %d: %w", inst.Port(), err)
	}
	cur := c.start(inst)
	c.metrics.RecordReady(time.Now())
	c.logger.Info().Int("port", inst.Port()).Msg("listener serving")

	for {
		select {
		case <-ctx.Done():
			c.stop(cur)
			c.bound.Store(0)
			c.logger.Info().Msg("listener stopped")
			return nil

		case err := <-cur.done:
			c.bound.Store(0)
			if err == nil {
				err = errors.New("stopped without shutdown")
			}
			return fmt.Errorf("listener on port %d: %w", cur.inst.Port(), err)

		case reason := <-c.requests:
			next, err := c.restart(ctx, cur, reason, build)
			if err != nil {
				c.bound.Store(0)
				return err
			}
			cur = next
		}
	}
}

// restart performs one two-phase handoff. A failure before the old instance
// is shut down keeps it serving and returns it with a nil error; a failure
// after that is returned.
func (c *Coordinator) restart(ctx context.Context, cur *running, reason string, build Builder) (*running, error) {
	start := time.Now()
	from := cur.inst.Port()
	log := c.logger.With().Str("reason", reason).Int("from", from).Logger()

	next, err := build(ctx)
	if err != nil {
		log.Error().Err(err).Msg("restart aborted: build failed, keeping current listener")
		c.record(reason, from, 0, err, start)
		return cur, nil
	}
	to := next.Port()
	log = log.With().Int("to", to).Logger()

	if to != from {
		if err := next.Listen(); err != nil {
			log.Error().Err(err).Msg("restart aborted: bind failed, keeping current listener")
			c.record(reason, from, to, err, start)
			return cur, nil
		}
	}

	c.stop(cur)

	if err := next.Listen(); err != nil {
		log.Error().Err(err).Msg("restart failed: no listener serving")
		c.record(reason, from, to, err, start)
		return nil, fmt.Errorf("restart on port %d: %w", to, err)
	}
	nr := c.start(next)
	c.metrics.ObserveRestart(reason)
	c.record(reason, from, to, nil, start)
	log.Info().Dur("took", time.Since(start)).Msg("listener restarted")
	return nr, nil
}

// stop gracefully shuts r down and waits for its Serve to return.
func (c *Coordinator) stop(r *running) {
	ctx, cancel := context.WithTimeout(context.Background(), c.shutdownTimeout)
	defer cancel()
	if err := r.inst.Shutdown(ctx); err != nil {
		c.logger.Warn().Err(err).Int("port", r.inst.Port()).Msg("graceful shutdown incomplete")
	}
	if err := <-r.done; err != nil {
		c.logger.Warn().Err(err).Int("port", r.inst.Port()).Msg("listener returned error on shutdown")
	}
}

func (c *Coordinator) drain() {
	for {
		select {
		case reason := <-c.requests:
			c.logger.Debug().Str("reason", reason).Msg("restart satisfied by initial build")
		default:
			return
		}
	}
}

func (c *Coordinator) record(reason string, from, to int, err error, start time.Time) {
	c.audit.Record("restart", map[string]any{"reason": reason, "from": from, "to": to}, audit.ResultOf(err), start)
}
