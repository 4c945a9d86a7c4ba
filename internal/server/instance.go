package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// InstanceOptions are the http.Server timeouts applied to every instance.
type InstanceOptions struct {
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
}

// Instance is one HTTP listener generation. It implements restart.Instance.
type Instance struct {
	host string
	port int
	srv  *http.Server

	mu      sync.Mutex
	ln      net.Listener
	serving bool
}

// NewInstance returns an unbound Instance serving handler on host:port.
func NewInstance(host string, port int, handler http.Handler, opts InstanceOptions) *Instance {
	return &Instance{
		host: host,
		port: port,
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: opts.ReadHeaderTimeout,
			IdleTimeout:       opts.IdleTimeout,
		},
	}
}

// Port returns the configured port.
func (i *Instance) Port() int { return i.port }

// Addr returns the bound address, or nil before Listen.
func (i *Instance) Addr() net.Addr {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.ln == nil {
		return nil
	}
	return i.ln.Addr()
}

// Listen binds the port. It is a no-op once bound.
func (i *Instance) Listen() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.ln != nil {
		return nil
	}
	addr := net.JoinHostPort(i.host, strconv.Itoa(i.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	i.ln = ln
	i.srv.Addr = addr
	return nil
}

// Serve accepts connections until Shutdown. It returns nil after Shutdown.
func (i *Instance) Serve() error {
	i.mu.Lock()
	ln := i.ln
	i.serving = ln != nil
	i.mu.Unlock()
	if ln == nil {
		return errors.New("serve before listen")
	}
	if err := i.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for active requests, so
// a response that requested a restart is flushed before this returns.
func (i *Instance) Shutdown(ctx context.Context) error {
	i.mu.Lock()
	ln, serving := i.ln, i.serving
	i.mu.Unlock()
	if ln != nil && !serving {
		_ = ln.Close()
	}
	return i.srv.Shutdown(ctx)
}
