package settings

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultWatchDebounce = 500 * time.Millisecond

// Watcher reloads the active configuration when the setup file is edited
// outside the application. Events are debounced; reloads only happen once
// the application is configured.
type Watcher struct {
	svc      *Service
	path     string
	debounce time.Duration
	logger   zerolog.Logger

	mu       sync.Mutex
	timer    *time.Timer
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
}

// WatcherOption customizes a Watcher.
type WatcherOption func(*Watcher)

// WithWatchDebounce sets the debounce window.
func WithWatchDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatchLogger sets the watcher logger.
func WithWatchLogger(l zerolog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l.With().Str("component", "settings.watch").Logger() }
}

// NewWatcher returns a Watcher for the store file of svc.
func NewWatcher(svc *Service, opts ...WatcherOption) (*Watcher, error) {
	if svc == nil {
		return nil, fmt.Errorf("settings service required")
	}
	path := svc.Store().Path()
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	w := &Watcher{
		svc:      svc,
		path:     filepath.Clean(path),
		debounce: defaultWatchDebounce,
		logger:   zerolog.Nop(),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start watches the directory holding the setup file until ctx is done or
// Stop is called. The directory is watched rather than the file because the
// store replaces the file by rename.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watcher != nil {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		w.mu.Unlock()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.watcher = fsw
	w.mu.Unlock()

	go w.loop(fsw)
	go func() {
		select {
		case <-ctx.Done():
			w.Stop()
		case <-w.stopCh:
		}
	}()
	return nil
}

// Stop ends watching. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
			w.watcher = nil
		}
		w.mu.Unlock()
	})
}

func (w *Watcher) loop(fsw *fsnotify.Watcher) {
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Remove) {
				w.logger.Warn().Str("path", w.path).Msg("setup file removed; restart to return to setup")
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.schedule()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("setup watcher error")
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.stopCh:
		return
	default:
	}
	if !w.svc.IsConfigured() {
		// Setup submission and reload-on-demand handle the first load.
		return
	}
	if err := w.svc.Reload(); err != nil {
		w.logger.Error().Err(err).Msg("reload after file change failed")
	}
}
