// Package state tracks whether the application has been configured.
package state

import "sync/atomic"

// Tracker holds the process-wide setup state. A zero Tracker is Unconfigured.
// It is safe for concurrent use; readers observe either the old or the new
// state, never anything in between.
type Tracker struct {
	configured atomic.Bool
}

// NewTracker returns a Tracker in the given initial state.
func NewTracker(configured bool) *Tracker {
	t := &Tracker{}
	t.configured.Store(configured)
	return t
}

// IsConfigured reports whether setup has completed.
func (t *Tracker) IsConfigured() bool { return t.configured.Load() }

// MarkConfigured moves the tracker to Configured. Calling it again is a no-op.
// It reports whether this call performed the transition.
func (t *Tracker) MarkConfigured() bool {
	return t.configured.CompareAndSwap(false, true)
}

// Reset moves the tracker back to Unconfigured. Only the environment
// bootstrap uses it, right before it replaces the persisted store.
func (t *Tracker) Reset() { t.configured.Store(false) }
