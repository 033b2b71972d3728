// Package lifecycle holds the process-wide drain flag consulted by the
// readiness probe and the live socket handler during shutdown.
package lifecycle

import "sync/atomic"

// Lifecycle is the shared shutdown state. Draining is a one-way
// transition: once the gateway starts draining it never returns to
// ready, so there is no way to clear the flag.
type Lifecycle struct {
	draining atomic.Bool
}

// SetDraining marks the gateway as draining.
func (l *Lifecycle) SetDraining() {
	if l == nil {
		return
	}
	l.draining.Store(true)
}

// IsDraining reports whether shutdown has begun. A nil receiver reports
// false, so handlers built without a lifecycle behave as always ready.
func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}
