// Package sessions tracks open live sockets so shutdown can warn and close
// them. http.Server.Shutdown never waits for hijacked connections, so the
// gateway drains WebSockets through this tracker instead.
package sessions

import (
	"context"
	"sync"
)

// Handle is what the tracker can do to one live socket: warn the client
// with a non-closing error frame, or cancel the session outright.
type Handle struct {
	Cancel func()
	Warn   func(code, message string) error
}

type Tracker struct {
	mu    sync.Mutex
	conns map[string]*tracked
	wg    sync.WaitGroup
}

type tracked struct {
	handle Handle
	once   sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{conns: make(map[string]*tracked)}
}

// Register adds a socket under connID and returns its unregister func.
// Registering an existing id replaces the old entry; the replaced socket
// keeps running but is no longer tracked.
func (t *Tracker) Register(connID string, h Handle) (unregister func()) {
	entry := &tracked{handle: h}

	t.mu.Lock()
	old := t.conns[connID]
	t.conns[connID] = entry
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil {
		t.unregister(connID, old)
	}
	return func() { t.unregister(connID, entry) }
}

func (t *Tracker) unregister(connID string, entry *tracked) {
	entry.once.Do(func() {
		t.mu.Lock()
		if t.conns[connID] == entry {
			delete(t.conns, connID)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// WarnAll pushes a warning frame to every tracked socket. Handles are
// snapshotted first; no lock is held across the sends.
func (t *Tracker) WarnAll(code, message string) (sent int) {
	var warns []func(code, message string) error
	t.mu.Lock()
	for _, entry := range t.conns {
		if entry.handle.Warn != nil {
			warns = append(warns, entry.handle.Warn)
		}
	}
	t.mu.Unlock()

	for _, warn := range warns {
		_ = warn(code, message)
		sent++
	}
	return sent
}

// CancelAll closes every tracked socket without waiting. Pair with Wait.
func (t *Tracker) CancelAll() (canceled int) {
	var cancels []func()
	t.mu.Lock()
	for _, entry := range t.conns {
		if entry.handle.Cancel != nil {
			cancels = append(cancels, entry.handle.Cancel)
		}
	}
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every registered socket unregistered or ctx expires.
func (t *Tracker) Wait(ctx context.Context) bool {
	if ctx == nil {
		t.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
