// Package cancel implements the per-session cancellation registry: a
// wait-free flag the orchestrator polls between stream events and the
// JSON-RPC ingress path sets on a session/cancel notification.
package cancel

import "sync"

// Registry tracks one cancellation flag per session. All operations are
// safe for concurrent use; IsCancelled never blocks on a mutex beyond the
// map lookup itself, keeping it cheap enough for the hot streaming loop.
type Registry struct {
	mu      sync.RWMutex
	flagged map[string]bool
}

// NewRegistry returns an empty registry. Tests construct fresh instances
// rather than reaching for a package-level singleton.
func NewRegistry() *Registry {
	return &Registry{flagged: make(map[string]bool)}
}

// Cancel sets the cancellation flag for sid. Idempotent: repeated calls
// keep the flag set.
func (r *Registry) Cancel(sid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flagged[sid] = true
}

// IsCancelled reports whether sid is currently flagged. Wait-free in the
// sense that matters here: a read lock on an in-memory map, no I/O, no
// suspension point.
func (r *Registry) IsCancelled(sid string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.flagged[sid]
}

// ResetForNewTurn clears the flag unconditionally, regardless of its prior
// value. Must be invoked exactly once per turn, at the moment the
// orchestrator observes a cancellation — apart from Delete, no other code
// path clears it.
func (r *Registry) ResetForNewTurn(sid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.flagged, sid)
}

// Delete removes all cancellation state for sid, called when a session is
// deleted so the registry does not accumulate entries for dead sessions.
func (r *Registry) Delete(sid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.flagged, sid)
}
