// Package presence tracks which users currently hold a live socket connection.
// State is process-local and starts empty on every restart.
package presence

import (
	"sort"
	"sync"
)

// Handle is a live connection that can be pushed to directly
type Handle interface {
	// Emit queues an event for the connection; false means it was not accepted.
	Emit(event string, data interface{}) bool
}

// Registry maps a user to their most recent connection. A newer connection
// for the same user replaces the older one; there is no multi-device fan-out.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Handle
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Handle)}
}

// Register records handle as userID's connection, replacing any previous one.
func (r *Registry) Register(userID string, handle Handle) {
	if userID == "" || handle == nil {
		return
	}
	r.mu.Lock()
	r.entries[userID] = handle
	r.mu.Unlock()
}

// Unregister drops userID regardless of which connection is recorded.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	delete(r.entries, userID)
	r.mu.Unlock()
}

// Release drops userID only while handle is still the recorded connection,
// so a superseded connection closing cannot take a newer one offline. It
// reports whether an entry was removed.
func (r *Registry) Release(userID string, handle Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.entries[userID]; ok && current == handle {
		delete(r.entries, userID)
		return true
	}
	return false
}

func (r *Registry) Lookup(userID string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.entries[userID]
	return h, ok
}

func (r *Registry) IsOnline(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// ListOnline returns the online user ids, sorted.
func (r *Registry) ListOnline() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}
