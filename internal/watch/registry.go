package watch

import "sync"

// Registry is the insertion-ordered list of watchers. Watchers are never
// removed.
type Registry struct {
	mu       sync.RWMutex
	watchers []*Watcher
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends w.
func (r *Registry) Add(w *Watcher) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.watchers = append(r.watchers, w)
}

// All returns a snapshot of the watchers in registration order.
func (r *Registry) All() []*Watcher {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Watcher, len(r.watchers))
	copy(out, r.watchers)

	return out
}

// Len returns the number of registered watchers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.watchers)
}
