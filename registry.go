package typewriter

import "sync"

// Registry holds at most one callback per event key.
// It is safe for concurrent use.
type Registry[K comparable] struct {
	mu        sync.RWMutex
	callbacks map[K]func()
}

// NewRegistry returns an empty registry.
func NewRegistry[K comparable]() *Registry[K] {
	return &Registry[K]{callbacks: make(map[K]func())}
}

// On stores fn under event, replacing any callback already there.
// A nil fn removes the registration, like Off.
func (r *Registry[K]) On(event K, fn func()) {
	r.mu.Lock()
	if fn == nil {
		delete(r.callbacks, event)
	} else {
		r.callbacks[event] = fn
	}
	r.mu.Unlock()
}

// Off removes the callback for event.
func (r *Registry[K]) Off(event K) {
	r.mu.Lock()
	delete(r.callbacks, event)
	r.mu.Unlock()
}

// Awaits reports whether a callback is registered for event.
func (r *Registry[K]) Awaits(event K) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.callbacks[event]
	return ok
}

// Emit calls the callback registered for event. The callback runs without
// the registry lock held, so it may register or emit itself.
func (r *Registry[K]) Emit(event K) error {
	r.mu.RLock()
	fn, ok := r.callbacks[event]
	r.mu.RUnlock()
	if !ok || fn == nil {
		return &UnregisteredEventError{Event: event}
	}
	fn()
	return nil
}

// Len returns the number of registered events.
func (r *Registry[K]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.callbacks)
}
