package realtime

import "sync"

// Registry holds the process-wide hub. The hub is created by the first caller
// that needs a transport handle (the socket endpoint) and lives for the rest
// of the process; publishers only read it, so publishing before anyone has
// connected is a no-op.
type Registry struct {
	mu  sync.Mutex
	hub *Hub
}

// Default is the registry used by the server binary.
var Default = &Registry{}

func (r *Registry) Get() *Hub {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hub
}

func (r *Registry) Set(h *Hub) {
	r.mu.Lock()
	r.hub = h
	r.mu.Unlock()
}

// GetOrInit returns the registered hub, creating it with NewHub on first use.
func (r *Registry) GetOrInit() *Hub {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hub == nil {
		r.hub = NewHub()
	}
	return r.hub
}
