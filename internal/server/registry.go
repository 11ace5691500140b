// Package server tracks every live WebSocket connection through the
// Registry type, which the broadcaster iterates for fan-out.
package server

import (
	"log/slog"
	"sync"
)

// Registry is the set of currently-open client connections. It owns the
// clients' closed flag: all reads and writes of that flag happen under the
// registry lock so a send can never race a teardown.
type Registry struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	log     *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		clients: make(map[*Client]struct{}),
		log:     log,
	}
}

// Register binds a client to the registry. Registering the same client
// twice is a programming error upstream; the map makes it harmless.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.closed = false
	r.clients[c] = struct{}{}
}

// Unregister removes a client and reports whether it was present. Callers
// use the return value to run disconnect cleanup exactly once.
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c]; !ok {
		return false
	}
	delete(r.clients, c)
	c.closed = true
	return true
}

// ForEach calls fn for a snapshot of the registered clients. Taking a
// snapshot first means clients may close mid-iteration; Send tolerates
// that by checking liveness again under the lock.
func (r *Registry) ForEach(fn func(*Client)) {
	r.mu.RLock()
	snapshot := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		snapshot = append(snapshot, c)
	}
	r.mu.RUnlock()

	for _, c := range snapshot {
		fn(c)
	}
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Send queues a payload on the client's send channel if the client is
// still registered and has buffer space. It never blocks and never lets a
// closed channel panic escape.
func (r *Registry) Send(c *Client, payload []byte) (delivered bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Warn("recovered from panic while queueing payload", "panic", rec)
			delivered = false
		}
	}()

	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.clients[c]; !exists || c.closed {
		return false
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}
