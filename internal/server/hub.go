// Package server coordinates client registration, message dispatch, and
// connection cleanup for the ChatRelay WebSocket system via the Hub type.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chatrelay/chatrelay/internal/store"
)

// Hub owns the connection registry, room directory, router, and
// broadcaster, and runs the registration event loop. Hubs are constructed
// per server instance so tests can spin up isolated ones.
type Hub struct {
	cfg         *Config
	registry    *Registry
	directory   *RoomDirectory
	broadcaster *Broadcaster
	router      *Router

	register   chan *Client
	unregister chan *Client

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	log    *slog.Logger
}

// NewHub wires the relay core together around the given message store.
// The returned Hub is ready once Run is started in its own goroutine.
func NewHub(cfg *Config, messages store.MessageStore, log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	registry := NewRegistry(log)
	directory := NewRoomDirectory()
	broadcaster := NewBroadcaster(registry, directory, log)
	router := NewRouter(directory, broadcaster, messages, log)

	return &Hub{
		cfg:         cfg,
		registry:    registry,
		directory:   directory,
		broadcaster: broadcaster,
		router:      router,
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		log:         log,
	}
}

// Directory exposes the room directory, the source of truth for presence.
func (h *Hub) Directory() *RoomDirectory {
	return h.directory
}

// Router exposes the frame router.
func (h *Hub) Router() *Router {
	return h.router
}

// Run starts the hub's event loop, handling client registration and
// unregistration. It runs until Shutdown and should be called in its own
// goroutine.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("received nil client registration; skipping")
				continue
			}

			h.registry.Register(client)
			h.log.Info("client registered",
				"addr", client.addr, "user", client.identity.Username, "total", h.registry.Len())

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			if h.registry.Unregister(client) {
				close(client.send)
				h.router.HandleDisconnect(client)
				h.log.Info("client unregistered",
					"addr", client.addr, "user", client.DisplayName(), "total", h.registry.Len())
			}
		}
	}
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	h.log.Info("shutting down all client connections")

	var clients []*Client
	h.registry.ForEach(func(c *Client) {
		clients = append(clients, c)
	})

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					h.log.Warn("error closing client connection", "addr", client.addr, "err", err)
				}
			}
		}
	}

	h.log.Info("closed client connections", "count", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all
// goroutines to complete, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
