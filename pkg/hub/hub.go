// Package hub is a thread-safe websocket broadcast hub using the
// channel-based fan-out pattern. One goroutine owns the client set;
// publishers hand it pre-encoded JSON snapshots.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	ulog "github.com/teslashibe/go-urjog/internal/log"
)

// Hub maintains the set of active clients and broadcasts snapshots to
// them. Clients that cannot keep up are dropped rather than allowed to
// stall the broadcast.
type Hub struct {
	name string
	log  *slog.Logger

	// Registered clients, owned by the Run goroutine. The mutex only
	// guards the count for outside readers.
	clients map[*Client]bool
	mu      sync.RWMutex

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
}

// New creates a hub. Call Run in a goroutine before broadcasting.
func New(name string) *Hub {
	return &Hub{
		name:       name,
		log:        ulog.Component("hub").With("hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
}

// Run is the hub's main loop; it owns all client set mutation.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Info("client connected", "client", client.id, "total", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Info("client disconnected", "client", client.id, "remaining", count)

		case data := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Buffer full, the client is too slow. Drop it.
					close(client.send)
					delete(h.clients, client)
					h.log.Warn("dropped slow client", "client", client.id)
				}
			}
			h.mu.Unlock()

		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop ends the Run loop and disconnects all clients.
func (h *Hub) Stop() {
	close(h.quit)
}

// Broadcast queues pre-encoded data for all clients. A full broadcast
// queue drops the snapshot; the next one supersedes it anyway.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("broadcast queue full, dropping snapshot")
	}
}

// BroadcastJSON encodes and broadcasts a value.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
