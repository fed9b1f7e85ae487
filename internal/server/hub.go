package server

import (
	"sync"

	"github.com/liuscraft/orion-stt/internal/logging"
)

// Hub tracks connected clients and fans results out to them.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	logging.Infof("Hub: client %s joined, %d online", c.id, n)
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		c.closeSend()
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		logging.Infof("Hub: client %s left, %d online", c.id, n)
	}
}

// Broadcast queues payload for every client. A client whose send buffer is
// full is dropped.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		if !c.trySend(payload) {
			logging.Warnf("Hub: client %s is not keeping up, disconnecting", c.id)
			delete(h.clients, c)
			c.closeSend()
		}
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		delete(h.clients, c)
		c.closeSend()
	}
}
