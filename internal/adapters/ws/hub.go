// Package ws pushes change notifications to connected browsers.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/okian/weekgrid/pkg/logger"
	"github.com/okian/weekgrid/pkg/metrics"
)

// Message tells clients that something changed and what to refetch.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     string         `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with Type derived from entity and action.
func NewMessage(entity, action, id string, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub maintains the set of active clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  logger.Logger
}

// NewHub creates a new Hub.
func NewHub(l logger.Logger) *Hub {
	if l == nil {
		l = logger.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  l.Named("ws"),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.UpdateWSClients(n)
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.UpdateWSClients(n)
}

// Broadcast sends msg to every client. Clients with a full buffer miss it.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(context.Background(), "marshal broadcast", logger.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
	metrics.RecordWSBroadcast()
}

// Publish broadcasts a change of entity id.
func (h *Hub) Publish(ctx context.Context, entity, action, id string) {
	h.logger.Debug(ctx, "publish",
		logger.String("entity", entity),
		logger.String("action", action),
		logger.String("id", id))
	h.Broadcast(NewMessage(entity, action, id, nil))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
