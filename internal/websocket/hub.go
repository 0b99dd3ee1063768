package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Entity names carried in change notifications.
const (
	EntityGroup   = "group"
	EntityList    = "list"
	EntityItem    = "item"
	EntityComment = "comment"
)

// Message is a change notification sent to every client watching a group.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     int64          `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub tracks connected clients per group and fans out change notifications.
type Hub struct {
	mu     sync.RWMutex
	groups map[int64]map[*Client]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		groups: make(map[int64]map[*Client]struct{}),
		logger: logger,
	}
}

// Register adds a client to its group.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.groups[c.groupID]
	if !ok {
		clients = make(map[*Client]struct{})
		h.groups[c.groupID] = clients
	}
	clients[c] = struct{}{}
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.groups[c.groupID]
	if !ok {
		return
	}
	if _, ok := clients[c]; ok {
		delete(clients, c)
		close(c.send)
	}
	if len(clients) == 0 {
		delete(h.groups, c.groupID)
	}
}

// Broadcast sends msg to every client watching groupID. Slow clients whose
// buffer is full miss the message.
func (h *Hub) Broadcast(groupID int64, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.groups[groupID] {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("drop message for slow client", "group_id", groupID, "type", msg.Type)
		}
	}
}

// ClientCount returns the number of clients watching groupID.
func (h *Hub) ClientCount(groupID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[groupID])
}
