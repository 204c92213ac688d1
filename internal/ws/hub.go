package ws

import (
	"context"
	"log/slog"
	"sync"
)

// Bridge relays room broadcasts between gateway instances. Implementations
// must deliver published frames back to every subscribed instance except the
// publisher itself.
type Bridge interface {
	// Publish sends a room frame to the other gateway instances.
	Publish(ctx context.Context, room string, frame []byte) error
}

// Hub tracks connections and their room membership, and fans out frames to
// rooms. Membership mutations and broadcasts are serialized by one mutex; the
// per-connection buffered writer keeps a slow consumer from blocking the hub.
type Hub struct {
	logger *slog.Logger
	bridge Bridge

	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
}

// NewHub creates a hub. bridge may be nil for single-instance deployments.
func NewHub(bridge Bridge, logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		bridge:  bridge,
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// Unregister removes a connection from the hub and from all rooms it joined.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)

	for room := range c.rooms {
		h.leaveLocked(room, c)
	}
}

// Join adds a connection to a room.
func (h *Hub) Join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

// Broadcast fans a frame out to every connection in the room, including the
// sender's own other connections, and relays it across the bridge when one is
// configured.
func (h *Hub) Broadcast(ctx context.Context, room string, frame []byte) {
	h.deliverLocal(room, frame)

	if h.bridge != nil {
		if err := h.bridge.Publish(ctx, room, frame); err != nil {
			h.logger.ErrorContext(ctx, "bridge publish failed",
				slog.String("room", room),
				slog.String("error", err.Error()),
			)
		}
	}
}

// DeliverLocal fans a frame out to local room members only. The bridge calls
// this for frames received from other instances.
func (h *Hub) DeliverLocal(room string, frame []byte) {
	h.deliverLocal(room, frame)
}

func (h *Hub) deliverLocal(room string, frame []byte) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if c.trySend(frame) {
			continue
		}
		// Writer buffer full: the consumer is too slow to keep up. Drop the
		// connection rather than blocking the room, and take it out of its
		// rooms immediately so later broadcasts skip it.
		h.logger.Warn("dropping slow websocket consumer",
			slog.String("user_id", c.userID),
			slog.String("room", room),
		)
		c.Close()
		h.Unregister(c)
	}
}

// RoomSize returns the number of local connections in the room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// leaveLocked removes c from room; callers hold h.mu.
func (h *Hub) leaveLocked(room string, c *Client) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}
