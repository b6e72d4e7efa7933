// Package ws implements the WebSocket fanout channel for real-time task
// notifications. Connections join the room keyed by their owner ID after
// presenting a valid token; every ledger update for the owner's tasks is
// pushed to all connections in the room.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/supermodelai/supermodel-api/internal/auth"
	"github.com/supermodelai/supermodel-api/internal/events"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants for the subscription protocol.
const (
	// TypeSubscribe is sent by the client to join its owner room.
	TypeSubscribe = "subscribe"

	// TypeUnsubscribe is sent by the client to leave its room.
	TypeUnsubscribe = "unsubscribe"

	// TypeSubscribed acknowledges a successful subscription.
	TypeSubscribed = "subscribed"

	// TypeUnsubscribed acknowledges leaving the room.
	TypeUnsubscribed = "unsubscribed"

	// TypeTaskUpdate carries a task lifecycle event.
	TypeTaskUpdate = "task.update"

	// TypeError reports a protocol or authorization failure.
	TypeError = "error"
)

// conn wraps a single WebSocket connection. A connection belongs to at
// most one owner room at a time; writeMu serializes writes because the
// underlying connection allows only one concurrent writer.
type conn struct {
	ws      *websocket.Conn
	cancel  context.CancelFunc
	writeMu sync.Mutex

	mu      sync.Mutex
	ownerID *uuid.UUID
}

// write sends one envelope over the connection.
func (c *conn) write(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.Write(ctx, websocket.MessageText, data)
}

func (c *conn) owner() *uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ownerID
}

func (c *conn) setOwner(id *uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ownerID = id
}

// Hub manages all active WebSocket connections grouped into owner rooms
// and fans task events out to them. Delivery is best-effort: a slow or
// broken connection is dropped, never retried, and a room with no
// connections swallows its events.
type Hub struct {
	jwtService auth.JWTService
	logger     *slog.Logger

	mu    sync.RWMutex
	rooms map[uuid.UUID]map[*conn]struct{}
}

// NewHub creates a new WebSocket hub. The JWT service authorizes
// subscribe requests.
func NewHub(jwtService auth.JWTService, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		jwtService: jwtService,
		logger:     logger.With(slog.String("component", "ws_hub")),
		rooms:      make(map[uuid.UUID]map[*conn]struct{}),
	}
}

// Ensure Hub implements events.Publisher
var _ events.Publisher = (*Hub)(nil)

// Publish implements events.Publisher. It delivers the event to every
// connection currently joined to the owner's room. Events published for
// one task arrive on each connection in publish order.
func (h *Hub) Publish(ctx context.Context, ownerID uuid.UUID, event events.TaskEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal task event",
			"task_id", event.TaskID,
			"error", err)
		return
	}

	msg := Message{Type: TypeTaskUpdate, Payload: payload}

	h.mu.RLock()
	room := make([]*conn, 0, len(h.rooms[ownerID]))
	for c := range h.rooms[ownerID] {
		room = append(room, c)
	}
	h.mu.RUnlock()

	for _, c := range room {
		if err := c.write(ctx, msg); err != nil {
			h.logger.Debug("dropping connection after failed write",
				"owner_id", ownerID,
				"error", err)
			h.remove(c)
		}
	}
}

// RoomSize returns the number of connections joined to the owner's room.
func (h *Hub) RoomSize(ownerID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[ownerID])
}

// join adds the connection to the owner's room, moving it out of any room
// it previously occupied.
func (h *Hub) join(c *conn, ownerID uuid.UUID) {
	h.leave(c)

	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[ownerID]
	if !ok {
		room = make(map[*conn]struct{})
		h.rooms[ownerID] = room
	}
	room[c] = struct{}{}
	c.setOwner(&ownerID)
}

// leave removes the connection from its current room, if any. Empty rooms
// are deleted so the rooms map does not grow with owner churn.
func (h *Hub) leave(c *conn) {
	owner := c.owner()
	if owner == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.rooms[*owner]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, *owner)
		}
	}
	c.setOwner(nil)
}

// remove tears the connection down entirely.
func (h *Hub) remove(c *conn) {
	h.leave(c)
	c.cancel()
	_ = c.ws.Close(websocket.StatusNormalClosure, "")
}
