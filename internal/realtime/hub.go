package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Event types delivered to dashboards.
const (
	EventTicketNotification = "ticket_notification"
	EventAlert              = "alert"
)

// Event is the message envelope written to every socket in a room.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// UserRoom is the room of a single user's sessions.
func UserRoom(userID string) string { return "user:" + userID }

// ProjectRoom is the room of every member connected for a project.
func ProjectRoom(projID string) string { return "project:" + projID }

// Bridge fans room messages out across instances.
type Bridge interface {
	Publish(ctx context.Context, room string, data []byte) error
	Subscribe(room string, handler func(data []byte)) (cancel func(), err error)
}

// Hub maintains room -> set of connections. With a Bridge, Broadcast publishes only and
// every instance (this one included) delivers from its subscription, so each socket gets
// one copy.
type Hub struct {
	rooms  map[string]map[string]*Client
	subs   map[string]func()
	mu     sync.RWMutex
	logger *zap.Logger
	bridge Bridge
}

// NewHub creates a hub. bridge may be nil for a single instance.
func NewHub(logger *zap.Logger, bridge Bridge) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[string]map[string]*Client),
		subs:   make(map[string]func()),
		logger: logger,
		bridge: bridge,
	}
}

// Register adds a client to each of its rooms, subscribing the bridge on a room's first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range c.Rooms {
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[string]*Client)
			if h.bridge != nil {
				room := room
				cancel, err := h.bridge.Subscribe(room, func(data []byte) { h.deliver(room, data) })
				if err != nil {
					h.logger.Warn("room subscribe failed", zap.String("room", room), zap.Error(err))
				} else {
					h.subs[room] = cancel
				}
			}
		}
		h.rooms[room][c.ID] = c
	}
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID), zap.Strings("rooms", c.Rooms))
}

// Unregister removes a client and drops subscriptions of rooms left empty.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range c.Rooms {
		m, ok := h.rooms[room]
		if !ok {
			continue
		}
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, room)
			if cancel, ok := h.subs[room]; ok {
				cancel()
				delete(h.subs, room)
			}
		}
	}
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID))
}

// Broadcast sends ev to every client in room, across instances when a bridge is set.
func (h *Hub) Broadcast(ctx context.Context, room string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if h.bridge != nil {
		return h.bridge.Publish(ctx, room, data)
	}
	h.deliver(room, data)
	return nil
}

// deliver writes data to local clients of room. A full send buffer drops the message for that client.
func (h *Hub) deliver(room string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[room] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("client send buffer full", zap.String("client_id", c.ID), zap.String("room", room))
		}
	}
}

// RoomSize returns the number of local clients in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
