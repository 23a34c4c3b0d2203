package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// UserRoom is the private room of an account.
func UserRoom(userID uuid.UUID) string { return "user:" + userID.String() }

// EventRoom is the dashboard room of an event.
func EventRoom(eventID uuid.UUID) string { return "event:" + eventID.String() }

// Hub maintains room -> set of connections and broadcasts messages.
// Uses Redis pub/sub for horizontal scaling: each room with local clients holds one subscription.
type Hub struct {
	// room -> map[clientID]*Client
	rooms    map[string]map[string]*Client
	subs     map[string]func() // cancel Redis subscription per room
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishRoomEvent(room, event string, payload []byte) error
}

// RedisSubscriber subscribes to room channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeRoom(room string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. Both Redis arguments may be nil for single-instance use.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[string]map[string]*Client),
		subs:     make(map[string]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Join adds a client to a room. The first local client of a room starts its Redis subscription;
// the subscribe round-trip runs outside the hub lock.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	_, open := h.rooms[room]
	if open || h.redisSub == nil {
		h.add(c, room)
		h.mu.Unlock()
		h.logger.Debug("client joined room", zap.String("client_id", c.ID), zap.String("room", room))
		return
	}
	h.mu.Unlock()

	cancel, err := h.redisSub.SubscribeRoom(room, func(event string, payload []byte) {
		h.BroadcastToRoom(room, event, json.RawMessage(payload))
	})
	if err != nil {
		h.logger.Warn("room subscribe failed", zap.String("room", room), zap.Error(err))
		cancel = nil
	}

	h.mu.Lock()
	h.add(c, room)
	if _, ok := h.subs[room]; !ok && cancel != nil {
		h.subs[room] = cancel
		cancel = nil
	}
	h.mu.Unlock()
	// Another client opened the room first and its subscription is already in place.
	if cancel != nil {
		cancel()
	}
	h.logger.Debug("client joined room", zap.String("client_id", c.ID), zap.String("room", room))
}

// add registers c in room. Caller holds h.mu.
func (h *Hub) add(c *Client, room string) {
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][c.ID] = c
	c.rooms = append(c.rooms, room)
}

// Unregister removes a client from every room it joined. Cancels Redis subscriptions of rooms left empty.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	for _, room := range c.rooms {
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
	c.rooms = nil
	h.mu.Unlock()
	h.logger.Debug("client left", zap.String("client_id", c.ID))
}

// BroadcastToRoom sends a message to all clients in a room (local only).
func (h *Hub) BroadcastToRoom(room, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[room] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Emit delivers an event to a room on every instance. With Redis it only publishes, and the
// subscription callback performs the local broadcast once; without Redis it broadcasts locally.
// Delivery is best-effort.
func (h *Hub) Emit(room, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("emit marshal failed", zap.String("room", room), zap.String("event", event), zap.Error(err))
		return
	}
	if h.redis != nil {
		if err := h.redis.PublishRoomEvent(room, event, data); err != nil {
			h.logger.Warn("room publish failed", zap.String("room", room), zap.String("event", event), zap.Error(err))
		}
		return
	}
	h.BroadcastToRoom(room, event, json.RawMessage(data))
}

// RoomSize returns the number of local clients in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
