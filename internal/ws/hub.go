package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chat-client/internal/logger"
	"chat-client/internal/models"
	"chat-client/internal/observability"
)

const writeWait = 10 * time.Second

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// client serialises writes to one connection.
type client struct {
	conn Conn
	info ConnInfo
	mu   sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub keeps one room per user; a user may have several connections.
type Hub struct {
	rooms map[string]map[Conn]*client
	mu    sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[Conn]*client)}
}

// AddClient registers conn in info.UserID's room.
func (h *Hub) AddClient(conn Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[info.UserID]; !ok {
		h.rooms[info.UserID] = make(map[Conn]*client)
	}
	h.rooms[info.UserID][conn] = &client{conn: conn, info: info}
}

// RemoveClient drops conn from userID's room.
func (h *Hub) RemoveClient(userID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, userID)
		}
	}
}

// Online reports how many connections userID has open.
func (h *Hub) Online(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

// BroadcastToUsers sends ev to every connection of every listed user.
// Duplicate ids receive the event once.
func (h *Hub) BroadcastToUsers(userIDs []string, ev models.ChatEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Error("encode chat event", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	seen := make(map[string]struct{}, len(userIDs))
	for _, userID := range userIDs {
		if _, dup := seen[userID]; dup || userID == "" {
			continue
		}
		seen[userID] = struct{}{}

		h.mu.RLock()
		targets := make([]*client, 0, len(h.rooms[userID]))
		for _, c := range h.rooms[userID] {
			targets = append(targets, c)
		}
		h.mu.RUnlock()

		for _, c := range targets {
			if err := c.write(payload); err != nil {
				logger.Warn("websocket write error", zap.String("user_id", userID), zap.String("conn_id", c.info.ConnID), zap.Error(err))
				c.conn.Close()
				h.RemoveClient(userID, c.conn)
				h.publishWSError(c.info, err)
				continue
			}
			observability.IncWSEvent("user", ev.Type)
		}
	}
}

func (h *Hub) publishWSError(info ConnInfo, err error) {
	_ = observability.PublishEvent(context.Background(), wsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		RequestID: info.RequestID,
		TraceID:   info.TraceID,
		Payload:   wsPayload(info, "ws_error", err.Error()),
	})
	observability.IncWSEvent("user", "ws_error")
}

const wsRoutingKey = "ws_events.users"

func wsPayload(info ConnInfo, event, reason string) map[string]any {
	return map[string]any{
		"ws": map[string]any{
			"kind":        "user",
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]any{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
}
