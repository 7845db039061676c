package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"social-service/internal/events"
	"social-service/internal/models"
	"social-service/internal/observability"
)

// ConnInfo identifies one live websocket connection for event reporting.
type ConnInfo struct {
	ConnID      string
	UserID      int64
	IP          string
	RequestID   string
	ConnectedAt time.Time
}

// Hub maintains the active connections per conversation. Broadcast is
// best-effort: a failed write closes that connection and drops it, the
// message is not retried.
type Hub struct {
	rooms     map[int64]map[*websocket.Conn]ConnInfo
	mu        sync.RWMutex
	publisher events.Publisher
}

// NewHub creates an empty hub.
func NewHub(publisher events.Publisher) *Hub {
	return &Hub{
		rooms:     make(map[int64]map[*websocket.Conn]ConnInfo),
		publisher: publisher,
	}
}

// Add registers a connection with a conversation room.
func (h *Hub) Add(conversationID int64, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.rooms[conversationID][conn] = info
}

// Remove drops a connection from its conversation room.
func (h *Hub) Remove(conversationID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[conversationID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, conversationID)
		}
	}
}

// Count reports how many connections a conversation room holds.
func (h *Hub) Count(conversationID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

// Broadcast sends an event to every connection in a conversation room.
func (h *Hub) Broadcast(conversationID int64, event models.ConversationEvent) {
	h.mu.RLock()
	conns := make(map[*websocket.Conn]ConnInfo, len(h.rooms[conversationID]))
	for conn, info := range h.rooms[conversationID] {
		conns[conn] = info
	}
	h.mu.RUnlock()

	for conn, info := range conns {
		if err := conn.WriteJSON(event); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.Remove(conversationID, conn)
			h.publishWSError(conversationID, info, err)
		}
	}
}

func (h *Hub) publishWSError(conversationID int64, info ConnInfo, err error) {
	observability.IncWSEvent("ws_error")
	if h.publisher == nil {
		return
	}
	payload := map[string]any{
		"ws": map[string]any{
			"conversation_id": conversationID,
			"event":           "ws_error",
			"conn_id":         info.ConnID,
			"duration_ms":     time.Since(info.ConnectedAt).Milliseconds(),
			"reason":          err.Error(),
		},
		"identity": map[string]any{
			"user_id":    info.UserID,
			"ip":         info.IP,
			"request_id": info.RequestID,
		},
	}
	_ = h.publisher.PublishJSON(context.Background(), "ws_events.conversations", payload)
}
