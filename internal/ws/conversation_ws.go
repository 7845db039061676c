package ws

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"social-service/internal/chat"
	"social-service/internal/events"
	"social-service/internal/models"
	"social-service/internal/observability"
	"social-service/internal/secretkey"
)

// ConversationHandler upgrades websocket connections for one conversation.
// The client presents the session key minted earlier over the authenticated
// HTTP surface; presence flips on connect and disconnect.
type ConversationHandler struct {
	hub       *Hub
	keys      secretkey.Service
	chat      chat.Service
	publisher events.Publisher
}

// NewConversationHandler constructs a ConversationHandler.
func NewConversationHandler(hub *Hub, keys secretkey.Service, chatSvc chat.Service, publisher events.Publisher) *ConversationHandler {
	return &ConversationHandler{hub: hub, keys: keys, chat: chatSvc, publisher: publisher}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle validates the session key, upgrades, and keeps the connection
// registered until the read loop ends.
func (h *ConversationHandler) Handle(c *gin.Context) {
	conversationID, err := strconv.ParseInt(c.Param("conversation_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	ctx, span := otel.Tracer("social-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	sessionKey := c.Query("key")
	userID, keyConversationID, err := h.keys.ValidateWsKey(sessionKey)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session key"})
		return
	}
	if keyConversationID != conversationID {
		c.JSON(http.StatusForbidden, gin.H{"error": "key not valid for conversation"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		ConnectedAt: time.Now(),
	}
	h.hub.Add(conversationID, conn, info)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishEvent(conversationID, info, "ws_connect", "")

	drained, err := h.chat.UserOnline(ctx, userID, c.Query("username"))
	if err == nil && len(drained) > 0 {
		_ = conn.WriteJSON(models.ConversationEvent{Type: "offline_messages", Messages: drained})
	}

	go func() {
		var closeReason string
		defer func() {
			h.hub.Remove(conversationID, conn)
			h.chat.UserOffline(userID)
			h.keys.RemoveWsKey(sessionKey)
			observability.DecWSActive()
			observability.IncWSEvent("ws_disconnect")
			h.publishEvent(conversationID, info, "ws_disconnect", closeReason)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("ws_error")
				}
				return
			}
		}
	}()
}

func (h *ConversationHandler) publishEvent(conversationID int64, info ConnInfo, event, reason string) {
	if h.publisher == nil {
		return
	}
	payload := map[string]any{
		"ws": map[string]any{
			"conversation_id": conversationID,
			"event":           event,
			"conn_id":         info.ConnID,
			"duration_ms":     time.Since(info.ConnectedAt).Milliseconds(),
			"reason":          reason,
		},
		"identity": map[string]any{
			"user_id":    info.UserID,
			"ip":         info.IP,
			"request_id": info.RequestID,
		},
	}
	_ = h.publisher.PublishJSON(context.Background(), "ws_events.conversations", payload)
}

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
