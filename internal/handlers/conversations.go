package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"social-service/internal/chat"
	"social-service/internal/models"
	"social-service/internal/telemetry"
	"social-service/internal/ws"
)

// ConversationHandler exposes conversation and messaging endpoints. It does
// no coordination of its own; every multi-step decision lives in the chat
// service.
type ConversationHandler struct {
	chat  chat.Service
	hub   *ws.Hub
	audit *telemetry.AuditEmitter
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(chatSvc chat.Service, hub *ws.Hub, audit *telemetry.AuditEmitter) *ConversationHandler {
	return &ConversationHandler{chat: chatSvc, hub: hub, audit: audit}
}

// ListConversations returns the caller's active conversations.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	convs, err := h.chat.ListConversations(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// StartPrivate creates or returns the private conversation with another user.
func (h *ConversationHandler) StartPrivate(c *gin.Context) {
	var req struct {
		FriendID int64 `json:"friend_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := userIDFromContext(c)
	if userID == req.FriendID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start a conversation with yourself"})
		return
	}

	conv, err := h.chat.CreatePrivateConversation(c.Request.Context(), userID, req.FriendID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// CreateGroup creates a group conversation owned by the caller.
func (h *ConversationHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Name      string  `json:"name" binding:"required"`
		MemberIDs []int64 `json:"member_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.chat.CreateGroupConversation(c.Request.Context(), userIDFromContext(c), req.Name, req.MemberIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversation": conv})
}

// Invite adds users to a group conversation.
func (h *ConversationHandler) Invite(c *gin.Context) {
	conversationID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}
	var req struct {
		UserIDs []int64 `json:"user_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.chat.InviteToGroup(c.Request.Context(), conversationID, userIDFromContext(c), req.UserIDs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "invited"})
}

// ListMessages returns a page of messages, newest first.
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	conversationID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}
	limit := queryInt64(c, "limit", 50)
	offset := queryInt64(c, "offset", 0)

	msgs, err := h.chat.ListMessages(c.Request.Context(), conversationID, userIDFromContext(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage sends a message and broadcasts it to the conversation's open
// websockets.
func (h *ConversationHandler) PostMessage(c *gin.Context) {
	conversationID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}
	var req struct {
		MessageType string `json:"message_type"`
		Content     string `json:"content"`
		FileURL     string `json:"file_url"`
		FileName    string `json:"file_name"`
		FileSize    int64  `json:"file_size"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MessageType == "" {
		req.MessageType = models.MessageText
	}

	msg, err := h.chat.SendMessage(c.Request.Context(), chat.SendMessageInput{
		ConversationID: conversationID,
		SenderID:       userIDFromContext(c),
		MessageType:    req.MessageType,
		Content:        req.Content,
		FileURL:        req.FileURL,
		FileName:       req.FileName,
		FileSize:       req.FileSize,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.hub.Broadcast(conversationID, models.ConversationEvent{Type: "message", Message: &msg})
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// Leave removes the caller from a group conversation.
func (h *ConversationHandler) Leave(c *gin.Context) {
	conversationID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}

	if err := h.chat.LeaveGroup(c.Request.Context(), conversationID, userIDFromContext(c)); err != nil {
		respondError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "info",
		fmt.Sprintf("user left conversation %d", conversationID),
		requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusOK, gin.H{"status": "left"})
}

// Delete soft-deletes a conversation and everything under it.
func (h *ConversationHandler) Delete(c *gin.Context) {
	conversationID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}

	if err := h.chat.DeleteConversation(c.Request.Context(), conversationID, userIDFromContext(c)); err != nil {
		respondError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "warn",
		fmt.Sprintf("conversation %d deleted", conversationID),
		requestIDFromContext(c), auditUserID(c))
	h.hub.Broadcast(conversationID, models.ConversationEvent{Type: "conversation_deleted"})
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// SearchUsers finds users by username prefix for invites.
func (h *ConversationHandler) SearchUsers(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query"})
		return
	}

	users, err := h.chat.SearchUsers(c.Request.Context(), query, queryInt64(c, "limit", 20))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func queryInt64(c *gin.Context, name string, fallback int64) int64 {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || val < 0 {
		return fallback
	}
	return val
}
