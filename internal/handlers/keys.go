package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"social-service/internal/secretkey"
	"social-service/internal/telemetry"
)

// KeyHandler exposes the ephemeral key endpoints.
type KeyHandler struct {
	keys  secretkey.Service
	audit *telemetry.AuditEmitter
}

// NewKeyHandler builds a KeyHandler.
func NewKeyHandler(keySvc secretkey.Service, audit *telemetry.AuditEmitter) *KeyHandler {
	return &KeyHandler{keys: keySvc, audit: audit}
}

// GenerateTemp mints a single-use temp key for the caller.
func (h *KeyHandler) GenerateTemp(c *gin.Context) {
	var req struct {
		KeyType  string `json:"key_type" binding:"required"`
		Metadata string `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key, err := h.keys.GenerateTempKey(c.Request.Context(),
		userIDFromContext(c), usernameFromContext(c),
		c.GetHeader("User-Agent"), req.KeyType, req.Metadata)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"key":     key,
		"display": secretkey.ObfuscateKey(key),
	})
}

// UseTemp redeems a temp key once.
func (h *KeyHandler) UseTemp(c *gin.Context) {
	var req struct {
		Key string `json:"key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ownerID, metadata, err := h.keys.ValidateAndUseTempKey(c.Request.Context(), req.Key, userIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "info", "temp key redeemed",
		requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusOK, gin.H{"user_id": ownerID, "metadata": metadata})
}

// WsKey issues the websocket session key for a conversation. The same key
// comes back while the previous connection is still registered.
func (h *KeyHandler) WsKey(c *gin.Context) {
	conversationID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}

	key := h.keys.GenerateWsKey(userIDFromContext(c), conversationID)
	c.JSON(http.StatusOK, gin.H{"key": key})
}
