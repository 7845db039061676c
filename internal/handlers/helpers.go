package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"social-service/internal/domain"
)

const requestIDContextKey = "request_id"

// respondError translates a domain error into its HTTP status. Validation
// reasons are surfaced to the caller; store detail stays in the logs.
func respondError(c *gin.Context, err error) {
	status := domain.HTTPStatus(err)

	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(status, gin.H{"error": ve.Reason})
	case status == http.StatusInternalServerError:
		log.Printf("request failed: %v", err)
		c.JSON(status, gin.H{"error": "internal error"})
	default:
		c.JSON(status, gin.H{"error": err.Error()})
	}
}

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) int64 {
	if val, ok := c.Get("userID"); ok {
		if id, ok := val.(int64); ok {
			return id
		}
	}
	return 0
}

func usernameFromContext(c *gin.Context) string {
	if val, ok := c.Get("username"); ok {
		if name, ok := val.(string); ok {
			return name
		}
	}
	return ""
}

func auditUserID(c *gin.Context) *int64 {
	if id := userIDFromContext(c); id != 0 {
		return &id
	}
	return nil
}
