package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"social-service/internal/comments"
	"social-service/internal/observability"
	"social-service/internal/telemetry"
)

// CommentHandler exposes the comment, post and reaction endpoints.
type CommentHandler struct {
	comments comments.Service
	audit    *telemetry.AuditEmitter
}

// NewCommentHandler builds a CommentHandler.
func NewCommentHandler(commentSvc comments.Service, audit *telemetry.AuditEmitter) *CommentHandler {
	return &CommentHandler{comments: commentSvc, audit: audit}
}

type createCommentRequest struct {
	ParentCommentID int64  `json:"parent_comment_id"`
	Content         string `json:"content" binding:"required"`
	AtUserID        int64  `json:"at_user_id"`
	IdempotencyKey  string `json:"idempotency_key" binding:"required"`
}

// Create inserts a comment on a post.
func (h *CommentHandler) Create(c *gin.Context) {
	postID, ok := pathID(c, "post_id")
	if !ok {
		return
	}
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.comments.CreateComment(c.Request.Context(), comments.CreateCommentInput{
		PostID:          postID,
		AuthorID:        userIDFromContext(c),
		ParentCommentID: req.ParentCommentID,
		Content:         req.Content,
		AtUserID:        req.AtUserID,
		IdempotencyKey:  req.IdempotencyKey,
		IPKey:           observability.IPFromRequest(c.Request),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

// BatchCreate inserts several comments on one post atomically.
func (h *CommentHandler) BatchCreate(c *gin.Context) {
	postID, ok := pathID(c, "post_id")
	if !ok {
		return
	}
	var req struct {
		Comments []createCommentRequest `json:"comments" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := userIDFromContext(c)
	ip := observability.IPFromRequest(c.Request)
	inputs := make([]comments.CreateCommentInput, 0, len(req.Comments))
	for _, item := range req.Comments {
		inputs = append(inputs, comments.CreateCommentInput{
			PostID:          postID,
			AuthorID:        userID,
			ParentCommentID: item.ParentCommentID,
			Content:         item.Content,
			AtUserID:        item.AtUserID,
			IdempotencyKey:  item.IdempotencyKey,
			IPKey:           ip,
		})
	}

	created, err := h.comments.BatchCreateComments(c.Request.Context(), inputs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comments": created})
}

// Tree returns the post's comments with replies nested one level deep.
func (h *CommentHandler) Tree(c *gin.Context) {
	postID, ok := pathID(c, "post_id")
	if !ok {
		return
	}

	threads, err := h.comments.GetCommentsTree(c.Request.Context(), postID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": threads})
}

// DeleteComment soft-deletes a comment, cascading to replies when it is
// top-level.
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	commentID, ok := pathID(c, "comment_id")
	if !ok {
		return
	}

	if err := h.comments.DeleteCommentSoft(c.Request.Context(), commentID, userIDFromContext(c)); err != nil {
		respondError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "warn",
		fmt.Sprintf("comment %d deleted", commentID),
		requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// PostStatus reports whether a post exists, is deleted, or is locked.
func (h *CommentHandler) PostStatus(c *gin.Context) {
	postID, ok := pathID(c, "post_id")
	if !ok {
		return
	}

	status, err := h.comments.CheckPostStatus(c.Request.Context(), postID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// DeletePost soft-deletes a post and cascades to its comments and reactions.
func (h *CommentHandler) DeletePost(c *gin.Context) {
	postID, ok := pathID(c, "post_id")
	if !ok {
		return
	}

	if err := h.comments.DeletePostSoft(c.Request.Context(), postID, userIDFromContext(c)); err != nil {
		respondError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "warn",
		fmt.Sprintf("post %d deleted", postID),
		requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// React records a like or favorite on a post or comment, idempotently.
func (h *CommentHandler) React(c *gin.Context) {
	var req struct {
		ResourceType   int16  `json:"resource_type" binding:"required"`
		ResourceID     int64  `json:"resource_id" binding:"required"`
		ReactionType   int16  `json:"reaction_type" binding:"required"`
		IdempotencyKey string `json:"idempotency_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.comments.ReactIdempotent(c.Request.Context(),
		req.ResourceType, req.ResourceID, userIDFromContext(c), req.ReactionType, req.IdempotencyKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}
