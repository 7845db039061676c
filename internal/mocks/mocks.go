package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"social-service/internal/chat"
	"social-service/internal/comments"
	"social-service/internal/models"
)

type ChatServiceMock struct {
	mock.Mock
}

func (m *ChatServiceMock) UserOnline(ctx context.Context, userID int64, username string) ([]models.Message, error) {
	args := m.Called(ctx, userID, username)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *ChatServiceMock) UserOffline(userID int64) {
	m.Called(userID)
}

func (m *ChatServiceMock) CreatePrivateConversation(ctx context.Context, userA, userB int64) (models.Conversation, error) {
	args := m.Called(ctx, userA, userB)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ChatServiceMock) CreateGroupConversation(ctx context.Context, ownerID int64, name string, memberIDs []int64) (models.Conversation, error) {
	args := m.Called(ctx, ownerID, name, memberIDs)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ChatServiceMock) InviteToGroup(ctx context.Context, conversationID, inviterID int64, userIDs []int64) error {
	args := m.Called(ctx, conversationID, inviterID, userIDs)
	return args.Error(0)
}

func (m *ChatServiceMock) SendMessage(ctx context.Context, in chat.SendMessageInput) (models.Message, error) {
	args := m.Called(ctx, in)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *ChatServiceMock) LeaveGroup(ctx context.Context, conversationID, userID int64) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *ChatServiceMock) DeleteConversation(ctx context.Context, conversationID, actorID int64) error {
	args := m.Called(ctx, conversationID, actorID)
	return args.Error(0)
}

func (m *ChatServiceMock) ListConversations(ctx context.Context, userID int64) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	var convs []models.Conversation
	if val := args.Get(0); val != nil {
		convs = val.([]models.Conversation)
	}
	return convs, args.Error(1)
}

func (m *ChatServiceMock) ListMessages(ctx context.Context, conversationID, userID int64, limit, offset int64) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, userID, limit, offset)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *ChatServiceMock) SearchUsers(ctx context.Context, query string, limit int64) ([]models.User, error) {
	args := m.Called(ctx, query, limit)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

type CommentServiceMock struct {
	mock.Mock
}

func (m *CommentServiceMock) CreateComment(ctx context.Context, in comments.CreateCommentInput) (models.Comment, error) {
	args := m.Called(ctx, in)
	var comment models.Comment
	if val := args.Get(0); val != nil {
		comment = val.(models.Comment)
	}
	return comment, args.Error(1)
}

func (m *CommentServiceMock) BatchCreateComments(ctx context.Context, inputs []comments.CreateCommentInput) ([]models.Comment, error) {
	args := m.Called(ctx, inputs)
	var created []models.Comment
	if val := args.Get(0); val != nil {
		created = val.([]models.Comment)
	}
	return created, args.Error(1)
}

func (m *CommentServiceMock) DeletePostSoft(ctx context.Context, postID, actorID int64) error {
	args := m.Called(ctx, postID, actorID)
	return args.Error(0)
}

func (m *CommentServiceMock) DeleteCommentSoft(ctx context.Context, commentID, actorID int64) error {
	args := m.Called(ctx, commentID, actorID)
	return args.Error(0)
}

func (m *CommentServiceMock) ReactIdempotent(ctx context.Context, resourceType int16, resourceID, reactorID int64, reactionType int16, idempotencyKey string) error {
	args := m.Called(ctx, resourceType, resourceID, reactorID, reactionType, idempotencyKey)
	return args.Error(0)
}

func (m *CommentServiceMock) GetCommentsTree(ctx context.Context, postID int64) ([]models.CommentThread, error) {
	args := m.Called(ctx, postID)
	var threads []models.CommentThread
	if val := args.Get(0); val != nil {
		threads = val.([]models.CommentThread)
	}
	return threads, args.Error(1)
}

func (m *CommentServiceMock) CheckPostStatus(ctx context.Context, postID int64) (models.PostStatus, error) {
	args := m.Called(ctx, postID)
	var status models.PostStatus
	if val := args.Get(0); val != nil {
		status = val.(models.PostStatus)
	}
	return status, args.Error(1)
}

type SecretKeyServiceMock struct {
	mock.Mock
}

func (m *SecretKeyServiceMock) GenerateTempKey(ctx context.Context, userID int64, username, userAgent, keyType string, metadata string) (string, error) {
	args := m.Called(ctx, userID, username, userAgent, keyType, metadata)
	return args.String(0), args.Error(1)
}

func (m *SecretKeyServiceMock) ValidateAndUseTempKey(ctx context.Context, keyValue string, requestingUserID int64) (int64, string, error) {
	args := m.Called(ctx, keyValue, requestingUserID)
	return args.Get(0).(int64), args.String(1), args.Error(2)
}

func (m *SecretKeyServiceMock) CleanupExpiredTempKeys(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *SecretKeyServiceMock) GenerateWsKey(userID, conversationID int64) string {
	args := m.Called(userID, conversationID)
	return args.String(0)
}

func (m *SecretKeyServiceMock) ValidateWsKey(keyValue string) (int64, int64, error) {
	args := m.Called(keyValue)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *SecretKeyServiceMock) RemoveWsKey(keyValue string) {
	m.Called(keyValue)
}

func (m *SecretKeyServiceMock) UserWsKeys(userID int64) []string {
	args := m.Called(userID)
	var keys []string
	if val := args.Get(0); val != nil {
		keys = val.([]string)
	}
	return keys
}

// TokenValidatorMock stands in for the external auth service.
type TokenValidatorMock struct {
	mock.Mock
}

func (m *TokenValidatorMock) ValidateToken(ctx context.Context, token string) (int64, string, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(int64), args.String(1), args.Error(2)
}
