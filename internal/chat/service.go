package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"social-service/internal/config"
	"social-service/internal/domain"
	"social-service/internal/models"
	"social-service/internal/presence"
	"social-service/internal/store"
)

// SendMessageInput carries one message-send request. Zero FileSize means no
// file attached.
type SendMessageInput struct {
	ConversationID int64
	SenderID       int64
	MessageType    string
	Content        string
	FileURL        string
	FileName       string
	FileSize       int64
}

// Service is the conversation and messaging consistency layer.
type Service interface {
	UserOnline(ctx context.Context, userID int64, username string) ([]models.Message, error)
	UserOffline(userID int64)
	CreatePrivateConversation(ctx context.Context, userA, userB int64) (models.Conversation, error)
	CreateGroupConversation(ctx context.Context, ownerID int64, name string, memberIDs []int64) (models.Conversation, error)
	InviteToGroup(ctx context.Context, conversationID, inviterID int64, userIDs []int64) error
	SendMessage(ctx context.Context, in SendMessageInput) (models.Message, error)
	LeaveGroup(ctx context.Context, conversationID, userID int64) error
	DeleteConversation(ctx context.Context, conversationID, actorID int64) error
	ListConversations(ctx context.Context, userID int64) ([]models.Conversation, error)
	ListMessages(ctx context.Context, conversationID, userID int64, limit, offset int64) ([]models.Message, error)
	SearchUsers(ctx context.Context, query string, limit int64) ([]models.User, error)
}

// ChatService implements Service over the relational store. Presence is
// process-local and deliberately outside the transaction: a stale read costs
// at most one redundant offline row, never data loss.
type ChatService struct {
	mgr      *store.Manager
	presence *presence.Tracker
	now      func() time.Time
}

// NewChatService constructs a ChatService.
func NewChatService(mgr *store.Manager, tracker *presence.Tracker) *ChatService {
	return &ChatService{mgr: mgr, presence: tracker, now: time.Now}
}

// UserOnline marks the user online, then drains and deletes their queued
// offline messages, returned oldest-first for immediate delivery.
func (s *ChatService) UserOnline(ctx context.Context, userID int64, username string) ([]models.Message, error) {
	s.presence.Connect(userID, username)

	var drained []models.Message
	err := s.mgr.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &drained,
			`SELECT m.* FROM messages m
             INNER JOIN offline_messages om ON m.id = om.message_id
             WHERE om.user_id = $1
             ORDER BY m.created_at ASC`, userID); err != nil {
			return store.MapError(err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM offline_messages WHERE user_id = $1`, userID); err != nil {
			return store.MapError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return drained, nil
}

// UserOffline removes the user from the online set.
func (s *ChatService) UserOffline(userID int64) {
	s.presence.Disconnect(userID)
}

// CreatePrivateConversation returns the active private conversation between
// the pair if one exists, else creates the conversation and both memberships
// atomically. The advisory lock covers the lookup-or-create race: the key is
// derived from the pair, so no conversation row needs to exist yet.
func (s *ChatService) CreatePrivateConversation(ctx context.Context, userA, userB int64) (models.Conversation, error) {
	if userA == userB {
		return models.Conversation{}, domain.Validation("cannot start a conversation with yourself")
	}
	if userA > userB {
		userA, userB = userB, userA
	}

	var conv models.Conversation
	err := s.mgr.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := store.LockResource(ctx, tx, pairLockKey(userA, userB)); err != nil {
			return err
		}

		err := tx.GetContext(ctx, &conv,
			`SELECT c.* FROM conversations c
             INNER JOIN conversation_members cm1 ON c.id = cm1.conversation_id AND cm1.user_id = $1
             INNER JOIN conversation_members cm2 ON c.id = cm2.conversation_id AND cm2.user_id = $2
             WHERE c.conversation_type = 'private' AND c.deleted_at IS NULL
             AND cm1.left_at IS NULL AND cm2.left_at IS NULL
             LIMIT 1`, userA, userB)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return store.MapError(err)
		}

		if err := tx.GetContext(ctx, &conv,
			`INSERT INTO conversations (conversation_type) VALUES ('private') RETURNING *`); err != nil {
			return store.MapError(err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_members (conversation_id, user_id) VALUES ($1, $2), ($1, $3)`,
			conv.ID, userA, userB); err != nil {
			return store.MapError(err)
		}
		return nil
	})
	return conv, err
}

// CreateGroupConversation validates the name and total member count, then
// creates the conversation, owner membership and deduplicated member rows
// under one bounded transaction.
func (s *ChatService) CreateGroupConversation(ctx context.Context, ownerID int64, name string, memberIDs []int64) (models.Conversation, error) {
	if err := validateGroupParams(name, memberIDs); err != nil {
		return models.Conversation{}, err
	}

	var conv models.Conversation
	err := s.mgr.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &conv,
			`INSERT INTO conversations (conversation_type, name, owner_id)
             VALUES ('group', $1, $2) RETURNING *`, name, ownerID); err != nil {
			return store.MapError(err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_members (conversation_id, user_id) VALUES ($1, $2)`,
			conv.ID, ownerID); err != nil {
			return store.MapError(err)
		}
		for _, memberID := range dedupe(memberIDs, ownerID) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO conversation_members (conversation_id, user_id) VALUES ($1, $2)`,
				conv.ID, memberID); err != nil {
				return store.MapError(err)
			}
		}
		return nil
	})
	return conv, err
}

// InviteToGroup adds users to a group conversation under the conversation
// lock. Re-inviting an active member is a no-op.
func (s *ChatService) InviteToGroup(ctx context.Context, conversationID, inviterID int64, userIDs []int64) error {
	if len(userIDs) == 0 {
		return domain.Validation("invite list is empty")
	}

	return s.mgr.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := store.LockResource(ctx, tx, conversationID); err != nil {
			return err
		}

		conv, err := lockConversationRow(ctx, tx, conversationID)
		if err != nil {
			return err
		}
		if !conv.IsGroup() {
			return domain.Validation("can only invite users to a group")
		}

		active, err := isActiveMember(ctx, tx, conversationID, inviterID)
		if err != nil {
			return err
		}
		if !active {
			return domain.Validation("you are not a member of this group")
		}

		var current int64
		if err := tx.GetContext(ctx, &current,
			`SELECT COUNT(*) FROM conversation_members
             WHERE conversation_id = $1 AND left_at IS NULL`, conversationID); err != nil {
			return store.MapError(err)
		}
		if current+int64(len(userIDs)) > config.MaxGroupMembers {
			return domain.Validation(fmt.Sprintf("group would exceed max %d members", config.MaxGroupMembers))
		}

		for _, userID := range dedupe(userIDs, 0) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO conversation_members (conversation_id, user_id)
                 VALUES ($1, $2)
                 ON CONFLICT (conversation_id, user_id) WHERE left_at IS NULL DO NOTHING`,
				conversationID, userID); err != nil {
				return store.MapError(err)
			}
		}
		return nil
	})
}

// SendMessage persists a message after interval, membership and conversation
// checks, and queues an offline row for every other active member not in the
// online set.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (models.Message, error) {
	if err := validateMessage(in.Content, in.FileSize); err != nil {
		return models.Message{}, err
	}
	if err := s.checkMessageInterval(ctx, in.SenderID, in.ConversationID); err != nil {
		return models.Message{}, err
	}

	var msg models.Message
	err := s.mgr.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := store.LockResource(ctx, tx, in.ConversationID); err != nil {
			return err
		}
		if _, err := lockConversationRow(ctx, tx, in.ConversationID); err != nil {
			return err
		}

		// NOWAIT: a racing membership change surfaces as Locked, we never
		// wait on it.
		var memberRowID int64
		err := tx.GetContext(ctx, &memberRowID,
			`SELECT id FROM conversation_members
             WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL
             FOR UPDATE NOWAIT`, in.ConversationID, in.SenderID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Validation("you are not a member of this conversation")
		}
		if err != nil {
			return store.MapError(err)
		}

		if err := tx.GetContext(ctx, &msg,
			`INSERT INTO messages (conversation_id, sender_id, message_type, content, file_url, file_name, file_size)
             VALUES ($1, $2, $3, $4, $5, $6, $7)
             RETURNING *`,
			in.ConversationID, in.SenderID, in.MessageType, in.Content,
			nullString(in.FileURL), nullString(in.FileName), nullInt64(in.FileSize)); err != nil {
			return store.MapError(err)
		}

		var memberIDs []int64
		if err := tx.SelectContext(ctx, &memberIDs,
			`SELECT user_id FROM conversation_members
             WHERE conversation_id = $1 AND left_at IS NULL`, in.ConversationID); err != nil {
			return store.MapError(err)
		}
		for _, memberID := range memberIDs {
			if memberID == in.SenderID || s.presence.IsOnline(memberID) {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO offline_messages (user_id, message_id) VALUES ($1, $2)`,
				memberID, msg.ID); err != nil {
				return store.MapError(err)
			}
		}
		return nil
	})
	return msg, err
}

// LeaveGroup marks the membership left. The owner cannot leave; they must
// transfer ownership or delete the group.
func (s *ChatService) LeaveGroup(ctx context.Context, conversationID, userID int64) error {
	return s.mgr.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := store.LockResource(ctx, tx, conversationID); err != nil {
			return err
		}

		conv, err := lockConversationRow(ctx, tx, conversationID)
		if err != nil {
			return err
		}
		if !conv.IsGroup() {
			return domain.Validation("can only leave a group")
		}
		if conv.OwnerID.Valid && conv.OwnerID.Int64 == userID {
			return domain.Validation("the owner cannot leave; transfer ownership or delete the group")
		}

		var leftAt sql.NullTime
		err = tx.GetContext(ctx, &leftAt,
			`SELECT left_at FROM conversation_members
             WHERE conversation_id = $1 AND user_id = $2
             FOR UPDATE NOWAIT`, conversationID, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return store.MapError(err)
		}
		if leftAt.Valid {
			return domain.ErrGone
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE conversation_members SET left_at = NOW()
             WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL`,
			conversationID, userID); err != nil {
			return store.MapError(err)
		}
		return nil
	})
}

// DeleteConversation soft-deletes the conversation, cascades the soft-delete
// to its messages and purges associated offline rows. Group deletion is
// owner-only; private deletion requires active membership.
func (s *ChatService) DeleteConversation(ctx context.Context, conversationID, actorID int64) error {
	return s.mgr.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := store.LockResource(ctx, tx, conversationID); err != nil {
			return err
		}

		conv, err := lockConversationRow(ctx, tx, conversationID)
		if err != nil {
			return err
		}

		if conv.IsGroup() {
			if !conv.OwnerID.Valid || conv.OwnerID.Int64 != actorID {
				return domain.Validation("only the owner can delete a group")
			}
		} else {
			active, err := isActiveMember(ctx, tx, conversationID, actorID)
			if err != nil {
				return err
			}
			if !active {
				return domain.Validation("you are not a member of this conversation")
			}
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE conversations SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`,
			conversationID)
		if err != nil {
			return store.MapError(err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return domain.ErrGone
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE messages SET deleted_at = NOW() WHERE conversation_id = $1 AND deleted_at IS NULL`,
			conversationID); err != nil {
			return store.MapError(err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM offline_messages WHERE message_id IN
             (SELECT id FROM messages WHERE conversation_id = $1)`,
			conversationID); err != nil {
			return store.MapError(err)
		}
		return nil
	})
}

// ListConversations returns the user's active conversations, newest-first.
func (s *ChatService) ListConversations(ctx context.Context, userID int64) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := s.mgr.DB().SelectContext(ctx, &convs,
		`SELECT c.* FROM conversations c
         INNER JOIN conversation_members cm ON c.id = cm.conversation_id
         WHERE cm.user_id = $1 AND cm.left_at IS NULL AND c.deleted_at IS NULL
         ORDER BY c.id DESC`, userID)
	if err != nil {
		return nil, store.MapError(err)
	}
	return convs, nil
}

// ListMessages returns a page of message history after membership checks.
func (s *ChatService) ListMessages(ctx context.Context, conversationID, userID int64, limit, offset int64) ([]models.Message, error) {
	var conv models.Conversation
	err := s.mgr.DB().GetContext(ctx, &conv,
		`SELECT * FROM conversations WHERE id = $1 AND deleted_at IS NULL`, conversationID)
	if err != nil {
		return nil, store.MapError(err)
	}

	var memberCount int64
	if err := s.mgr.DB().GetContext(ctx, &memberCount,
		`SELECT COUNT(*) FROM conversation_members
         WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL`,
		conversationID, userID); err != nil {
		return nil, store.MapError(err)
	}
	if memberCount == 0 {
		return nil, domain.Validation("you are not a member of this conversation")
	}

	var msgs []models.Message
	if err := s.mgr.DB().SelectContext(ctx, &msgs,
		`SELECT * FROM messages
         WHERE conversation_id = $1 AND deleted_at IS NULL
         ORDER BY created_at DESC
         LIMIT $2 OFFSET $3`, conversationID, limit, offset); err != nil {
		return nil, store.MapError(err)
	}
	return msgs, nil
}

// SearchUsers finds users by username fragment, for invite pickers.
func (s *ChatService) SearchUsers(ctx context.Context, query string, limit int64) ([]models.User, error) {
	var users []models.User
	err := s.mgr.DB().SelectContext(ctx, &users,
		`SELECT id, username FROM users WHERE username ILIKE $1 LIMIT $2`,
		"%"+query+"%", limit)
	if err != nil {
		return nil, store.MapError(err)
	}
	return users, nil
}

// checkMessageInterval rejects a second message from the same sender in the
// same conversation inside the minimum interval.
func (s *ChatService) checkMessageInterval(ctx context.Context, senderID, conversationID int64) error {
	var last time.Time
	err := s.mgr.DB().GetContext(ctx, &last,
		`SELECT created_at FROM messages
         WHERE sender_id = $1 AND conversation_id = $2
         ORDER BY created_at DESC
         LIMIT 1`, senderID, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return store.MapError(err)
	}
	if s.now().Sub(last) < config.MessageMinInterval {
		return domain.ErrTooManyRequests
	}
	return nil
}

type convRow = models.Conversation

// lockConversationRow reads the conversation under a NOWAIT row lock,
// mapping absence to NotFound, soft-deletion to Gone and contention to
// Locked.
func lockConversationRow(ctx context.Context, tx *sqlx.Tx, conversationID int64) (convRow, error) {
	var conv convRow
	err := tx.GetContext(ctx, &conv,
		`SELECT * FROM conversations WHERE id = $1 FOR UPDATE NOWAIT`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return convRow{}, domain.ErrNotFound
	}
	if err != nil {
		return convRow{}, store.MapError(err)
	}
	if conv.DeletedAt.Valid {
		return convRow{}, domain.ErrGone
	}
	return conv, nil
}

func isActiveMember(ctx context.Context, tx *sqlx.Tx, conversationID, userID int64) (bool, error) {
	var count int64
	if err := tx.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM conversation_members
         WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL`,
		conversationID, userID); err != nil {
		return false, store.MapError(err)
	}
	return count > 0, nil
}

// validateMessage enforces the content length and file size caps.
func validateMessage(content string, fileSize int64) error {
	if len(content) > config.MaxMessageLength {
		return domain.Validation(fmt.Sprintf("message exceeds max %d characters", config.MaxMessageLength))
	}
	if fileSize > config.MaxFileSize {
		return domain.Validation(fmt.Sprintf("file exceeds max %d MiB", config.MaxFileSize/1024/1024))
	}
	return nil
}

// validateGroupParams enforces the name and member-count bounds; the count
// includes the owner.
func validateGroupParams(name string, memberIDs []int64) error {
	if strings.TrimSpace(name) == "" {
		return domain.Validation("group name must not be empty")
	}
	if len([]rune(name)) > config.MaxGroupNameLen {
		return domain.Validation(fmt.Sprintf("group name exceeds max %d characters", config.MaxGroupNameLen))
	}
	if len(memberIDs)+1 > config.MaxGroupMembers {
		return domain.Validation(fmt.Sprintf("group exceeds max %d members", config.MaxGroupMembers))
	}
	return nil
}

// dedupe removes duplicates and the excluded id, preserving input order.
func dedupe(ids []int64, exclude int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == exclude {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// pairLockKey derives a stable advisory-lock key for an ordered user pair so
// the private-conversation create race serializes before any row exists.
func pairLockKey(userA, userB int64) int64 {
	return userA*1_000_003 + userB
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
