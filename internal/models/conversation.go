package models

import (
	"database/sql"
	"time"
)

// Conversation types.
const (
	ConversationPrivate = "private"
	ConversationGroup   = "group"
)

// Conversation is a private pairing or a named group.
type Conversation struct {
	ID               int64          `db:"id" json:"id"`
	ConversationType string         `db:"conversation_type" json:"conversation_type"`
	Name             sql.NullString `db:"name" json:"name,omitempty"`
	OwnerID          sql.NullInt64  `db:"owner_id" json:"owner_id,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	DeletedAt        sql.NullTime   `db:"deleted_at" json:"deleted_at,omitempty"`
}

// IsGroup reports whether the conversation is a group.
func (c Conversation) IsGroup() bool {
	return c.ConversationType == ConversationGroup
}

// ConversationMember is one user's membership row. left_at set means the
// membership is no longer active; rows are never removed.
type ConversationMember struct {
	ID             int64        `db:"id" json:"id"`
	ConversationID int64        `db:"conversation_id" json:"conversation_id"`
	UserID         int64        `db:"user_id" json:"user_id"`
	JoinedAt       time.Time    `db:"joined_at" json:"joined_at"`
	LeftAt         sql.NullTime `db:"left_at" json:"left_at,omitempty"`
}
