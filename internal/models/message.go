package models

import (
	"database/sql"
	"time"
)

// Message types.
const (
	MessageText   = "text"
	MessageImage  = "image"
	MessageFile   = "file"
	MessageVoice  = "voice"
	MessageVideo  = "video"
	MessageSystem = "system"
)

// Message is a chat message; content holds text or a file URL.
type Message struct {
	ID             int64          `db:"id" json:"id"`
	ConversationID int64          `db:"conversation_id" json:"conversation_id"`
	SenderID       int64          `db:"sender_id" json:"sender_id"`
	MessageType    string         `db:"message_type" json:"message_type"`
	Content        string         `db:"content" json:"content"`
	FileURL        sql.NullString `db:"file_url" json:"file_url,omitempty"`
	FileName       sql.NullString `db:"file_name" json:"file_name,omitempty"`
	FileSize       sql.NullInt64  `db:"file_size" json:"file_size,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	DeletedAt      sql.NullTime   `db:"deleted_at" json:"deleted_at,omitempty"`
}

// OfflineMessage queues a message for a recipient who was offline at send
// time. Drained and deleted when the recipient reconnects.
type OfflineMessage struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	MessageID int64     `db:"message_id" json:"message_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ConversationEvent is broadcast through websockets.
type ConversationEvent struct {
	Type     string    `json:"type"`
	Message  *Message  `json:"message,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}
