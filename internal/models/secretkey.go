package models

import (
	"database/sql"
	"time"
)

// Temp key purposes.
const (
	TempKeyFileDownload = "file_download"
	TempKeyFileUpload   = "file_upload"
	TempKeyAPIAccess    = "api_access"
	TempKeyDataExport   = "data_export"
)

// TempSecretKey is a single-use, short-TTL capability key. Looked up by
// key_hash; at most one unused key per user is enforced by the store.
type TempSecretKey struct {
	ID        int64          `db:"id" json:"id"`
	KeyValue  string         `db:"key_value" json:"-"`
	KeyHash   string         `db:"key_hash" json:"-"`
	UserID    int64          `db:"user_id" json:"user_id"`
	KeyType   string         `db:"key_type" json:"key_type"`
	Used      bool           `db:"used" json:"used"`
	UsedAt    sql.NullTime   `db:"used_at" json:"used_at,omitempty"`
	ExpiresAt time.Time      `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	Metadata  sql.NullString `db:"metadata" json:"metadata,omitempty"`
}

// WebSocketKey is a per-(user, conversation) session key held only in
// process memory for the life of a connection.
type WebSocketKey struct {
	KeyValue       string    `json:"key_value"`
	UserID         int64     `json:"user_id"`
	ConversationID int64     `json:"conversation_id"`
	ConnectedAt    time.Time `json:"connected_at"`
	LastActive     time.Time `json:"last_active"`
}

// User is the minimal projection used by invite search.
type User struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
}
