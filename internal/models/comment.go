package models

import (
	"database/sql"
	"time"
)

// Post is owned by an external posting subsystem; only the columns the
// consistency layer reads are modeled here.
type Post struct {
	ID        int64        `db:"id" json:"id"`
	AuthorID  int64        `db:"author_id" json:"author_id"`
	LockedAt  sql.NullTime `db:"locked_at" json:"locked_at,omitempty"`
	DeletedAt sql.NullTime `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Comment is a node in a two-level tree: top-level comments have a null
// parent, replies point at a top-level comment.
type Comment struct {
	ID              int64         `db:"id" json:"id"`
	PostID          int64         `db:"post_id" json:"post_id"`
	AuthorID        int64         `db:"author_id" json:"author_id"`
	ParentCommentID sql.NullInt64 `db:"parent_comment_id" json:"parent_comment_id,omitempty"`
	Content         string        `db:"content" json:"content"`
	AtUserID        sql.NullInt64 `db:"at_user_id" json:"at_user_id,omitempty"`
	IdempotencyKey  string        `db:"idempotency_key" json:"-"`
	DeletedAt       sql.NullTime  `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}

// CommentThread pairs a top-level comment with its replies, both newest-first.
type CommentThread struct {
	Comment Comment   `json:"comment"`
	Replies []Comment `json:"replies"`
}

// PostStatus is the tri-state result consulted before write attempts.
type PostStatus struct {
	Exists  bool `json:"exists"`
	Deleted bool `json:"deleted"`
	Locked  bool `json:"locked"`
}
