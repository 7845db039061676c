package models

import (
	"database/sql"
	"time"
)

// Reaction resource types.
const (
	ResourcePost    int16 = 1
	ResourceComment int16 = 2
)

// Reaction types.
const (
	ReactionLike     int16 = 1
	ReactionFavorite int16 = 2
)

// Reaction records a reaction on a post or comment, idempotent on
// (reactor, resource_type, resource_id, reaction_type, idempotency_key).
type Reaction struct {
	ID             int64        `db:"id" json:"id"`
	ResourceType   int16        `db:"resource_type" json:"resource_type"`
	ResourceID     int64        `db:"resource_id" json:"resource_id"`
	ReactorID      int64        `db:"reactor_id" json:"reactor_id"`
	ReactionType   int16        `db:"reaction_type" json:"reaction_type"`
	IdempotencyKey string       `db:"idempotency_key" json:"-"`
	DeletedAt      sql.NullTime `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
}
