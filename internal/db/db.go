package db

import (
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            username TEXT NOT NULL UNIQUE,
            api_token TEXT UNIQUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS conversations (
            id BIGSERIAL PRIMARY KEY,
            conversation_type TEXT NOT NULL CHECK (conversation_type IN ('private', 'group')),
            name TEXT,
            owner_id BIGINT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            deleted_at TIMESTAMPTZ
        );`,
		`CREATE TABLE IF NOT EXISTS conversation_members (
            id BIGSERIAL PRIMARY KEY,
            conversation_id BIGINT NOT NULL REFERENCES conversations(id),
            user_id BIGINT NOT NULL,
            joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            left_at TIMESTAMPTZ
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS conversation_members_active_uniq
            ON conversation_members (conversation_id, user_id) WHERE left_at IS NULL;`,
		`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            conversation_id BIGINT NOT NULL REFERENCES conversations(id),
            sender_id BIGINT NOT NULL,
            message_type TEXT NOT NULL DEFAULT 'text',
            content TEXT NOT NULL,
            file_url TEXT,
            file_name TEXT,
            file_size BIGINT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            deleted_at TIMESTAMPTZ
        );`,
		`CREATE INDEX IF NOT EXISTS messages_sender_conversation_idx
            ON messages (sender_id, conversation_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS offline_messages (
            id BIGSERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL,
            message_id BIGINT NOT NULL REFERENCES messages(id),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS posts (
            id BIGSERIAL PRIMARY KEY,
            author_id BIGINT NOT NULL,
            locked_at TIMESTAMPTZ,
            deleted_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS comments (
            id BIGSERIAL PRIMARY KEY,
            post_id BIGINT NOT NULL REFERENCES posts(id),
            author_id BIGINT NOT NULL,
            parent_comment_id BIGINT REFERENCES comments(id),
            content TEXT NOT NULL,
            at_user_id BIGINT,
            idempotency_key TEXT NOT NULL,
            deleted_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE (author_id, post_id, idempotency_key)
        );`,
		`CREATE TABLE IF NOT EXISTS reactions (
            id BIGSERIAL PRIMARY KEY,
            resource_type SMALLINT NOT NULL,
            resource_id BIGINT NOT NULL,
            reactor_id BIGINT NOT NULL,
            reaction_type SMALLINT NOT NULL,
            idempotency_key TEXT NOT NULL,
            deleted_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE (reactor_id, resource_type, resource_id, reaction_type, idempotency_key)
        );`,
		`CREATE TABLE IF NOT EXISTS temp_secret_keys (
            id BIGSERIAL PRIMARY KEY,
            key_value TEXT NOT NULL,
            key_hash TEXT NOT NULL,
            user_id BIGINT NOT NULL,
            key_type TEXT NOT NULL,
            used BOOLEAN NOT NULL DEFAULT FALSE,
            used_at TIMESTAMPTZ,
            expires_at TIMESTAMPTZ NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            metadata TEXT
        );`,
		`CREATE INDEX IF NOT EXISTS temp_secret_keys_hash_idx ON temp_secret_keys (key_hash);`,
		// The store, not the in-process cache, is the authority for the
		// one-unused-key-per-user invariant.
		`CREATE UNIQUE INDEX IF NOT EXISTS temp_secret_keys_active_uniq
            ON temp_secret_keys (user_id) WHERE NOT used;`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
