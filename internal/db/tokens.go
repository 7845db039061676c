package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// TokenValidator resolves API tokens against the users table. It stands in
// for the external auth service in single-binary deployments.
type TokenValidator struct {
	db *sqlx.DB
}

// NewTokenValidator builds a TokenValidator over the shared pool.
func NewTokenValidator(db *sqlx.DB) *TokenValidator {
	return &TokenValidator{db: db}
}

// ValidateToken returns the identity holding the token.
func (v *TokenValidator) ValidateToken(ctx context.Context, token string) (int64, string, error) {
	var row struct {
		ID       int64  `db:"id"`
		Username string `db:"username"`
	}
	err := v.db.GetContext(ctx, &row,
		`SELECT id, username FROM users WHERE api_token = $1`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", errors.New("unknown token")
	}
	if err != nil {
		return 0, "", err
	}
	return row.ID, row.Username, nil
}
