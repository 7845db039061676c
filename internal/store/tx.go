package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"social-service/internal/config"
	"social-service/internal/domain"
	"social-service/internal/observability"
)

// SQLSTATE codes the layer distinguishes from generic store failures.
const (
	codeLockNotAvailable = "55P03"
	codeQueryCanceled    = "57014"
	codeUniqueViolation  = "23505"
)

// Manager runs every multi-step mutation: transaction opened under a bounded
// deadline, advisory lock taken first, commit under its own shorter budget.
// The advisory lock is transaction-scoped, so Postgres releases it on every
// exit path.
type Manager struct {
	db *sqlx.DB
}

// NewManager builds a Manager over the shared pool.
func NewManager(db *sqlx.DB) *Manager {
	return &Manager{db: db}
}

// DB exposes the pool for single-statement reads that need no lock.
func (m *Manager) DB() *sqlx.DB { return m.db }

// WithTx opens a transaction whose work runs under the open timeout, invokes
// fn, and commits under the commit timeout. Any error from fn rolls the
// transaction back; fn is expected to return domain errors.
func (m *Manager) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	txCtx, cancel := context.WithTimeout(ctx, config.TxOpenTimeout)
	defer cancel()

	tx, err := m.db.BeginTxx(txCtx, nil)
	if err != nil {
		return MapError(err)
	}

	if err := fn(txCtx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return commitBounded(tx, config.CommitTimeout)
}

// commitBounded commits with its own budget so slow I/O cannot hold the
// caller past the commit window. On expiry the deferred context cancel in
// WithTx aborts the transaction server-side.
func commitBounded(tx *sqlx.Tx, budget time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- tx.Commit() }()

	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case err := <-done:
		return MapError(err)
	case <-timer.C:
		observability.IncTxTimeout("commit")
		return domain.ErrTimeout
	}
}

// LockResource acquires the transaction-scoped advisory lock for a logical
// resource key, waiting at most the lock-wait timeout. Contention surfaces
// as Locked; the caller decides whether to retry.
func LockResource(ctx context.Context, tx *sqlx.Tx, key int64) error {
	timeout := fmt.Sprintf("%dms", config.LockWaitTimeout.Milliseconds())
	if _, err := tx.ExecContext(ctx, `SELECT set_config('lock_timeout', $1, true)`, timeout); err != nil {
		return domain.Store("set lock_timeout", err)
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, key); err != nil {
		mapped := MapError(err)
		if errors.Is(mapped, domain.ErrLocked) || errors.Is(mapped, domain.ErrTimeout) {
			observability.IncLockContention()
			return domain.ErrLocked
		}
		return mapped
	}
	return nil
}

// CommentLockKey buckets a comment id so comments do not consume one
// advisory-lock slot each at scale.
func CommentLockKey(commentID int64) int64 {
	return commentID % config.CommentLockBuckets
}

// MapError converts store-level failures into the domain taxonomy. Lock
// contention and timeout signatures are recognized so they never leak as
// opaque store errors.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrTimeout
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case codeLockNotAvailable:
			return domain.ErrLocked
		case codeQueryCanceled:
			return domain.ErrTimeout
		}
	}
	return domain.Store("query failed", err)
}

// IsUniqueViolation reports whether err is a uniqueness-constraint failure,
// the signal idempotent upserts and the temp-key singleton rely on.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == codeUniqueViolation
}
