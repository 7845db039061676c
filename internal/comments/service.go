package comments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"social-service/internal/config"
	"social-service/internal/domain"
	"social-service/internal/models"
	"social-service/internal/ratelimit"
	"social-service/internal/store"
)

// CreateCommentInput carries one comment-create request. ParentCommentID
// zero means a top-level comment.
type CreateCommentInput struct {
	PostID          int64
	AuthorID        int64
	ParentCommentID int64
	Content         string
	AtUserID        int64
	IdempotencyKey  string
	IPKey           string
}

// Service is the comment and reaction consistency layer over external posts.
type Service interface {
	CreateComment(ctx context.Context, in CreateCommentInput) (models.Comment, error)
	BatchCreateComments(ctx context.Context, inputs []CreateCommentInput) ([]models.Comment, error)
	DeletePostSoft(ctx context.Context, postID, actorID int64) error
	DeleteCommentSoft(ctx context.Context, commentID, actorID int64) error
	ReactIdempotent(ctx context.Context, resourceType int16, resourceID, reactorID int64, reactionType int16, idempotencyKey string) error
	GetCommentsTree(ctx context.Context, postID int64) ([]models.CommentThread, error)
	CheckPostStatus(ctx context.Context, postID int64) (models.PostStatus, error)
}

// CommentService implements Service. All mutations serialize on the post's
// advisory lock; reactions on comments use a bounded hash bucket instead of
// one lock slot per comment.
type CommentService struct {
	mgr     *store.Manager
	limiter *ratelimit.Limiter
	now     func() time.Time
}

// NewCommentService constructs a CommentService.
func NewCommentService(mgr *store.Manager, limiter *ratelimit.Limiter) *CommentService {
	return &CommentService{mgr: mgr, limiter: limiter, now: time.Now}
}

// CreateComment inserts a comment idempotently on (author, post,
// idempotency key). Admission is gated by the author and client-IP buckets
// plus the per-(author, post) interval; the insert itself only succeeds
// while the post remains non-deleted.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (models.Comment, error) {
	okUser, err := s.limiter.CheckAndConsume(ctx, fmt.Sprintf("u:%d:comment", in.AuthorID),
		config.UserCommentCapacity, config.UserCommentRefill)
	if err != nil {
		return models.Comment{}, domain.Store("rate limit check", err)
	}
	okIP, err := s.limiter.CheckAndConsume(ctx, fmt.Sprintf("ip:%s:comment", in.IPKey),
		config.IPCommentCapacity, config.IPCommentRefill)
	if err != nil {
		return models.Comment{}, domain.Store("rate limit check", err)
	}
	if !okUser || !okIP {
		return models.Comment{}, domain.ErrTooManyRequests
	}

	if err := s.checkCommentInterval(ctx, in.AuthorID, in.PostID); err != nil {
		return models.Comment{}, err
	}

	var inserted models.Comment
	err = s.mgr.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := store.LockResource(ctx, tx, in.PostID); err != nil {
			return err
		}
		if err := checkPostWritable(ctx, tx, in.PostID); err != nil {
			return err
		}
		if in.ParentCommentID != 0 {
			if err := checkParentDepth(ctx, tx, in.ParentCommentID); err != nil {
				return err
			}
		}

		var err error
		inserted, err = insertCommentIdempotent(ctx, tx, in)
		if err != nil {
			return err
		}
		return notifyEvents(ctx, tx, fmt.Sprintf(`{"type":"comment_created","id":%d}`, inserted.ID))
	})
	return inserted, err
}

// BatchCreateComments inserts all rows under a single resource lock and a
// single transaction, all-or-nothing. The lock is keyed on the first input's
// post.
func (s *CommentService) BatchCreateComments(ctx context.Context, inputs []CreateCommentInput) ([]models.Comment, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	for _, in := range inputs {
		ok, err := s.limiter.CheckAndConsume(ctx, fmt.Sprintf("u:%d:comment", in.AuthorID),
			config.BatchCommentCapacity, config.BatchCommentRefill)
		if err != nil {
			return nil, domain.Store("rate limit check", err)
		}
		if !ok {
			return nil, domain.ErrTooManyRequests
		}
	}

	rows := make([]models.Comment, 0, len(inputs))
	err := s.mgr.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := store.LockResource(ctx, tx, inputs[0].PostID); err != nil {
			return err
		}
		for _, in := range inputs {
			row, err := insertCommentIdempotent(ctx, tx, in)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return notifyEvents(ctx, tx, fmt.Sprintf(`{"type":"batch_comment","post_id":%d}`, inputs[0].PostID))
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DeletePostSoft soft-deletes the post and cascades the soft-delete to every
// comment on it (both levels) and every reaction on the post or its comments.
func (s *CommentService) DeletePostSoft(ctx context.Context, postID, actorID int64) error {
	return s.mgr.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := store.LockResource(ctx, tx, postID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE posts SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`,
			postID); err != nil {
			return store.MapError(err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE comments SET deleted_at = NOW() WHERE post_id = $1 AND deleted_at IS NULL`,
			postID); err != nil {
			return store.MapError(err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE reactions SET deleted_at = NOW()
             WHERE resource_type = $1 AND resource_id = $2 AND deleted_at IS NULL`,
			models.ResourcePost, postID); err != nil {
			return store.MapError(err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE reactions SET deleted_at = NOW()
             WHERE resource_type = $1
             AND resource_id IN (SELECT id FROM comments WHERE post_id = $2)
             AND deleted_at IS NULL`,
			models.ResourceComment, postID); err != nil {
			return store.MapError(err)
		}

		return notifyEvents(ctx, tx, fmt.Sprintf(`{"type":"post_deleted","id":%d}`, postID))
	})
}

// DeleteCommentSoft soft-deletes a comment under its post's lock so it
// serializes against post-level deletes. A top-level comment drags its
// direct replies and their reactions along; reactions on the comment itself
// always cascade.
func (s *CommentService) DeleteCommentSoft(ctx context.Context, commentID, actorID int64) error {
	// The post id is needed before the lock can be taken; the row is
	// re-read under the lock before anything is mutated.
	var postID int64
	err := s.mgr.DB().GetContext(ctx, &postID,
		`SELECT post_id FROM comments WHERE id = $1`, commentID)
	if err != nil {
		return store.MapError(err)
	}

	return s.mgr.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := store.LockResource(ctx, tx, postID); err != nil {
			return err
		}

		var comment models.Comment
		err := tx.GetContext(ctx, &comment,
			`SELECT id, post_id, author_id, parent_comment_id, content, at_user_id, idempotency_key, deleted_at, created_at FROM comments WHERE id = $1 FOR UPDATE`, commentID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return store.MapError(err)
		}
		if comment.DeletedAt.Valid {
			return domain.ErrGone
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE comments SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`,
			commentID); err != nil {
			return store.MapError(err)
		}

		if !comment.ParentCommentID.Valid {
			if _, err := tx.ExecContext(ctx,
				`UPDATE reactions SET deleted_at = NOW()
                 WHERE resource_type = $1
                 AND resource_id IN (SELECT id FROM comments WHERE parent_comment_id = $2)
                 AND deleted_at IS NULL`,
				models.ResourceComment, commentID); err != nil {
				return store.MapError(err)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE comments SET deleted_at = NOW()
                 WHERE parent_comment_id = $1 AND deleted_at IS NULL`,
				commentID); err != nil {
				return store.MapError(err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE reactions SET deleted_at = NOW()
             WHERE resource_type = $1 AND resource_id = $2 AND deleted_at IS NULL`,
			models.ResourceComment, commentID); err != nil {
			return store.MapError(err)
		}

		return notifyEvents(ctx, tx, fmt.Sprintf(`{"type":"comment_deleted","id":%d}`, commentID))
	})
}

// ReactIdempotent records a reaction, idempotent on the full reaction tuple.
// Favoriting your own content is rejected before the transaction opens.
func (s *CommentService) ReactIdempotent(ctx context.Context, resourceType int16, resourceID, reactorID int64, reactionType int16, idempotencyKey string) error {
	if resourceType != models.ResourcePost && resourceType != models.ResourceComment {
		return domain.Validation("unknown resource type")
	}

	if reactionType == models.ReactionFavorite {
		authorID, err := s.resourceAuthor(ctx, resourceType, resourceID)
		if err != nil {
			return err
		}
		if authorID == reactorID {
			return domain.Validation("cannot favorite your own content")
		}
	}

	return s.mgr.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := store.LockResource(ctx, tx, reactionLockKey(resourceType, resourceID)); err != nil {
			return err
		}

		var deletedAt sql.NullTime
		table := "posts"
		if resourceType == models.ResourceComment {
			table = "comments"
		}
		err := tx.GetContext(ctx, &deletedAt,
			fmt.Sprintf(`SELECT deleted_at FROM %s WHERE id = $1`, table), resourceID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return store.MapError(err)
		}
		if deletedAt.Valid {
			return domain.ErrGone
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reactions (resource_type, resource_id, reactor_id, reaction_type, idempotency_key)
             VALUES ($1, $2, $3, $4, $5)
             ON CONFLICT (reactor_id, resource_type, resource_id, reaction_type, idempotency_key)
             DO UPDATE SET updated_at = NOW()`,
			resourceType, resourceID, reactorID, reactionType, idempotencyKey); err != nil {
			return store.MapError(err)
		}

		return notifyEvents(ctx, tx, fmt.Sprintf(`{"type":"reaction","rid":%d,"rt":%d}`, resourceID, reactionType))
	})
}

// GetCommentsTree returns the post's top-level comments newest-first, each
// paired with its replies newest-first; soft-deleted rows are excluded at
// both levels.
func (s *CommentService) GetCommentsTree(ctx context.Context, postID int64) ([]models.CommentThread, error) {
	var topLevel []models.Comment
	if err := s.mgr.DB().SelectContext(ctx, &topLevel,
		`SELECT id, post_id, author_id, parent_comment_id, content, at_user_id, idempotency_key, deleted_at, created_at FROM comments
         WHERE post_id = $1 AND parent_comment_id IS NULL AND deleted_at IS NULL
         ORDER BY created_at DESC, id DESC`, postID); err != nil {
		return nil, store.MapError(err)
	}

	var replies []models.Comment
	if err := s.mgr.DB().SelectContext(ctx, &replies,
		`SELECT id, post_id, author_id, parent_comment_id, content, at_user_id, idempotency_key, deleted_at, created_at FROM comments
         WHERE post_id = $1 AND parent_comment_id IS NOT NULL AND deleted_at IS NULL
         ORDER BY created_at DESC, id DESC`, postID); err != nil {
		return nil, store.MapError(err)
	}

	return buildThreads(topLevel, replies), nil
}

// CheckPostStatus reports whether the post exists and whether it is deleted
// or locked, for callers probing before a write.
func (s *CommentService) CheckPostStatus(ctx context.Context, postID int64) (models.PostStatus, error) {
	var post models.Post
	err := s.mgr.DB().GetContext(ctx, &post,
		`SELECT id, author_id, locked_at, deleted_at FROM posts WHERE id = $1`, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PostStatus{}, nil
	}
	if err != nil {
		return models.PostStatus{}, store.MapError(err)
	}
	return models.PostStatus{
		Exists:  true,
		Deleted: post.DeletedAt.Valid,
		Locked:  post.LockedAt.Valid,
	}, nil
}

// checkCommentInterval rejects a second comment from the same author on the
// same post inside the minimum interval.
func (s *CommentService) checkCommentInterval(ctx context.Context, authorID, postID int64) error {
	var last time.Time
	err := s.mgr.DB().GetContext(ctx, &last,
		`SELECT created_at FROM comments
         WHERE author_id = $1 AND post_id = $2
         ORDER BY created_at DESC
         LIMIT 1`, authorID, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return store.MapError(err)
	}
	if s.now().Sub(last) < config.CommentMinInterval {
		return domain.ErrTooManyRequests
	}
	return nil
}

func (s *CommentService) resourceAuthor(ctx context.Context, resourceType int16, resourceID int64) (int64, error) {
	table := "posts"
	if resourceType == models.ResourceComment {
		table = "comments"
	}
	var authorID int64
	err := s.mgr.DB().GetContext(ctx, &authorID,
		fmt.Sprintf(`SELECT author_id FROM %s WHERE id = $1`, table), resourceID)
	if err != nil {
		return 0, store.MapError(err)
	}
	return authorID, nil
}

// checkPostWritable reads the post under a row lock and rejects deleted or
// locked posts.
func checkPostWritable(ctx context.Context, tx *sqlx.Tx, postID int64) error {
	var post models.Post
	err := tx.GetContext(ctx, &post,
		`SELECT id, author_id, locked_at, deleted_at FROM posts WHERE id = $1 FOR UPDATE`, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return store.MapError(err)
	}
	if post.DeletedAt.Valid {
		return domain.ErrGone
	}
	if post.LockedAt.Valid {
		return domain.ErrLocked
	}
	return nil
}

// checkParentDepth enforces the two-level cap: a valid parent must itself be
// top-level.
func checkParentDepth(ctx context.Context, tx *sqlx.Tx, parentID int64) error {
	var parent struct {
		ParentCommentID sql.NullInt64 `db:"parent_comment_id"`
		DeletedAt       sql.NullTime  `db:"deleted_at"`
	}
	err := tx.GetContext(ctx, &parent,
		`SELECT parent_comment_id, deleted_at FROM comments WHERE id = $1 FOR UPDATE`, parentID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return store.MapError(err)
	}
	if parent.DeletedAt.Valid {
		return domain.ErrGone
	}
	if parent.ParentCommentID.Valid {
		return domain.Validation("comment depth exceeds the maximum of two levels")
	}
	return nil
}

// insertCommentIdempotent performs the guarded upsert: the row only lands
// while the post is still non-deleted, and a retry with the same key returns
// the original row. A post delete racing the insert yields Gone.
func insertCommentIdempotent(ctx context.Context, tx *sqlx.Tx, in CreateCommentInput) (models.Comment, error) {
	var row models.Comment
	err := tx.GetContext(ctx, &row,
		`INSERT INTO comments (post_id, author_id, parent_comment_id, content, at_user_id, idempotency_key)
         SELECT $1, $2, $3, $4, $5, $6
         WHERE EXISTS (SELECT 1 FROM posts WHERE id = $1 AND deleted_at IS NULL)
         ON CONFLICT (author_id, post_id, idempotency_key)
         DO UPDATE SET updated_at = NOW()
         RETURNING id, post_id, author_id, parent_comment_id, content, at_user_id, idempotency_key, deleted_at, created_at`,
		in.PostID, in.AuthorID, nullableID(in.ParentCommentID), in.Content,
		nullableID(in.AtUserID), in.IdempotencyKey)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Comment{}, domain.ErrGone
	}
	if err != nil {
		return models.Comment{}, store.MapError(err)
	}
	return row, nil
}

// reactionLockKey picks the advisory key: the post id directly, or a bounded
// bucket of the comment id.
func reactionLockKey(resourceType int16, resourceID int64) int64 {
	if resourceType == models.ResourceComment {
		return store.CommentLockKey(resourceID)
	}
	return resourceID
}

// buildThreads pairs top-level comments with their replies, preserving the
// newest-first order of both inputs.
func buildThreads(topLevel, replies []models.Comment) []models.CommentThread {
	byParent := make(map[int64][]models.Comment, len(topLevel))
	for _, reply := range replies {
		parentID := reply.ParentCommentID.Int64
		byParent[parentID] = append(byParent[parentID], reply)
	}

	threads := make([]models.CommentThread, 0, len(topLevel))
	for _, comment := range topLevel {
		threads = append(threads, models.CommentThread{
			Comment: comment,
			Replies: byParent[comment.ID],
		})
	}
	return threads
}

func notifyEvents(ctx context.Context, tx *sqlx.Tx, payload string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify('events', $1)`, payload); err != nil {
		return store.MapError(err)
	}
	return nil
}

func nullableID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
