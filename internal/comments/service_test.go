package comments

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"social-service/internal/config"
	"social-service/internal/models"
)

func comment(id int64, parentID int64, created time.Time) models.Comment {
	c := models.Comment{ID: id, PostID: 1, AuthorID: 1, CreatedAt: created}
	if parentID != 0 {
		c.ParentCommentID = sql.NullInt64{Int64: parentID, Valid: true}
	}
	return c
}

func TestBuildThreadsGroupsRepliesUnderParents(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	topLevel := []models.Comment{
		comment(30, 0, base.Add(2*time.Minute)),
		comment(10, 0, base),
	}
	replies := []models.Comment{
		comment(31, 30, base.Add(3*time.Minute)),
		comment(12, 10, base.Add(2*time.Minute)),
		comment(11, 10, base.Add(1*time.Minute)),
	}

	threads := buildThreads(topLevel, replies)
	require.Len(t, threads, 2)

	require.EqualValues(t, 30, threads[0].Comment.ID)
	require.Len(t, threads[0].Replies, 1)
	require.EqualValues(t, 31, threads[0].Replies[0].ID)

	require.EqualValues(t, 10, threads[1].Comment.ID)
	require.Len(t, threads[1].Replies, 2)
	// Replies keep the newest-first input order.
	require.EqualValues(t, 12, threads[1].Replies[0].ID)
	require.EqualValues(t, 11, threads[1].Replies[1].ID)
}

func TestBuildThreadsWithoutReplies(t *testing.T) {
	threads := buildThreads([]models.Comment{comment(1, 0, time.Now())}, nil)
	require.Len(t, threads, 1)
	require.Empty(t, threads[0].Replies)
}

func TestReactionLockKey(t *testing.T) {
	// Posts lock on their own id.
	require.EqualValues(t, 99, reactionLockKey(models.ResourcePost, 99))

	// Comments share a bounded set of bucket keys.
	key := reactionLockKey(models.ResourceComment, 5000)
	require.Less(t, key, int64(config.CommentLockBuckets))
	require.Equal(t, key, reactionLockKey(models.ResourceComment, 5000+config.CommentLockBuckets))
}
