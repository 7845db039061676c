package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memStore struct {
	hashes map[string]map[string]int64
}

func newMemStore() *memStore {
	return &memStore{hashes: map[string]map[string]int64{}}
}

func (s *memStore) HGetInt64(_ context.Context, key, field string) (int64, bool, error) {
	fields, ok := s.hashes[key]
	if !ok {
		return 0, false, nil
	}
	val, ok := fields[field]
	return val, ok, nil
}

func (s *memStore) HSetInt64(_ context.Context, key string, fields map[string]int64) error {
	if _, ok := s.hashes[key]; !ok {
		s.hashes[key] = map[string]int64{}
	}
	for field, val := range fields {
		s.hashes[key][field] = val
	}
	return nil
}

func newTestLimiter(store Store, start time.Time) (*Limiter, *time.Time) {
	clock := start
	l := NewLimiter(store)
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestCheckAndConsumeDrainsToZero(t *testing.T) {
	store := newMemStore()
	limiter, _ := newTestLimiter(store, time.Unix(1000, 0))

	for i := 0; i < 5; i++ {
		ok, err := limiter.CheckAndConsume(context.Background(), "u:1:comment", 5, 1)
		require.NoError(t, err)
		require.True(t, ok, "consume %d should be admitted", i+1)
	}

	require.EqualValues(t, 0, store.hashes["rl:u:1:comment"]["tokens"])

	ok, err := limiter.CheckAndConsume(context.Background(), "u:1:comment", 5, 1)
	require.NoError(t, err)
	require.False(t, ok, "sixth immediate consume must be denied")
}

func TestCheckAndConsumeRefillsLinearly(t *testing.T) {
	store := newMemStore()
	limiter, clock := newTestLimiter(store, time.Unix(1000, 0))

	for i := 0; i < 4; i++ {
		ok, err := limiter.CheckAndConsume(context.Background(), "k", 4, 2)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := limiter.CheckAndConsume(context.Background(), "k", 4, 2)
	require.NoError(t, err)
	require.False(t, ok)

	// 1 second at 2 tokens/sec refills two tokens.
	*clock = clock.Add(1 * time.Second)
	for i := 0; i < 2; i++ {
		ok, err = limiter.CheckAndConsume(context.Background(), "k", 4, 2)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err = limiter.CheckAndConsume(context.Background(), "k", 4, 2)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCheckAndConsumeRefillClampsAtCapacity(t *testing.T) {
	store := newMemStore()
	limiter, clock := newTestLimiter(store, time.Unix(1000, 0))

	ok, err := limiter.CheckAndConsume(context.Background(), "k", 3, 1)
	require.NoError(t, err)
	require.True(t, ok)

	*clock = clock.Add(1 * time.Hour)
	ok, err = limiter.CheckAndConsume(context.Background(), "k", 3, 1)
	require.NoError(t, err)
	require.True(t, ok)

	require.EqualValues(t, 2, store.hashes["rl:k"]["tokens"])
}

func TestCheckAndConsumeClockSkewDoesNotDrainBucket(t *testing.T) {
	store := newMemStore()
	limiter, clock := newTestLimiter(store, time.Unix(1000, 0))

	ok, err := limiter.CheckAndConsume(context.Background(), "k", 3, 1)
	require.NoError(t, err)
	require.True(t, ok)

	*clock = clock.Add(-10 * time.Second)
	ok, err = limiter.CheckAndConsume(context.Background(), "k", 3, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, store.hashes["rl:k"]["tokens"])
}

func TestCheckAndConsumeDistinctKeysAreIndependent(t *testing.T) {
	store := newMemStore()
	limiter, _ := newTestLimiter(store, time.Unix(1000, 0))

	ok, err := limiter.CheckAndConsume(context.Background(), "u:1:comment", 1, 1)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = limiter.CheckAndConsume(context.Background(), "u:1:comment", 1, 1)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = limiter.CheckAndConsume(context.Background(), "u:2:comment", 1, 1)
	require.NoError(t, err)
	require.True(t, ok)
}
