package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"social-service/internal/observability"
)

// Store is the narrow slice of the shared key-value store the limiter needs:
// one hash per bucket with fields ts and tokens.
type Store interface {
	HGetInt64(ctx context.Context, key, field string) (int64, bool, error)
	HSetInt64(ctx context.Context, key string, fields map[string]int64) error
}

// Limiter is a token bucket keyed by arbitrary string identities such as
// "u:<id>:comment" or "ip:<addr>:comment".
//
// The read-then-write across the two hash fields is deliberately not atomic:
// concurrent callers on the same key may over-admit by a small bounded
// amount under contention. That slack is accepted; do not replace it with a
// blocking scheme.
type Limiter struct {
	store Store
	now   func() time.Time
}

// NewLimiter builds a Limiter over a bucket store.
func NewLimiter(store Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// CheckAndConsume refills the bucket for key lazily, then consumes one token.
// Returns false when the bucket is empty.
func (l *Limiter) CheckAndConsume(ctx context.Context, key string, capacity, refillPerSec int64) (bool, error) {
	bucketKey := fmt.Sprintf("rl:%s", key)
	now := l.now().Unix()

	lastTS, hasTS, err := l.store.HGetInt64(ctx, bucketKey, "ts")
	if err != nil {
		return false, err
	}
	tokens, hasTokens, err := l.store.HGetInt64(ctx, bucketKey, "tokens")
	if err != nil {
		return false, err
	}
	if !hasTokens {
		tokens = capacity
	}

	if !hasTS || lastTS == 0 {
		tokens = capacity
		if err := l.store.HSetInt64(ctx, bucketKey, map[string]int64{"ts": now, "tokens": capacity}); err != nil {
			return false, err
		}
	} else {
		elapsed := now - lastTS
		if elapsed < 0 {
			elapsed = 0
		}
		tokens += elapsed * refillPerSec
		if tokens > capacity {
			tokens = capacity
		}
		if err := l.store.HSetInt64(ctx, bucketKey, map[string]int64{"ts": now, "tokens": tokens}); err != nil {
			return false, err
		}
	}

	if tokens <= 0 {
		observability.IncRateLimitDecision(false)
		return false, nil
	}

	tokens--
	if err := l.store.HSetInt64(ctx, bucketKey, map[string]int64{"tokens": tokens}); err != nil {
		return false, err
	}
	observability.IncRateLimitDecision(true)
	return true, nil
}

// RedisStore backs the limiter with Redis hashes.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps a Redis client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) HGetInt64(ctx context.Context, key, field string) (int64, bool, error) {
	val, err := s.rdb.HGet(ctx, key, field).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return val, true, nil
}

func (s *RedisStore) HSetInt64(ctx context.Context, key string, fields map[string]int64) error {
	args := make([]interface{}, 0, len(fields)*2)
	for field, val := range fields {
		args = append(args, field, val)
	}
	return s.rdb.HSet(ctx, key, args...).Err()
}
