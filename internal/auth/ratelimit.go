package auth

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/shelfwise/lending/pkg/logger"
)

const (
	DefaultAttemptLimit  = 5
	DefaultAttemptWindow = 60 * time.Second
)

// AttemptStore records one attempt for a key and reports whether the
// attempt was still within the limit. The decision is made on the
// post-purge, pre-append count: an attempt that trips the limit is
// itself recorded.
type AttemptStore interface {
	CheckAndRecord(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimiter gates authentication attempts per identity key (email or
// client IP). State lives in the AttemptStore; with the Redis store the
// limit holds across service instances.
type RateLimiter struct {
	store  AttemptStore
	limit  int
	window time.Duration
}

func NewRateLimiter(store AttemptStore, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultAttemptLimit
	}
	if window <= 0 {
		window = DefaultAttemptWindow
	}
	return &RateLimiter{store: store, limit: limit, window: window}
}

// Allow records an attempt and reports whether it is allowed. Store
// errors fail open: a broken limiter must not lock every patron out.
func (l *RateLimiter) Allow(ctx context.Context, key string) bool {
	// Hash the key for privacy
	hashed := fmt.Sprintf("ratelimit:%x", sha256.Sum256([]byte(key)))

	allowed, err := l.store.CheckAndRecord(ctx, hashed, l.limit, l.window)
	if err != nil {
		logger.WarnContext(ctx, "Rate limit store error, allowing request", "error", err)
		return true
	}
	return allowed
}

// RedisAttemptStore keeps a sliding window of attempt timestamps per key
// in a Redis sorted set. The pipeline purges stale members, reads the
// cardinality, then appends the new attempt, so concurrent requests for
// the same key cannot both observe "not yet at limit" past the limit.
type RedisAttemptStore struct {
	rdb *redis.Client
}

func NewRedisAttemptStore(rdb *redis.Client) *RedisAttemptStore {
	return &RedisAttemptStore{rdb: rdb}
}

func (s *RedisAttemptStore) CheckAndRecord(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	now := time.Now()
	cutoff := now.Add(-window).UnixNano()

	pipe := s.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff, 10))
	card := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return card.Val() < int64(limit), nil
}

// MemoryAttemptStore is a process-local fallback for development and
// tests. It is correct for a single instance only; multi-instance
// deployments must use the Redis store or limits become bypassable.
type MemoryAttemptStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	calls    int

	now func() time.Time
}

// sweepEvery bounds how often the full-map sweep runs.
const sweepEvery = 256

func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{
		attempts: make(map[string][]time.Time),
		now:      time.Now,
	}
}

func (s *MemoryAttemptStore) CheckAndRecord(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	kept := s.attempts[key][:0]
	for _, ts := range s.attempts[key] {
		if now.Sub(ts) < window {
			kept = append(kept, ts)
		}
	}
	allowed := len(kept) < limit
	s.attempts[key] = append(kept, now)

	// Keys are only purged when touched again, so drop fully-stale
	// keys now and then or the map grows with every distinct caller.
	s.calls++
	if s.calls%sweepEvery == 0 {
		s.sweep(now, window)
	}
	return allowed, nil
}

func (s *MemoryAttemptStore) sweep(now time.Time, window time.Duration) {
	for key, attempts := range s.attempts {
		if len(attempts) == 0 || now.Sub(attempts[len(attempts)-1]) >= window {
			delete(s.attempts, key)
		}
	}
}
