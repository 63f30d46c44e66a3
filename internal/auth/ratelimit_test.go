package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSlidingWindow(t *testing.T) {
	store := NewMemoryAttemptStore()
	base := time.Unix(1_700_000_000, 0)
	now := base
	store.now = func() time.Time { return now }

	ctx := context.Background()

	// First five attempts inside the window are allowed.
	for i := 0; i < 5; i++ {
		allowed, err := store.CheckAndRecord(ctx, "k", 5, 60*time.Second)
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d", i+1)
	}

	// The sixth attempt within 60s is rejected (but still recorded).
	allowed, err := store.CheckAndRecord(ctx, "k", 5, 60*time.Second)
	require.NoError(t, err)
	assert.False(t, allowed)

	// After the window has passed with no further attempts, a new
	// attempt succeeds.
	now = base.Add(61 * time.Second)
	allowed, err = store.CheckAndRecord(ctx, "k", 5, 60*time.Second)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemoryStoreKeysAreIndependent(t *testing.T) {
	store := NewMemoryAttemptStore()
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		store.CheckAndRecord(ctx, "a", 5, time.Minute)
	}

	allowed, err := store.CheckAndRecord(ctx, "b", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemoryStoreSweepsStaleKeys(t *testing.T) {
	store := NewMemoryAttemptStore()
	base := time.Unix(1_700_000_000, 0)
	now := base
	store.now = func() time.Time { return now }

	ctx := context.Background()

	// A burst of distinct callers, then silence past the window.
	for i := 0; i < sweepEvery-1; i++ {
		store.CheckAndRecord(ctx, fmt.Sprintf("caller-%d", i), 5, time.Minute)
	}
	now = base.Add(2 * time.Minute)

	// The call that lands on the sweep boundary drops the stale keys.
	store.CheckAndRecord(ctx, "fresh", 5, time.Minute)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.attempts, 1)
	assert.Contains(t, store.attempts, "fresh")
}

func TestMemoryStoreConcurrentSameKey(t *testing.T) {
	store := NewMemoryAttemptStore()
	ctx := context.Background()

	const workers = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.CheckAndRecord(ctx, "k", 5, time.Minute)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Exactly the limit may pass; two racing requests must never both
	// observe "not yet at limit" past it.
	assert.Equal(t, 5, allowed)
}

type failingStore struct{}

func (failingStore) CheckAndRecord(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("store down")
}

func TestRateLimiterFailsOpen(t *testing.T) {
	limiter := NewRateLimiter(failingStore{}, 5, time.Minute)
	assert.True(t, limiter.Allow(context.Background(), "k"))
}

func TestRateLimiterDefaults(t *testing.T) {
	limiter := NewRateLimiter(NewMemoryAttemptStore(), 0, 0)
	assert.Equal(t, DefaultAttemptLimit, limiter.limit)
	assert.Equal(t, DefaultAttemptWindow, limiter.window)
}

func TestRateLimiterEnforcesLimit(t *testing.T) {
	limiter := NewRateLimiter(NewMemoryAttemptStore(), 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(ctx, "a@x.org"))
	}
	assert.False(t, limiter.Allow(ctx, "a@x.org"))
}
