package ratelimit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tasksats/shield/pkg/infra/ratelimit"
)

func newLimiter(now *time.Time, maxRequests int, window time.Duration) *ratelimit.Limiter {
	return ratelimit.NewLimiter(maxRequests, window, &ratelimit.LimiterOpts{
		TimeProvider: func() time.Time { return *now },
	})
}

func TestBucketKey(t *testing.T) {
	key := ratelimit.BucketKey("src", "Mozilla/5.0")

	assert.Len(t, key, 64)
	assert.Equal(t, key, ratelimit.BucketKey("src", "Mozilla/5.0"))
	assert.NotEqual(t, key, ratelimit.BucketKey("src", "curl/8.0"))
	assert.NotEqual(t, key, ratelimit.BucketKey("other", "Mozilla/5.0"))
}

func TestLimiter_CapsAtMaxRequests(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	limiter := newLimiter(&now, 3, time.Minute)

	for i := 0; i < 3; i++ {
		decision := limiter.Allow("key")
		assert.True(t, decision.Allowed)
	}

	decision := limiter.Allow("key")
	assert.False(t, decision.Allowed)
	assert.Greater(t, decision.RetryAfter, time.Duration(0))
}

func TestLimiter_RemainingCountsDown(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	limiter := newLimiter(&now, 3, time.Minute)

	assert.Equal(t, 2, limiter.Allow("key").Remaining)
	assert.Equal(t, 1, limiter.Allow("key").Remaining)
	assert.Equal(t, 0, limiter.Allow("key").Remaining)
}

func TestLimiter_WindowResetToOne(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	limiter := newLimiter(&now, 3, time.Minute)

	for i := 0; i < 4; i++ {
		limiter.Allow("key")
	}
	assert.False(t, limiter.Allow("key").Allowed)

	// Just past the window boundary the bucket resets to a count of one.
	now = now.Add(time.Minute + time.Millisecond)
	decision := limiter.Allow("key")
	assert.True(t, decision.Allowed)
	assert.Equal(t, 2, decision.Remaining)
}

func TestLimiter_RetryAfterReflectsRemainingWindow(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	limiter := newLimiter(&now, 1, time.Minute)

	limiter.Allow("key")
	now = now.Add(45 * time.Second)

	decision := limiter.Allow("key")
	assert.False(t, decision.Allowed)
	assert.Equal(t, 15*time.Second, decision.RetryAfter)
}

func TestLimiter_IndependentKeys(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	limiter := newLimiter(&now, 1, time.Minute)

	assert.True(t, limiter.Allow("a").Allowed)
	assert.True(t, limiter.Allow("b").Allowed)
	assert.False(t, limiter.Allow("a").Allowed)
}
