// Package ratelimit implements a fixed-window request counter keyed by a
// hash of source identity and declared client agent, so rotating addresses
// behind a stable client fingerprint still share a bucket.
package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sync"
	"time"
)

// evictEvery bounds how often Allow pays for a full-map eviction pass.
const evictEvery = 256

type bucket struct {
	count         int
	windowResetAt time.Time
}

type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type Limiter struct {
	mu           sync.Mutex
	buckets      map[string]*bucket
	maxRequests  int
	window       time.Duration
	lookups      int
	timeProvider func() time.Time
}

type LimiterOpts struct {
	TimeProvider func() time.Time
}

func NewLimiter(maxRequests int, window time.Duration, opts *LimiterOpts) *Limiter {
	timeProvider := time.Now
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	return &Limiter{
		buckets:      make(map[string]*bucket),
		maxRequests:  maxRequests,
		window:       window,
		timeProvider: timeProvider,
	}
}

// BucketKey derives the limiter key from a source identity and client agent.
func BucketKey(sourceID, userAgent string) string {
	sum := sha256.Sum256([]byte(sourceID + "|" + userAgent))
	return hex.EncodeToString(sum[:])
}

// Allow counts the request against the key's current window. When the window
// has elapsed the bucket resets to a count of one; otherwise the count is
// incremented and compared against the configured maximum.
func (l *Limiter) Allow(key string) Decision {
	now := l.timeProvider()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.lookups++
	if l.lookups%evictEvery == 0 {
		l.evictExpiredLocked(now)
	}

	b, ok := l.buckets[key]
	if !ok || !now.Before(b.windowResetAt) {
		l.buckets[key] = &bucket{count: 1, windowResetAt: now.Add(l.window)}
		return Decision{Allowed: true, Remaining: l.maxRequests - 1}
	}

	b.count++
	if b.count > l.maxRequests {
		retryAfter := time.Duration(math.Ceil(b.windowResetAt.Sub(now).Seconds())) * time.Second
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return Decision{Allowed: false, RetryAfter: retryAfter}
	}

	return Decision{Allowed: true, Remaining: l.maxRequests - b.count}
}

func (l *Limiter) evictExpiredLocked(now time.Time) {
	for key, b := range l.buckets {
		if !now.Before(b.windowResetAt) {
			delete(l.buckets, key)
		}
	}
}
