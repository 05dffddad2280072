// Package blocklist keeps the set of temporarily banned source identities.
// Expiry is checked lazily on every lookup; the sweep only reclaims memory.
package blocklist

import (
	"sync"
	"time"
)

type BlockList struct {
	mu           sync.Mutex
	entries      map[string]time.Time
	duration     time.Duration
	timeProvider func() time.Time
}

type BlockListOpts struct {
	TimeProvider func() time.Time
}

func NewBlockList(duration time.Duration, opts *BlockListOpts) *BlockList {
	timeProvider := time.Now
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	return &BlockList{
		entries:      make(map[string]time.Time),
		duration:     duration,
		timeProvider: timeProvider,
	}
}

// Block bans the source for the configured duration, extending any existing
// ban.
func (b *BlockList) Block(sourceID string) {
	expiresAt := b.timeProvider().Add(b.duration)
	b.mu.Lock()
	b.entries[sourceID] = expiresAt
	b.mu.Unlock()
}

// IsBlocked reports whether the source is currently banned, dropping the
// entry once it has expired.
func (b *BlockList) IsBlocked(sourceID string) bool {
	now := b.timeProvider()

	b.mu.Lock()
	defer b.mu.Unlock()

	expiresAt, ok := b.entries[sourceID]
	if !ok {
		return false
	}
	if now.After(expiresAt) {
		delete(b.entries, sourceID)
		return false
	}
	return true
}

// Sweep removes expired entries.
func (b *BlockList) Sweep() {
	now := b.timeProvider()
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, expiresAt := range b.entries {
		if now.After(expiresAt) {
			delete(b.entries, id)
		}
	}
}
