// Package challenge issues and validates the short-lived tokens medium-risk
// clients must echo back to prove they can receive and replay a value.
package challenge

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

type Challenge struct {
	SourceID  string
	Token     string
	ExpiresAt time.Time
}

// Manager keeps at most one active challenge per source. A new issue
// overwrites the previous challenge; validation consumes the record so a
// token can never be replayed.
type Manager struct {
	mu           sync.Mutex
	challenges   map[string]Challenge
	ttl          time.Duration
	timeProvider func() time.Time
}

type ManagerOpts struct {
	TimeProvider func() time.Time
}

func NewManager(ttl time.Duration, opts *ManagerOpts) *Manager {
	timeProvider := time.Now
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	return &Manager{
		challenges:   make(map[string]Challenge),
		ttl:          ttl,
		timeProvider: timeProvider,
	}
}

// Issue mints a fresh 256-bit token for the source, replacing any prior one.
func (m *Manager) Issue(sourceID string) (Challenge, error) {
	token := make([]byte, 32)
	if _, err := rand.Read(token); err != nil {
		return Challenge{}, fmt.Errorf("failed to generate challenge token: %w", err)
	}

	ch := Challenge{
		SourceID:  sourceID,
		Token:     hex.EncodeToString(token),
		ExpiresAt: m.timeProvider().Add(m.ttl),
	}

	m.mu.Lock()
	m.challenges[sourceID] = ch
	m.mu.Unlock()

	return ch, nil
}

// Validate reports whether token matches the source's current unexpired
// challenge, consuming it on success. Expired challenges are dropped on the
// same lookup.
func (m *Manager) Validate(sourceID, token string) bool {
	if token == "" {
		return false
	}

	now := m.timeProvider()

	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.challenges[sourceID]
	if !ok {
		return false
	}
	if now.After(ch.ExpiresAt) {
		delete(m.challenges, sourceID)
		return false
	}
	if ch.Token != token {
		return false
	}

	delete(m.challenges, sourceID)
	return true
}

// Sweep drops expired challenges to reclaim memory.
func (m *Manager) Sweep() {
	now := m.timeProvider()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ch := range m.challenges {
		if now.After(ch.ExpiresAt) {
			delete(m.challenges, id)
		}
	}
}
