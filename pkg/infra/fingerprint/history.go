package fingerprint

import (
	"sync"
	"time"
)

// sweepEvery bounds how often Record pays for a full-map sweep.
const sweepEvery = 256

// HistoryStore keeps a per-source sliding window of observation timestamps.
// Timestamps within a source are monotonically non-decreasing and the window
// is capped, so memory per source is bounded regardless of request rate.
type HistoryStore struct {
	mu           sync.Mutex
	windows      map[string][]time.Time
	retention    time.Duration
	maxEntries   int
	writes       int
	timeProvider func() time.Time
}

type HistoryStoreOpts struct {
	TimeProvider func() time.Time
}

func NewHistoryStore(retention time.Duration, maxEntries int, opts *HistoryStoreOpts) *HistoryStore {
	timeProvider := time.Now
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	return &HistoryStore{
		windows:      make(map[string][]time.Time),
		retention:    retention,
		maxEntries:   maxEntries,
		timeProvider: timeProvider,
	}
}

// Record appends the current time to the source's window, dropping entries
// older than the retention window and trimming to the entry cap.
func (s *HistoryStore) Record(sourceID string) {
	now := s.timeProvider()

	s.mu.Lock()
	defer s.mu.Unlock()

	window := append(s.windows[sourceID], now)
	window = prune(window, now.Add(-s.retention))
	if len(window) > s.maxEntries {
		window = window[len(window)-s.maxEntries:]
	}
	s.windows[sourceID] = window

	s.writes++
	if s.writes%sweepEvery == 0 {
		s.sweepLocked(now)
	}
}

// CountWithin reports how many observations of sourceID fall inside the
// trailing duration d.
func (s *HistoryStore) CountWithin(sourceID string, d time.Duration) int {
	now := s.timeProvider()
	cutoff := now.Add(-d)

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	window := s.windows[sourceID]
	for i := len(window) - 1; i >= 0; i-- {
		if window[i].Before(cutoff) {
			break
		}
		count++
	}
	return count
}

// Sweep removes sources whose entire history has aged out. Correctness never
// depends on it having run; it only reclaims memory.
func (s *HistoryStore) Sweep() {
	now := s.timeProvider()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)
}

func (s *HistoryStore) sweepLocked(now time.Time) {
	cutoff := now.Add(-s.retention)
	for id, window := range s.windows {
		if len(window) == 0 || window[len(window)-1].Before(cutoff) {
			delete(s.windows, id)
		}
	}
}

func prune(window []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(window) && window[i].Before(cutoff) {
		i++
	}
	return window[i:]
}
