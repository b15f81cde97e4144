// Package guard implements per-source admission control for checkout: a
// sliding window of recent admissions per key, limit L within window W.
package guard

import (
	"context"
	"sync"
	"time"
)

// Memory is the in-process guard. State is per-instance and ephemeral;
// with multiple instances each enforces its own limit (best-effort).
type Memory struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	hits   map[string][]time.Time
	now    func() time.Time
}

func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{
		window: window,
		limit:  limit,
		hits:   map[string][]time.Time{},
		now:    time.Now,
	}
}

// Allow prunes entries older than the window, rejects when the remaining
// count has reached the limit, otherwise records the admission.
func (m *Memory) Allow(_ context.Context, sourceKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.window)

	kept := m.hits[sourceKey][:0]
	for _, t := range m.hits[sourceKey] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= m.limit {
		m.hits[sourceKey] = kept
		return false, nil
	}
	m.hits[sourceKey] = append(kept, now)
	return true, nil
}
