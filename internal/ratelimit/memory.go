package ratelimit

import (
	"context"
	"sync"
	"time"

	"wellness/internal/core"
	"wellness/internal/types"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore is a per-process fixed-window limiter. Limits are enforced per
// instance, so it only suits single-instance deployments and tests.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	clock   types.Clock
}

func NewMemoryStore(clock types.Clock) *MemoryStore {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &MemoryStore{windows: make(map[string]*window), clock: clock}
}

func (s *MemoryStore) IncrementAndCheck(_ context.Context, key string, limit int, win time.Duration) (core.RateLimitResult, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		s.sweep(now)
		w = &window{resetAt: now.Add(win)}
		s.windows[key] = w
	}
	w.count++

	return core.RateLimitResult{
		Allowed:   w.count <= limit,
		Remaining: max(limit-w.count, 0),
		ResetAt:   w.resetAt,
	}, nil
}

// sweep drops expired windows so idle keys do not accumulate.
func (s *MemoryStore) sweep(now time.Time) {
	for k, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, k)
		}
	}
}
