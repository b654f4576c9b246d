package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// RateLimiter implements domain.RateLimiter as a per-key sliding window of
// request timestamps.
type RateLimiter struct {
	mu    sync.Mutex
	now   func() time.Time
	hits  map[string][]time.Time
	calls int
}

var _ domain.RateLimiter = (*RateLimiter)(nil)

// NewRateLimiter creates an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{now: time.Now, hits: make(map[string][]time.Time)}
}

// Allow records a hit for key when fewer than limit hits fall inside the
// trailing window.
func (rl *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-window)
	kept := prune(rl.hits[key], cutoff)

	rl.calls++
	if rl.calls%1024 == 0 {
		rl.sweep(cutoff)
	}

	if len(kept) >= limit {
		rl.hits[key] = kept
		return false, nil
	}
	rl.hits[key] = append(kept, now)
	return true, nil
}

// sweep drops keys with no hits inside the window.
func (rl *RateLimiter) sweep(cutoff time.Time) {
	for k, ts := range rl.hits {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(rl.hits, k)
		}
	}
}

func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}
