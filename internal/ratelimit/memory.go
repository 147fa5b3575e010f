package ratelimit

import (
	"context"
	"sync"
	"time"
)

// window tracks one client's consumption within the current fixed window.
type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a process-local fixed-window limiter. Buckets are created
// on demand in a mutex-guarded map and idle entries are evicted
// opportunistically during lookups to keep memory bounded.
//
// Safe for concurrent use; two concurrent Admit calls for the same key never
// both succeed on the last unit of budget.
type MemoryLimiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	windows map[string]*window
	sweepN  int
}

// sweepEvery is the number of lookups between idle-entry sweeps.
const sweepEvery = 5000

// NewMemoryLimiter constructs an in-memory limiter.
func NewMemoryLimiter(cfg Config, opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		windows: make(map[string]*window),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MemoryOption customizes a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithClock injects the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) { l.now = now }
}

// Admit consumes one unit of the client's budget if any remains. Rejected
// calls have no side effects on the counter.
func (l *MemoryLimiter) Admit(_ context.Context, clientKey string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	// Sweep before touching the requested key so an expired bucket is
	// evicted even when it is the one being fetched.
	l.sweepN++
	if l.sweepN >= sweepEvery {
		for key, w := range l.windows {
			if !now.Before(w.resetAt) {
				delete(l.windows, key)
			}
		}
		l.sweepN = 0
	}

	w, ok := l.windows[clientKey]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.cfg.Window)}
		l.windows[clientKey] = w
	}

	if w.count >= l.cfg.MaxRequests {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: w.resetAt.Sub(now),
		}, nil
	}

	w.count++
	return Decision{
		Allowed:    true,
		Remaining:  l.cfg.MaxRequests - w.count,
		RetryAfter: 0,
	}, nil
}

// Evict drops any windows that have already elapsed and reports how many
// client keys remain tracked.
func (l *MemoryLimiter) Evict() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
	return len(l.windows)
}
