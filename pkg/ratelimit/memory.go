package ratelimit

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	count   int
	resetAt time.Time
}

// FixedWindow is an in-process Limiter backed by a map keyed by caller
// address. The clock is injected so tests can control time. State lives only
// in this process: it resets on restart and is not shared across instances.
type FixedWindow struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   int
	window  time.Duration
	now     func() time.Time
}

// Option configures a FixedWindow.
type Option func(*FixedWindow)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(fw *FixedWindow) { fw.now = now }
}

// NewFixedWindow creates a limiter admitting limit requests per window per key.
func NewFixedWindow(limit int, window time.Duration, opts ...Option) *FixedWindow {
	fw := &FixedWindow{
		entries: make(map[string]*entry),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(fw)
	}
	return fw
}

// Allow implements Limiter. The read-check-increment sequence runs under the
// mutex so the ceiling holds on a multi-threaded runtime.
func (fw *FixedWindow) Allow(_ context.Context, key string) (bool, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	now := fw.now()
	e, ok := fw.entries[key]
	if !ok || now.After(e.resetAt) {
		fw.entries[key] = &entry{count: 1, resetAt: now.Add(fw.window)}
		return true, nil
	}

	if e.count >= fw.limit {
		return false, nil
	}

	e.count++
	return true, nil
}

// Sweep drops entries whose window has elapsed. The limiter stays correct
// without it; this only bounds memory on long-running processes.
func (fw *FixedWindow) Sweep() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	now := fw.now()
	for key, e := range fw.entries {
		if now.After(e.resetAt) {
			delete(fw.entries, key)
		}
	}
}

// SweepEvery runs Sweep on a ticker until ctx is done.
func (fw *FixedWindow) SweepEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fw.Sweep()
		}
	}
}
