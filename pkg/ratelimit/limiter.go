// Package ratelimit implements per-caller fixed-window request limiting.
//
// The window is fixed, not sliding: every caller's quota resets at its own
// window boundary, so a burst straddling a boundary can admit up to twice the
// ceiling in a short span. That imprecision is a documented property of this
// limiter, not a bug.
package ratelimit

import (
	"context"
	"time"
)

// Default limits for the chat endpoint: 10 requests per 60 seconds per caller.
const (
	DefaultLimit  = 10
	DefaultWindow = 60 * time.Second
)

// Limiter decides whether a keyed caller may proceed. Implementations must
// never let an admitted count exceed the ceiling within one window.
type Limiter interface {
	// Allow records an attempt for key and reports whether it is admitted.
	Allow(ctx context.Context, key string) (bool, error)
}
