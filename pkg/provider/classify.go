package provider

import (
	"errors"
	"strings"
)

// Kind buckets an upstream failure for HTTP mapping.
type Kind int

const (
	// KindModel is any model-side failure without a more specific bucket.
	// Maps to 500, retryable.
	KindModel Kind = iota

	// KindAuth is a credential failure. Maps to 500, not retryable.
	KindAuth

	// KindRateLimited is upstream throttling. Maps to 429, retryable.
	KindRateLimited
)

// Classify buckets an upstream error. Typed sentinels are checked first;
// message-substring matching is kept only as a last-resort fallback for
// errors the adapters could not wrap, and is known to be brittle.
func Classify(err error) Kind {
	if errors.Is(err, ErrAuth) {
		return KindAuth
	}
	if errors.Is(err, ErrRateLimited) {
		return KindRateLimited
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "429"):
		return KindRateLimited
	case strings.Contains(msg, "authentication"),
		strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "invalid api key"),
		strings.Contains(msg, "incorrect api key"),
		strings.Contains(msg, "401"):
		return KindAuth
	default:
		return KindModel
	}
}
