// Package provider adapts hosted language-model APIs to one interface the
// proxy can dispatch to. Both supported models speak an OpenAI-compatible
// protocol and are driven through langchaingo; reasoning output is normalized
// so callers see a single reasoning channel regardless of how the model
// emits it (native deltas vs inline tagged blocks).
package provider

import (
	"context"
	"errors"
)

// DefaultTemperature matches the sampling temperature used for every call.
const DefaultTemperature = 0.7

// Request is a resolved model invocation.
type Request struct {
	SystemPrompt string
	Message      string
	Temperature  float64
}

// Delta is one increment of a streamed completion. Either field may be empty;
// both are deltas to append, never totals.
type Delta struct {
	Content   string
	Reasoning string
}

// Result is a completed, non-streamed completion.
type Result struct {
	Content   string
	Reasoning string
}

// Provider is a hosted model the proxy can invoke.
type Provider interface {
	// Name identifies the upstream service, e.g. "xai".
	Name() string

	// ModelID is the model identifier reported to clients, e.g. "grok-3-mini".
	ModelID() string

	// Generate performs a blocking completion.
	Generate(ctx context.Context, req Request) (*Result, error)

	// Stream performs a streaming completion, calling emit for each delta in
	// arrival order. A non-nil error from emit aborts the upstream call and
	// is returned unwrapped.
	Stream(ctx context.Context, req Request, emit func(Delta) error) error
}

// Sentinel errors for structured upstream-failure classification. Adapters
// wrap upstream errors with these when the cause is unambiguous.
var (
	// ErrAuth means the provider rejected our credentials.
	ErrAuth = errors.New("provider authentication failed")

	// ErrRateLimited means the provider throttled us.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrNoCredentials means no provider credential is configured at all.
	ErrNoCredentials = errors.New("no provider credentials configured: set XAI_API_KEY or GROQ_API_KEY")

	// ErrModelNotConfigured means the selected model's credential is absent.
	ErrModelNotConfigured = errors.New("selected model is not configured")
)
