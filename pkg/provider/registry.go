package provider

import (
	"fmt"

	"github.com/oibchat/oib/pkg/chat"
)

// Hosted model endpoints. Both are OpenAI-compatible.
const (
	xaiBaseURL  = "https://api.x.ai/v1"
	groqBaseURL = "https://api.groq.com/openai/v1"

	primaryModelID    = "grok-3-mini"
	secondaryModelID  = "gpt-oss-120b"
	secondaryAPIModel = "openai/gpt-oss-120b"
)

// Credentials holds the per-provider API keys. At least one must be set.
type Credentials struct {
	XAIAPIKey  string // serves chat.ModelPrimary
	GroqAPIKey string // serves chat.ModelSecondary
}

// Resolver maps a requested model to a Provider.
type Resolver interface {
	Get(model chat.Model) (Provider, error)
}

// Registry is the process-wide Resolver, built once at startup so missing
// credentials fail fast instead of per request.
type Registry struct {
	providers map[chat.Model]Provider
}

// NewRegistry validates credentials and constructs the configured providers.
// The secondary model emits reasoning as inline <think> blocks, so it is
// wrapped with tag extraction; the primary emits native reasoning deltas.
func NewRegistry(creds Credentials) (*Registry, error) {
	if creds.XAIAPIKey == "" && creds.GroqAPIKey == "" {
		return nil, ErrNoCredentials
	}

	providers := make(map[chat.Model]Provider, 2)

	if creds.XAIAPIKey != "" {
		p, err := NewOpenAICompatible("xai", primaryModelID, primaryModelID, xaiBaseURL, creds.XAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("configure primary model: %w", err)
		}
		providers[chat.ModelPrimary] = p
	}

	if creds.GroqAPIKey != "" {
		p, err := NewOpenAICompatible("groq", secondaryModelID, secondaryAPIModel, groqBaseURL, creds.GroqAPIKey)
		if err != nil {
			return nil, fmt.Errorf("configure secondary model: %w", err)
		}
		providers[chat.ModelSecondary] = ExtractReasoning(p, "think")
	}

	return &Registry{providers: providers}, nil
}

// Get implements Resolver. The empty model resolves to the primary.
func (r *Registry) Get(model chat.Model) (Provider, error) {
	p, ok := r.providers[model.OrDefault()]
	if !ok {
		return nil, fmt.Errorf("%s: %w", model.OrDefault(), ErrModelNotConfigured)
	}
	return p, nil
}

// Models lists the configured models.
func (r *Registry) Models() []chat.Model {
	models := make([]chat.Model, 0, len(r.providers))
	for m := range r.providers {
		models = append(models, m)
	}
	return models
}
