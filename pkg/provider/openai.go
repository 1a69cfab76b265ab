package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAICompatible drives any OpenAI-compatible completion API through
// langchaingo. Both hosted models (x.ai and Groq) speak this protocol.
type OpenAICompatible struct {
	llm      *openai.LLM
	name     string
	modelID  string
	apiModel string
}

// NewOpenAICompatible creates an adapter for one hosted model.
// modelID is the identifier reported to clients; apiModel is the name the
// upstream API expects (they differ for Groq's "openai/" prefixed models).
func NewOpenAICompatible(name, modelID, apiModel, baseURL, apiKey string) (*OpenAICompatible, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrModelNotConfigured)
	}

	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(apiModel),
		openai.WithBaseURL(baseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", name, err)
	}

	return &OpenAICompatible{
		llm:      llm,
		name:     name,
		modelID:  modelID,
		apiModel: apiModel,
	}, nil
}

func (p *OpenAICompatible) Name() string    { return p.name }
func (p *OpenAICompatible) ModelID() string { return p.modelID }

func (p *OpenAICompatible) messages(req Request) []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, req.Message),
	}
}

func (p *OpenAICompatible) temperature(req Request) float64 {
	if req.Temperature > 0 {
		return req.Temperature
	}
	return DefaultTemperature
}

// Generate implements Provider.
func (p *OpenAICompatible) Generate(ctx context.Context, req Request) (*Result, error) {
	resp, err := p.llm.GenerateContent(ctx, p.messages(req),
		llms.WithTemperature(p.temperature(req)))
	if err != nil {
		return nil, p.wrap(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", p.name)
	}

	choice := resp.Choices[0]
	return &Result{
		Content:   choice.Content,
		Reasoning: choice.ReasoningContent,
	}, nil
}

// Stream implements Provider. Reasoning and content deltas arrive through
// langchaingo's streaming callbacks in upstream order.
func (p *OpenAICompatible) Stream(ctx context.Context, req Request, emit func(Delta) error) error {
	var emitErr error

	_, err := p.llm.GenerateContent(ctx, p.messages(req),
		llms.WithTemperature(p.temperature(req)),
		llms.WithStreamingReasoningFunc(func(_ context.Context, reasoningChunk, chunk []byte) error {
			if len(reasoningChunk) == 0 && len(chunk) == 0 {
				return nil
			}
			if err := emit(Delta{
				Reasoning: string(reasoningChunk),
				Content:   string(chunk),
			}); err != nil {
				emitErr = err
				return err
			}
			return nil
		}))

	if emitErr != nil {
		// The consumer aborted; its error wins over whatever langchaingo
		// wrapped it into.
		return emitErr
	}
	if err != nil {
		return p.wrap(err)
	}
	return nil
}

// wrap attaches a typed sentinel when the upstream failure is unambiguous so
// classification does not have to rely on substring matching.
func (p *OpenAICompatible) wrap(err error) error {
	if errors.Is(err, ErrAuth) || errors.Is(err, ErrRateLimited) {
		return err
	}

	switch Classify(err) {
	case KindAuth:
		return fmt.Errorf("%s: %w: %s", p.name, ErrAuth, err.Error())
	case KindRateLimited:
		return fmt.Errorf("%s: %w: %s", p.name, ErrRateLimited, err.Error())
	default:
		return fmt.Errorf("%s: %w", p.name, err)
	}
}
