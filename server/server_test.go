package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oibchat/oib/pkg/chat"
	"github.com/oibchat/oib/pkg/metrics"
	"github.com/oibchat/oib/pkg/provider"
	"github.com/oibchat/oib/pkg/ratelimit"
)

// stubProvider returns scripted results and deltas instead of calling a
// hosted model.
type stubProvider struct {
	modelID string
	result  *provider.Result
	deltas  []provider.Delta
	err     error

	// failAfter injects err after this many deltas when > 0.
	failAfter int
}

func (s *stubProvider) Name() string    { return "stub" }
func (s *stubProvider) ModelID() string { return s.modelID }

func (s *stubProvider) Generate(_ context.Context, _ provider.Request) (*provider.Result, error) {
	if s.err != nil && s.failAfter == 0 {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubProvider) Stream(_ context.Context, _ provider.Request, emit func(provider.Delta) error) error {
	for i, d := range s.deltas {
		if s.failAfter > 0 && i == s.failAfter {
			return s.err
		}
		if err := emit(d); err != nil {
			return err
		}
	}
	if s.err != nil {
		return s.err
	}
	return nil
}

// stubResolver serves one provider for every configured model.
type stubResolver struct {
	prov provider.Provider
	err  error
}

func (r *stubResolver) Get(_ chat.Model) (provider.Provider, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.prov, nil
}

// testServer creates a Server with stubbed provider and an in-memory limiter.
func testServer(t *testing.T, prov provider.Provider) *Server {
	t.Helper()
	return &Server{
		config:   DefaultConfig(),
		logger:   zap.NewNop(),
		resolver: &stubResolver{prov: prov},
		limiter:  ratelimit.NewFixedWindow(10, time.Minute),
		metrics:  metrics.New(),
	}
}

func postChat(t *testing.T, app *fiber.App, body any, headers map[string]string) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/chat", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeError(t *testing.T, resp *http.Response) chat.ErrorResponse {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var er chat.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &er))
	return er
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t, &stubProvider{modelID: "grok-3-mini"})
	app := s.newApp()

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var result map[string]string
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "ok", result["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := testServer(t, &stubProvider{modelID: "grok-3-mini"})
	app := s.newApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestNonStreamingChat(t *testing.T) {
	s := testServer(t, &stubProvider{
		modelID: "grok-3-mini",
		result:  &provider.Result{Content: "Hello! How can I help with your SaaS?"},
	})
	app := s.newApp()

	resp := postChat(t, app, chat.ChatRequest{Message: "hi"}, nil)
	assert.Equal(t, 200, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var result chat.ChatResponse
	require.NoError(t, json.Unmarshal(body, &result))

	assert.NotEmpty(t, result.Content)
	assert.Equal(t, "grok-3-mini", result.Model)

	_, err := time.Parse(time.RFC3339, result.Timestamp)
	assert.NoError(t, err, "timestamp must be ISO8601")
}

func TestEmptyMessageRejected(t *testing.T) {
	s := testServer(t, &stubProvider{modelID: "grok-3-mini"})
	app := s.newApp()

	resp := postChat(t, app, chat.ChatRequest{Message: ""}, nil)
	assert.Equal(t, 400, resp.StatusCode)

	er := decodeError(t, resp)
	assert.Equal(t, "Invalid request", er.Error)
	assert.False(t, er.Retryable)
}

func TestOverlongMessageRejected(t *testing.T) {
	s := testServer(t, &stubProvider{modelID: "grok-3-mini"})
	app := s.newApp()

	resp := postChat(t, app, chat.ChatRequest{Message: strings.Repeat("x", 10001)}, nil)
	assert.Equal(t, 400, resp.StatusCode)
	assert.False(t, decodeError(t, resp).Retryable)
}

func TestUnknownModelRejected(t *testing.T) {
	s := testServer(t, &stubProvider{modelID: "grok-3-mini"})
	app := s.newApp()

	resp := postChat(t, app, map[string]any{"message": "hi", "model": "gpt-5"}, nil)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestMalformedBodyRejected(t *testing.T) {
	s := testServer(t, &stubProvider{modelID: "grok-3-mini"})
	app := s.newApp()

	req := httptest.NewRequest("POST", "/chat", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestValidationNeverInvokesModel(t *testing.T) {
	invoked := false
	s := testServer(t, &stubProvider{modelID: "grok-3-mini"})
	s.resolver = &stubResolver{prov: &countingProvider{onCall: func() { invoked = true }}}
	app := s.newApp()

	resp := postChat(t, app, chat.ChatRequest{Message: ""}, nil)
	assert.Equal(t, 400, resp.StatusCode)
	assert.False(t, invoked, "validation failure must not reach the model")
}

// countingProvider flags any invocation.
type countingProvider struct {
	onCall func()
}

func (p *countingProvider) Name() string    { return "counting" }
func (p *countingProvider) ModelID() string { return "counting" }

func (p *countingProvider) Generate(context.Context, provider.Request) (*provider.Result, error) {
	p.onCall()
	return &provider.Result{Content: "x"}, nil
}

func (p *countingProvider) Stream(_ context.Context, _ provider.Request, _ func(provider.Delta) error) error {
	p.onCall()
	return nil
}

func TestRateLimitCeiling(t *testing.T) {
	s := testServer(t, &stubProvider{modelID: "grok-3-mini", result: &provider.Result{Content: "ok"}})
	app := s.newApp()

	headers := map[string]string{"x-forwarded-for": "203.0.113.7"}
	for i := 0; i < 10; i++ {
		resp := postChat(t, app, chat.ChatRequest{Message: "hi"}, headers)
		require.Equal(t, 200, resp.StatusCode, "request %d", i+1)
	}

	resp := postChat(t, app, chat.ChatRequest{Message: "hi"}, headers)
	assert.Equal(t, 429, resp.StatusCode)

	er := decodeError(t, resp)
	assert.Equal(t, "Rate limit exceeded", er.Error)
	assert.True(t, er.Retryable)
}

func TestRateLimitIsPerCaller(t *testing.T) {
	s := testServer(t, &stubProvider{modelID: "grok-3-mini", result: &provider.Result{Content: "ok"}})
	app := s.newApp()

	for i := 0; i < 10; i++ {
		postChat(t, app, chat.ChatRequest{Message: "hi"}, map[string]string{"x-forwarded-for": "203.0.113.7"})
	}

	resp := postChat(t, app, chat.ChatRequest{Message: "hi"}, map[string]string{"x-forwarded-for": "203.0.113.8"})
	assert.Equal(t, 200, resp.StatusCode)
}

func TestRateLimitPrecedesValidation(t *testing.T) {
	s := testServer(t, &stubProvider{modelID: "grok-3-mini", result: &provider.Result{Content: "ok"}})
	app := s.newApp()

	headers := map[string]string{"x-forwarded-for": "203.0.113.7"}
	for i := 0; i < 10; i++ {
		postChat(t, app, chat.ChatRequest{Message: "hi"}, headers)
	}

	// Even an invalid body is rejected with 429 once the quota is spent.
	resp := postChat(t, app, chat.ChatRequest{Message: ""}, headers)
	assert.Equal(t, 429, resp.StatusCode)
}

func TestCallerAddressPrecedence(t *testing.T) {
	s := testServer(t, &stubProvider{modelID: "grok-3-mini", result: &provider.Result{Content: "ok"}})
	app := s.newApp()

	// Exhaust quota for the first x-forwarded-for entry.
	headers := map[string]string{"x-forwarded-for": "198.51.100.1, 10.0.0.1"}
	for i := 0; i < 10; i++ {
		postChat(t, app, chat.ChatRequest{Message: "hi"}, headers)
	}

	// Same first entry, different tail: still the same caller.
	resp := postChat(t, app, chat.ChatRequest{Message: "hi"},
		map[string]string{"x-forwarded-for": "198.51.100.1, 10.9.9.9"})
	assert.Equal(t, 429, resp.StatusCode)

	// x-real-ip is only consulted when x-forwarded-for is absent.
	resp = postChat(t, app, chat.ChatRequest{Message: "hi"},
		map[string]string{"x-real-ip": "198.51.100.1"})
	assert.Equal(t, 200, resp.StatusCode)
}

func TestUpstreamRateLimitMapsTo429(t *testing.T) {
	s := testServer(t, &stubProvider{
		modelID: "grok-3-mini",
		err:     fmt.Errorf("call model: %w", provider.ErrRateLimited),
	})
	app := s.newApp()

	resp := postChat(t, app, chat.ChatRequest{Message: "hi"}, nil)
	assert.Equal(t, 429, resp.StatusCode)
	assert.True(t, decodeError(t, resp).Retryable)
}

func TestUpstreamAuthFailureMapsTo500NonRetryable(t *testing.T) {
	s := testServer(t, &stubProvider{
		modelID: "grok-3-mini",
		err:     fmt.Errorf("call model: %w", provider.ErrAuth),
	})
	app := s.newApp()

	resp := postChat(t, app, chat.ChatRequest{Message: "hi"}, nil)
	assert.Equal(t, 500, resp.StatusCode)

	er := decodeError(t, resp)
	assert.Equal(t, "Authentication error", er.Error)
	assert.False(t, er.Retryable)
}

func TestUpstreamModelFailureMapsTo500Retryable(t *testing.T) {
	s := testServer(t, &stubProvider{
		modelID: "grok-3-mini",
		err:     errors.New("model exploded"),
	})
	app := s.newApp()

	resp := postChat(t, app, chat.ChatRequest{Message: "hi"}, nil)
	assert.Equal(t, 500, resp.StatusCode)
	assert.True(t, decodeError(t, resp).Retryable)
}

func TestUnconfiguredModelMapsToConfigurationError(t *testing.T) {
	s := testServer(t, nil)
	s.resolver = &stubResolver{err: provider.ErrModelNotConfigured}
	app := s.newApp()

	resp := postChat(t, app, chat.ChatRequest{Message: "hi", Model: chat.ModelSecondary}, nil)
	assert.Equal(t, 500, resp.StatusCode)

	er := decodeError(t, resp)
	assert.Equal(t, "Configuration error", er.Error)
	assert.False(t, er.Retryable)
}

func TestNewFailsWithoutCredentials(t *testing.T) {
	_, err := New(DefaultConfig(), zap.NewNop())
	assert.ErrorIs(t, err, provider.ErrNoCredentials)
}

func TestFormatReasoning(t *testing.T) {
	assert.Equal(t, "", formatReasoning(""))
	assert.Equal(t, "a.\nb!\nc", formatReasoning("a. b! c"))
	// Reasoning that already has line breaks is left alone.
	assert.Equal(t, "a. b\nc", formatReasoning("a. b\nc"))
}
