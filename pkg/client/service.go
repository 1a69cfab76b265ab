// Package client implements the Go client for the OIB chat proxy: a low-level
// service that speaks the HTTP and SSE contract, an in-memory thread store,
// and an orchestrator that drives one conversation and exposes render-ready
// state to UIs.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oibchat/oib/pkg/chat"
)

// DefaultIdleTimeout bounds the silence between stream reads before the
// stream is declared stalled. An upstream that never completes would
// otherwise hang the consumer forever.
const DefaultIdleTimeout = 60 * time.Second

// Service issues chat requests against one proxy endpoint.
type Service struct {
	baseURL     string
	httpClient  *http.Client
	idleTimeout time.Duration
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ServiceOption {
	return func(s *Service) { s.httpClient = hc }
}

// WithIdleTimeout changes the stall-detection window for streams.
func WithIdleTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.idleTimeout = d }
}

// NewService creates a Service for the proxy at baseURL (e.g.
// "http://localhost:8080").
func NewService(baseURL string, opts ...ServiceOption) *Service {
	s := &Service{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{},
		idleTimeout: DefaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) post(ctx context.Context, req chat.ChatRequest) (*http.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return s.httpClient.Do(httpReq)
}

// decodeErrorResponse turns a non-2xx response into a typed *chat.Error.
func decodeErrorResponse(resp *http.Response) *chat.Error {
	var body chat.ErrorResponse
	// A body that fails to decode still yields a typed error from the status.
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return chat.NewError(resp.StatusCode, body)
}

// Send performs a non-streaming chat call. Errors are always *chat.Error.
func (s *Service) Send(ctx context.Context, req chat.ChatRequest) (*chat.ChatResponse, error) {
	if issues := req.Validate(); len(issues) > 0 {
		return nil, &chat.Error{
			Code:      chat.CodeInvalidRequest,
			Message:   strings.Join(issues, ", "),
			Retryable: false,
		}
	}

	req.Stream = false
	resp, err := s.post(ctx, req)
	if err != nil {
		return nil, &chat.Error{
			Code:      chat.CodeTransport,
			Message:   "failed to connect to AI service: " + err.Error(),
			Retryable: true,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeErrorResponse(resp)
	}

	var result chat.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &chat.Error{
			Code:      chat.CodeTransport,
			Message:   "failed to decode AI response: " + err.Error(),
			Retryable: true,
		}
	}
	return &result, nil
}

// Stream opens a streaming chat call. The returned Stream must be closed.
// Errors are always *chat.Error.
func (s *Service) Stream(ctx context.Context, req chat.ChatRequest) (*Stream, error) {
	if issues := req.Validate(); len(issues) > 0 {
		return nil, &chat.Error{
			Code:      chat.CodeInvalidRequest,
			Message:   strings.Join(issues, ", "),
			Retryable: false,
		}
	}

	ctx, cancel := context.WithCancel(ctx)

	req.Stream = true
	resp, err := s.post(ctx, req)
	if err != nil {
		cancel()
		return nil, &chat.Error{
			Code:      chat.CodeStreamSetup,
			Message:   "failed to open stream: " + err.Error(),
			Retryable: true,
		}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		cancel()
		return nil, decodeErrorResponse(resp)
	}

	stream := &Stream{
		body:   resp.Body,
		cancel: cancel,
		idle:   s.idleTimeout,
	}
	stream.scanner = bufio.NewScanner(resp.Body)
	stream.scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	// Stall watchdog: if no frame arrives within the idle window the
	// context is canceled, failing the blocked read.
	stream.timer = time.AfterFunc(s.idleTimeout, func() {
		stream.stalled.Store(true)
		cancel()
	})

	return stream, nil
}

// Stream is one open SSE response. Recv returns chunks in arrival order;
// consumers must apply them in that order since the payloads are deltas.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	cancel  context.CancelFunc
	timer   *time.Timer
	idle    time.Duration
	stalled atomic.Bool
	done    bool
}

// Recv returns the next chunk. After a chunk with IsComplete, or after an
// error, Recv returns io.EOF. A server that closes the stream without a
// completion frame yields one synthetic IsComplete chunk.
func (st *Stream) Recv() (chat.StreamingChunk, error) {
	if st.done {
		return chat.StreamingChunk{}, io.EOF
	}

	for st.scanner.Scan() {
		st.timer.Reset(st.idle)

		line := strings.TrimSpace(st.scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var chunk chat.StreamingChunk
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk); err != nil {
			// Skip unparseable frames rather than killing the stream.
			continue
		}

		if chunk.IsComplete {
			st.done = true
		}
		return chunk, nil
	}

	st.done = true

	if err := st.scanner.Err(); err != nil {
		if st.stalled.Load() {
			return chat.StreamingChunk{}, &chat.Error{
				Code:      chat.CodeTransport,
				Message:   fmt.Sprintf("stream stalled: no data for %s", st.idle),
				Retryable: true,
			}
		}
		return chat.StreamingChunk{}, &chat.Error{
			Code:      chat.CodeTransport,
			Message:   "failed to read stream: " + err.Error(),
			Retryable: true,
		}
	}

	// Clean EOF without a completion frame.
	return chat.StreamingChunk{IsComplete: true}, nil
}

// Close aborts the stream and releases the response body. Safe to call at
// any point, including mid-Recv from another goroutine.
func (st *Stream) Close() error {
	st.timer.Stop()
	st.cancel()
	return st.body.Close()
}
