package chat

import (
	"fmt"
	"net/http"
)

// ErrorResponse is the JSON body returned for any non-2xx status.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable"`
}

// Code classifies a failure for programmatic handling.
type Code string

const (
	CodeInvalidRequest Code = "AI_INVALID_REQUEST" // 400, not retryable
	CodeRateLimited    Code = "AI_RATE_LIMIT"      // 429, retryable
	CodeUpstreamAuth   Code = "AI_AUTH_ERROR"      // 500, not retryable
	CodeUpstreamModel  Code = "AI_MODEL_ERROR"     // 500, retryable
	CodeTransport      Code = "AI_TRANSPORT_ERROR" // network or stream-body failure, retryable
	CodeStreamSetup    Code = "AI_STREAM_SETUP"    // stream never opened, retryable
	CodeServiceError   Code = "AI_SERVICE_ERROR"   // anything else, retryable
)

// Error is the typed error surfaced by clients of the chat API. It never
// escapes the orchestrator boundary uncaught; callers read it from state.
type Error struct {
	Code      Code
	Message   string
	Retryable bool
	Status    int // HTTP status, 0 when the failure never reached HTTP
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds an Error from an HTTP status and the decoded error body.
// Unknown statuses map to CodeServiceError with the body's retryable hint.
func NewError(status int, body ErrorResponse) *Error {
	code := CodeServiceError
	retryable := body.Retryable

	switch {
	case status == http.StatusTooManyRequests:
		code = CodeRateLimited
		retryable = true
	case status == http.StatusBadRequest:
		code = CodeInvalidRequest
		retryable = false
	case status >= 500:
		code = CodeUpstreamModel
	}

	msg := body.Message
	if msg == "" {
		msg = body.Error
	}
	if msg == "" {
		msg = "an error occurred"
	}

	return &Error{
		Code:      code,
		Message:   msg,
		Retryable: retryable,
		Status:    status,
	}
}
