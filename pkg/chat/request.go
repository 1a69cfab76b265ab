// Package chat defines the wire types shared by the OIB proxy server and its
// clients: requests, streamed chunks, responses, and the error taxonomy.
package chat

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageLen is the upper bound on a chat message, in characters.
const MaxMessageLen = 10000

// Model selects which hosted model serves a request.
type Model string

const (
	// ModelPrimary is grok-3-mini served through the x.ai API.
	ModelPrimary Model = "primary"
	// ModelSecondary is gpt-oss-120b served through the Groq API.
	ModelSecondary Model = "secondary"
)

// Valid reports whether m names a supported model. The empty string is valid
// and resolves to ModelPrimary.
func (m Model) Valid() bool {
	return m == "" || m == ModelPrimary || m == ModelSecondary
}

// OrDefault resolves the empty model to ModelPrimary.
func (m Model) OrDefault() Model {
	if m == "" {
		return ModelPrimary
	}
	return m
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message  string `json:"message"`            // User prompt, required, 1..MaxMessageLen chars
	ThreadID string `json:"threadId,omitempty"` // Opaque conversation id, client-side only
	Context  string `json:"context,omitempty"`  // Extra context appended to the system prompt
	Stream   bool   `json:"stream,omitempty"`   // Stream the response as SSE frames (default: false)
	Model    Model  `json:"model,omitempty"`    // "primary" or "secondary" (default: primary)
}

// Validate checks the request against the schema and returns one issue string
// per violation. An empty slice means the request is acceptable.
func (r *ChatRequest) Validate() []string {
	var issues []string

	if strings.TrimSpace(r.Message) == "" {
		issues = append(issues, "message is required and cannot be empty")
	}
	if utf8.RuneCountInString(r.Message) > MaxMessageLen {
		issues = append(issues, "message is too long (max 10000 characters)")
	}
	if !r.Model.Valid() {
		issues = append(issues, "model must be one of: primary, secondary")
	}

	return issues
}
