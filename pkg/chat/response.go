package chat

// ChatResponse is the body of a non-streaming POST /chat success.
type ChatResponse struct {
	Content   string       `json:"content"`
	Reasoning string       `json:"reasoning,omitempty"`
	Sources   []SourceItem `json:"sources,omitempty"`
	Model     string       `json:"model"`     // Underlying model id, e.g. "grok-3-mini"
	Timestamp string       `json:"timestamp"` // ISO8601
}
