package chat

// SourceItem is a citation attached to an AI response.
type SourceItem struct {
	ID          string `json:"id"`
	Icon        string `json:"icon,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// StreamingChunk is one frame of a streamed response. Chunks carry deltas,
// never totals: consumers concatenate Content and Reasoning across all chunks
// in arrival order until IsComplete.
type StreamingChunk struct {
	Content    string       `json:"content,omitempty"`   // Answer text delta
	Reasoning  string       `json:"reasoning,omitempty"` // Thinking text delta
	IsComplete bool         `json:"isComplete"`
	Sources    []SourceItem `json:"sources,omitempty"`

	// Timestamp is set on the final chunk only (ISO8601).
	Timestamp string `json:"timestamp,omitempty"`

	// Error is set when the stream failed mid-flight. A chunk carrying an
	// error always carries IsComplete=true; no further frames follow.
	Error string `json:"error,omitempty"`
}
