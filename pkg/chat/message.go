package chat

import "time"

// MessageType distinguishes user turns from model turns.
type MessageType string

const (
	MessageUser MessageType = "user"
	MessageAI   MessageType = "ai"
)

// Message is one turn of a conversation as tracked by a client. Content and
// Reasoning are append-only while IsStreaming is true; the message freezes
// when the stream completes or fails.
type Message struct {
	ID          string       `json:"id"`
	Type        MessageType  `json:"type"`
	Content     string       `json:"content"`
	Reasoning   string       `json:"reasoning,omitempty"`
	Sources     []SourceItem `json:"sources,omitempty"`
	IsStreaming bool         `json:"isStreaming,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// Thread is an ordered conversation held in client memory. Exactly one thread
// is active per orchestrator at any time.
type Thread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	IsActive  bool      `json:"isActive"`
}
