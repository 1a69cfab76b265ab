package client

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oibchat/oib/pkg/chat"
)

// Apology is the user-facing content shown in place of an answer when a
// message fails. The typed error rides alongside it in State.Err.
const Apology = "Sorry, I encountered an error while processing your message. Please try again."

const defaultThreadTitle = "New conversation"

// State is a render-ready snapshot of one conversation. UIs poll it instead
// of sharing orchestrator internals.
type State struct {
	ThreadID    string
	Messages    []chat.Message
	IsStreaming bool
	IsReasoning bool
	Err         *chat.Error
}

// Orchestrator drives one conversation against a Service: it appends the
// user's message optimistically, opens the stream, folds deltas into a
// growing AI message, and settles the message on completion, failure, or
// abort. At most one message is in flight; a send while one is active is a
// no-op.
type Orchestrator struct {
	svc   *Service
	store *ThreadStore

	mu          sync.Mutex
	model       chat.Model
	contextText string
	threadID    string
	messages    []chat.Message
	inFlight    bool
	streaming   bool
	reasoning   bool
	hasContent  bool
	aborted     bool
	lastErr     *chat.Error
	stream      *Stream

	now   func() time.Time
	newID func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithModel selects the model used for sends.
func WithModel(m chat.Model) Option {
	return func(o *Orchestrator) { o.model = m }
}

// WithContext attaches extra page or session context to every request.
func WithContext(text string) Option {
	return func(o *Orchestrator) { o.contextText = text }
}

// NewOrchestrator creates an orchestrator with one empty active thread.
func NewOrchestrator(svc *Service, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		svc:   svc,
		store: NewThreadStore(),
		model: chat.ModelPrimary,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	t := o.store.Create(defaultThreadTitle)
	o.threadID = t.ID
	return o
}

// SetModel changes the model used for subsequent sends.
func (o *Orchestrator) SetModel(m chat.Model) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.model = m
}

// Model returns the currently selected model.
func (o *Orchestrator) Model() chat.Model {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.model
}

// SendMessage sends one user message and blocks until the reply settles.
// Empty input and sends while another message is in flight are no-ops.
// Failures are recorded in state (apology content plus typed error) and also
// returned.
func (o *Orchestrator) SendMessage(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return nil
	}
	o.inFlight = true
	o.streaming = true
	o.reasoning = false
	o.hasContent = false
	o.aborted = false
	o.lastErr = nil

	now := o.now()
	o.messages = append(o.messages,
		chat.Message{
			ID:        o.newID(),
			Type:      chat.MessageUser,
			Content:   content,
			Timestamp: now,
		},
		chat.Message{
			ID:          o.newID(),
			Type:        chat.MessageAI,
			IsStreaming: true,
			Timestamp:   now,
		},
	)

	req := chat.ChatRequest{
		Message:  content,
		ThreadID: o.threadID,
		Context:  o.contextText,
		Model:    o.model,
		Stream:   true,
	}
	o.mu.Unlock()

	stream, err := o.svc.Stream(ctx, req)
	if err != nil {
		o.fail(asChatError(err))
		return o.settle(nil)
	}

	o.mu.Lock()
	if o.aborted {
		o.mu.Unlock()
		stream.Close()
		return o.settle(stream)
	}
	o.stream = stream
	o.mu.Unlock()

	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			o.fail(asChatError(err))
			break
		}
		if chunk.Error != "" {
			o.fail(&chat.Error{
				Code:      chat.CodeUpstreamModel,
				Message:   chunk.Error,
				Retryable: true,
			})
			break
		}
		o.apply(chunk)
		if chunk.IsComplete {
			break
		}
	}

	return o.settle(stream)
}

// settle closes the stream and clears in-flight state, returning the typed
// error if the send failed. Aborted sends return nil.
func (o *Orchestrator) settle(stream *Stream) error {
	if stream != nil {
		stream.Close()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight = false
	o.streaming = false
	o.reasoning = false
	o.stream = nil

	if o.aborted || o.lastErr == nil {
		return nil
	}
	return o.lastErr
}

// apply folds one chunk into the trailing AI message. Reasoning deltas are
// accepted only until the first content delta arrives. The completion chunk
// settles the message; its reasoning field repeats what was already streamed,
// so the local accumulation stands and the field is ignored.
func (o *Orchestrator) apply(chunk chat.StreamingChunk) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.aborted || len(o.messages) == 0 {
		return
	}
	msg := &o.messages[len(o.messages)-1]
	if msg.Type != chat.MessageAI || !msg.IsStreaming {
		return
	}

	if chunk.IsComplete {
		if len(chunk.Sources) > 0 {
			msg.Sources = chunk.Sources
		}
		msg.IsStreaming = false
		o.reasoning = false
		o.commitLocked()
		return
	}

	if chunk.Reasoning != "" && !o.hasContent {
		msg.Reasoning += chunk.Reasoning
		o.reasoning = true
	}
	if chunk.Content != "" {
		if !o.hasContent {
			o.hasContent = true
			o.reasoning = false
		}
		msg.Content += chunk.Content
	}
}

// fail settles the trailing AI message with the apology and records the
// typed error. Aborted sends keep their partial content instead.
func (o *Orchestrator) fail(err *chat.Error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.aborted {
		return
	}
	o.lastErr = err
	o.reasoning = false

	if len(o.messages) > 0 {
		msg := &o.messages[len(o.messages)-1]
		if msg.Type == chat.MessageAI && msg.IsStreaming {
			msg.Content = Apology
			msg.Reasoning = ""
			msg.IsStreaming = false
		}
	}
	o.commitLocked()
}

// Cancel aborts the in-flight send, if any. Partial content already applied
// stays on the message; no chunk arriving after the abort mutates state.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelLocked()
}

func (o *Orchestrator) cancelLocked() {
	if !o.inFlight {
		return
	}
	o.aborted = true
	if o.stream != nil {
		o.stream.Close()
	}
	if len(o.messages) > 0 {
		msg := &o.messages[len(o.messages)-1]
		if msg.Type == chat.MessageAI && msg.IsStreaming {
			msg.IsStreaming = false
		}
	}
	o.streaming = false
	o.reasoning = false
	o.commitLocked()
}

// RetryLastMessage discards the last exchange's AI reply and resends the
// last user message. A no-op when nothing has been sent or a send is in
// flight.
func (o *Orchestrator) RetryLastMessage(ctx context.Context) error {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return nil
	}

	lastUser := -1
	for i := len(o.messages) - 1; i >= 0; i-- {
		if o.messages[i].Type == chat.MessageUser {
			lastUser = i
			break
		}
	}
	if lastUser == -1 {
		o.mu.Unlock()
		return nil
	}

	content := o.messages[lastUser].Content
	o.messages = o.messages[:lastUser]
	o.lastErr = nil
	o.mu.Unlock()

	return o.SendMessage(ctx, content)
}

// ClearMessages empties the active thread. An in-flight send is aborted
// first.
func (o *Orchestrator) ClearMessages() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.cancelLocked()
	o.messages = nil
	o.lastErr = nil
	o.hasContent = false
	o.commitLocked()
}

// NewThread aborts any in-flight send and starts a fresh active thread.
func (o *Orchestrator) NewThread() chat.Thread {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.cancelLocked()
	t := o.store.Create(defaultThreadTitle)
	o.threadID = t.ID
	o.messages = nil
	o.lastErr = nil
	o.hasContent = false
	return t
}

// SwitchThread aborts any in-flight send and activates another thread,
// loading its messages. Unknown IDs return false.
func (o *Orchestrator) SwitchThread(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.store.Switch(id) {
		return false
	}
	o.cancelLocked()

	t, _ := o.store.Get(id)
	o.threadID = id
	o.messages = append([]chat.Message(nil), t.Messages...)
	o.lastErr = nil
	o.hasContent = false
	return true
}

// Threads lists all threads, most recently updated first.
func (o *Orchestrator) Threads() []chat.Thread {
	return o.store.List()
}

// Snapshot returns a copy of the conversation state for rendering.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	return State{
		ThreadID:    o.threadID,
		Messages:    append([]chat.Message(nil), o.messages...),
		IsStreaming: o.streaming,
		IsReasoning: o.reasoning,
		Err:         o.lastErr,
	}
}

// commitLocked writes the working messages back to the store. Callers hold
// the lock.
func (o *Orchestrator) commitLocked() {
	o.store.SetMessages(o.threadID, o.messages)
}

// asChatError normalizes any error from the service layer into *chat.Error.
func asChatError(err error) *chat.Error {
	if cerr, ok := err.(*chat.Error); ok {
		return cerr
	}
	return &chat.Error{
		Code:      chat.CodeServiceError,
		Message:   err.Error(),
		Retryable: true,
	}
}
