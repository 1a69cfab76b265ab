package client

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oibchat/oib/pkg/chat"
)

// maxTitleLen caps auto-generated thread titles.
const maxTitleLen = 50

// ThreadStore holds conversations in memory. Exactly one thread is active at
// a time; creating or switching deactivates the rest. All methods are safe
// for concurrent use.
type ThreadStore struct {
	mu       sync.Mutex
	threads  map[string]*chat.Thread
	activeID string
	now      func() time.Time
	newID    func() string
}

// NewThreadStore creates an empty store.
func NewThreadStore() *ThreadStore {
	return &ThreadStore{
		threads: make(map[string]*chat.Thread),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// TitleFromMessage derives a thread title from its first user message,
// truncated with an ellipsis when it runs long.
func TitleFromMessage(message string) string {
	title := strings.TrimSpace(message)
	if title == "" {
		return "New conversation"
	}
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen] + "..."
	}
	return title
}

// Create adds a new thread, makes it active, and returns its snapshot.
func (s *ThreadStore) Create(title string) chat.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	t := &chat.Thread{
		ID:        s.newID(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.threads[t.ID] = t
	s.activate(t.ID)
	return snapshotThread(t)
}

// activate marks one thread active and every other thread inactive.
// Callers hold the lock.
func (s *ThreadStore) activate(id string) {
	for _, t := range s.threads {
		t.IsActive = t.ID == id
	}
	s.activeID = id
}

// Switch makes the given thread active. Unknown IDs return false.
func (s *ThreadStore) Switch(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[id]; !ok {
		return false
	}
	s.activate(id)
	return true
}

// Active returns the active thread, or false when the store is empty.
func (s *ThreadStore) Active() (chat.Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[s.activeID]
	if !ok {
		return chat.Thread{}, false
	}
	return snapshotThread(t), true
}

// Get returns one thread by ID.
func (s *ThreadStore) Get(id string) (chat.Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[id]
	if !ok {
		return chat.Thread{}, false
	}
	return snapshotThread(t), true
}

// SetMessages replaces a thread's messages wholesale and bumps its
// UpdatedAt. The thread's title is derived from the first user message when
// it still carries the placeholder title.
func (s *ThreadStore) SetMessages(id string, messages []chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[id]
	if !ok {
		return
	}
	t.Messages = append([]chat.Message(nil), messages...)
	t.UpdatedAt = s.now()

	if t.Title == "New conversation" {
		for _, m := range messages {
			if m.Type == chat.MessageUser {
				t.Title = TitleFromMessage(m.Content)
				break
			}
		}
	}
}

// Delete removes a thread. Deleting the active thread promotes the most
// recently updated survivor, if any.
func (s *ThreadStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[id]; !ok {
		return
	}
	delete(s.threads, id)

	if s.activeID != id {
		return
	}
	s.activeID = ""
	remaining := s.sorted()
	if len(remaining) > 0 {
		s.activate(remaining[0].ID)
	}
}

// List returns all threads, most recently updated first.
func (s *ThreadStore) List() []chat.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]chat.Thread, 0, len(s.threads))
	for _, t := range s.sorted() {
		out = append(out, snapshotThread(t))
	}
	return out
}

// sorted returns internal thread pointers ordered by UpdatedAt descending.
// Callers hold the lock.
func (s *ThreadStore) sorted() []*chat.Thread {
	ts := make([]*chat.Thread, 0, len(s.threads))
	for _, t := range s.threads {
		ts = append(ts, t)
	}
	sort.Slice(ts, func(i, j int) bool {
		return ts[i].UpdatedAt.After(ts[j].UpdatedAt)
	})
	return ts
}

// snapshotThread deep-copies a thread so callers never alias store state.
func snapshotThread(t *chat.Thread) chat.Thread {
	cp := *t
	cp.Messages = append([]chat.Message(nil), t.Messages...)
	return cp
}
