package internal

import (
	"fmt"
	"sync"
	"time"
)

// MemStore is an in-memory KVStore used by tests. SetErr, when non-nil, is
// returned from every Set call to simulate persistence failures.
type MemStore struct {
	mu     sync.Mutex
	data   map[string]string
	SetErr error
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]string)}
}

// Get returns the value for baseKey.
func (m *MemStore) Get(baseKey string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[baseKey]
	return value, ok, nil
}

// Set stores a value for baseKey.
func (m *MemStore) Set(baseKey, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	m.data[baseKey] = value
	return nil
}

// Delete removes baseKey.
func (m *MemStore) Delete(baseKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, baseKey)
	return nil
}

// Len returns the number of stored keys.
func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// TextContent builds a single-item text content list.
func TextContent(text string) ContentList {
	return ContentList{{Kind: ContentKindText, Text: text}}
}

// CreateTestMessage creates a message with a text body and sent timestamp.
func CreateTestMessage(id, role, text string, sentAt time.Time) Message {
	return Message{
		ID:      id,
		Role:    role,
		Content: TextContent(text),
		SentAt:  NewTimestamp(sentAt),
	}
}

// CreateTestConversation creates a conversation with msgCount alternating
// user/assistant messages spaced ten seconds apart.
func CreateTestConversation(id string, msgCount int) *Conversation {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	messages := make([]Message, 0, msgCount)
	for i := 0; i < msgCount; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		messages = append(messages, CreateTestMessage(
			fmt.Sprintf("msg-%d", i+1),
			role,
			fmt.Sprintf("message %d", i+1),
			base.Add(time.Duration(i)*10*time.Second),
		))
	}
	return &Conversation{
		ID:        id,
		Title:     "Test Conversation " + id,
		CreatedAt: NewTimestamp(base),
		Messages:  messages,
	}
}

// CreateTestThread creates a thread with the given messages.
func CreateTestThread(id, conversationID string, createdAt time.Time, messages ...Message) Thread {
	return Thread{
		ID:             id,
		ConversationID: conversationID,
		CreatedAt:      NewTimestamp(createdAt),
		Messages:       messages,
	}
}

// CreateTestSummaries spreads n thread summaries evenly inside r, one
// conversation per thread.
func CreateTestSummaries(r TimeRange, n int) []ThreadSummary {
	summaries := make([]ThreadSummary, 0, n)
	step := r.Duration() / time.Duration(n+1)
	for i := 0; i < n; i++ {
		summaries = append(summaries, ThreadSummary{
			ID:             fmt.Sprintf("threads/%08d-0000-4000-8000-000000000000", i+1),
			ConversationID: fmt.Sprintf("conv-%d", i+1),
			CreatedAt:      NewTimestamp(r.Start.Add(step * time.Duration(i+1))),
		})
	}
	return summaries
}
