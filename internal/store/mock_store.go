// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu         sync.RWMutex
	sessions   map[string]*Conversation // keyed by agent ID
	lastActive string

	// SaveErr, when set, is returned by SaveConversation. Lets tests
	// exercise the store-failure path.
	SaveErr error
	// SaveCount tracks how many commits happened.
	SaveCount int
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		sessions: make(map[string]*Conversation),
	}
}

// SaveConversation stores a deep copy of the conversation.
func (m *MockStore) SaveConversation(ctx context.Context, conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveCount++
	if m.SaveErr != nil {
		return m.SaveErr
	}

	m.sessions[conv.AgentID] = copyConversation(conv)
	return nil
}

// GetConversation retrieves a conversation by agent ID.
func (m *MockStore) GetConversation(ctx context.Context, agentID string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.sessions[agentID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyConversation(conv), nil
}

// DeleteConversation removes a conversation.
func (m *MockStore) DeleteConversation(ctx context.Context, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, agentID)
	return nil
}

// ListConversations returns all conversations, most recent activity first.
func (m *MockStore) ListConversations(ctx context.Context) ([]*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	convs := make([]*Conversation, 0, len(m.sessions))
	for _, conv := range m.sessions {
		convs = append(convs, copyConversation(conv))
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].LastActivity.After(convs[j].LastActivity)
	})
	return convs, nil
}

// SetLastActiveAgent records the last selected agent ID.
func (m *MockStore) SetLastActiveAgent(ctx context.Context, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastActive = agentID
	return nil
}

// LastActiveAgent returns the last selected agent ID.
func (m *MockStore) LastActiveAgent(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.lastActive, nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

// copyConversation deep-copies via JSON so stored state cannot alias the
// caller's live conversation. Mirrors the round-trip the SQLite store does.
func copyConversation(conv *Conversation) *Conversation {
	raw, err := json.Marshal(conv)
	if err != nil {
		// Conversation contains only JSON-safe types
		panic(err)
	}
	var out Conversation
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return &out
}
