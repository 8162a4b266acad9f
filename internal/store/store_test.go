// ABOUTME: Tests for conversation data types and the mock store
// ABOUTME: Verifies turn construction rules and mock isolation semantics

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserTurn_NeverMarkdown(t *testing.T) {
	turn := NewUserTurn("**hi**", nil)

	assert.True(t, turn.IsUser)
	assert.False(t, turn.Markdown)
	assert.False(t, turn.Timestamp.IsZero())
}

func TestNewAgentTurn_DefaultsToMarkdown(t *testing.T) {
	turn := NewAgentTurn("response")

	assert.False(t, turn.IsUser)
	assert.True(t, turn.Markdown)
}

func TestMockStore_CopiesOnSaveAndGet(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	conv := NewConversation("agent-1")
	conv.Turns = append(conv.Turns, NewUserTurn("original", nil))
	require.NoError(t, m.SaveConversation(ctx, conv))

	// Mutating the caller's conversation must not leak into the store
	conv.Turns[0].Text = "mutated"

	got, err := m.GetConversation(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "original", got.Turns[0].Text)

	// Mutating the returned copy must not leak either
	got.Turns[0].Text = "mutated again"
	again, err := m.GetConversation(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Turns[0].Text)
}

func TestMockStore_SaveErr(t *testing.T) {
	m := NewMockStore()
	m.SaveErr = assert.AnError

	err := m.SaveConversation(context.Background(), NewConversation("agent-1"))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, m.SaveCount)
}
