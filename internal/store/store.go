// ABOUTME: Store interface and data types for coven-chat persistence
// ABOUTME: Defines Turn, Conversation, ConversationIndex and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested conversation does not exist
var ErrNotFound = errors.New("not found")

// FileRef is a file attached to a turn, encoded as a self-describing
// data URI: data:<media-type>;base64,<payload>. Value type, never mutated.
type FileRef struct {
	DataURI   string `json:"data_uri"`
	FileName  string `json:"file_name"`
	MediaType string `json:"media_type"`
}

// Turn is a single message within a conversation. Committed turns are
// immutable except the most recent agent turn's Text, which is updated in
// place while a response streams in.
type Turn struct {
	Text      string    `json:"text"`
	IsUser    bool      `json:"is_user"`
	Markdown  bool      `json:"markdown"`
	Timestamp time.Time `json:"timestamp"`
	Files     []FileRef `json:"files,omitempty"`
}

// NewUserTurn builds a turn authored by the user. User turns are always
// plain text, never markdown.
func NewUserTurn(text string, files []FileRef) Turn {
	return Turn{
		Text:      text,
		IsUser:    true,
		Markdown:  false,
		Timestamp: time.Now(),
		Files:     files,
	}
}

// NewAgentTurn builds a turn authored by the agent. Agent turns default to
// markdown rendering.
func NewAgentTurn(text string) Turn {
	return Turn{
		Text:      text,
		IsUser:    false,
		Markdown:  true,
		Timestamp: time.Now(),
	}
}

// Conversation is the full exchange history with one agent. It is the unit
// of persistence: commits always write the whole conversation.
type Conversation struct {
	AgentID        string    `json:"agent_id"`
	AgentName      string    `json:"agent_name,omitempty"`
	ThreadID       string    `json:"thread_id,omitempty"`
	LastResponseID string    `json:"last_response_id,omitempty"`
	Turns          []Turn    `json:"turns"`
	LastActivity   time.Time `json:"last_activity"`
}

// NewConversation returns an empty conversation for the given agent.
func NewConversation(agentID string) *Conversation {
	return &Conversation{
		AgentID:      agentID,
		LastActivity: time.Now(),
	}
}

// ConversationIndex is the root persisted object: every conversation keyed
// by agent ID, plus the last selected agent for startup restore.
type ConversationIndex struct {
	Sessions          map[string]*Conversation `json:"sessions"`
	LastActiveAgentID string                   `json:"last_active_agent_id,omitempty"`
}

// Store defines the interface for conversation persistence.
//
// SaveConversation is a whole-conversation upsert: no partial-field writes
// are ever visible to a reader. Exactly one active-agent mutator exists at
// a time, so last-writer-wins is sufficient.
type Store interface {
	SaveConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, agentID string) (*Conversation, error)
	DeleteConversation(ctx context.Context, agentID string) error
	ListConversations(ctx context.Context) ([]*Conversation, error)

	SetLastActiveAgent(ctx context.Context, agentID string) error
	LastActiveAgent(ctx context.Context) (string, error)

	// Close releases any resources held by the store
	Close() error
}
