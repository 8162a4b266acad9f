// ABOUTME: Session Lifecycle Manager mapping the selected agent to a conversation
// ABOUTME: Loads, switches, clears, and flushes conversations around exchanges

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/2389/coven-chat/internal/conversation"
	"github.com/2389/coven-chat/internal/store"
	"github.com/2389/coven-chat/internal/transport"
)

// ErrNoActiveAgent is returned when an operation needs a selected agent.
var ErrNoActiveAgent = errors.New("no agent selected")

// AgentDirectory is the slice of the transport the manager needs for
// display names.
type AgentDirectory interface {
	GetAgent(ctx context.Context, id string) (*transport.Agent, error)
}

// Exchanger runs one exchange against a conversation.
type Exchanger interface {
	Run(ctx context.Context, req *conversation.ExchangeRequest) (*conversation.ExchangeResult, error)
}

// Manager owns the active conversation. Exactly one conversation is
// active at a time; switching agents flushes the outgoing conversation
// before the new one is loaded. All mutation of the active conversation
// funnels through the manager and the exchanger it drives.
type Manager struct {
	store     store.Store
	exchanger Exchanger
	directory AgentDirectory
	logger    *slog.Logger

	mu     sync.Mutex
	active *store.Conversation
}

// NewManager creates a Manager. The directory may be nil; display names
// are then left empty.
func NewManager(st store.Store, exchanger Exchanger, directory AgentDirectory, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     st,
		exchanger: exchanger,
		directory: directory,
		logger:    logger.With("component", "session"),
	}
}

// SelectAgent makes agentID's conversation the active one. Any previously
// active conversation with pending turns is committed first. A
// conversation with zero turns is a fresh session with no thread ID.
func (m *Manager) SelectAgent(ctx context.Context, agentID string) (*store.Conversation, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent_id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil && m.active.AgentID == agentID {
		return m.active, nil
	}

	m.flushLocked(ctx)

	conv, err := m.store.GetConversation(ctx, agentID)
	if errors.Is(err, store.ErrNotFound) {
		conv = store.NewConversation(agentID)
		m.logger.Info("starting new session", "agent_id", agentID)
	} else if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	} else {
		m.logger.Info("restored session",
			"agent_id", agentID,
			"turns", len(conv.Turns),
			"thread_id", conv.ThreadID)
	}

	// Best-effort display name; the ID is always a valid fallback.
	if m.directory != nil {
		if agent, err := m.directory.GetAgent(ctx, agentID); err == nil {
			conv.AgentName = agent.Name
		} else {
			m.logger.Debug("could not fetch agent details", "agent_id", agentID, "error", err)
		}
	}

	m.active = conv
	if err := m.store.SetLastActiveAgent(ctx, agentID); err != nil {
		m.logger.Warn("failed to record last active agent", "error", err)
	}
	return conv, nil
}

// Active returns the active conversation, or nil when none is selected.
func (m *Manager) Active() *store.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Send runs one exchange against the active conversation.
func (m *Manager) Send(ctx context.Context, text string, files []store.FileRef, streaming bool, onUpdate func(string)) (*conversation.ExchangeResult, error) {
	m.mu.Lock()
	conv := m.active
	m.mu.Unlock()

	if conv == nil {
		return nil, ErrNoActiveAgent
	}

	// The exchanger serializes exchanges per agent and commits at each
	// terminal state; the manager's lock is not held across the exchange
	// so a superseding send can cancel an in-flight one.
	return m.exchanger.Run(ctx, &conversation.ExchangeRequest{
		Conversation: conv,
		Text:         text,
		Files:        files,
		Streaming:    streaming,
		OnUpdate:     onUpdate,
	})
}

// ClearActive empties the active conversation and resets its continuity
// IDs: new conversation, same agent. The cleared state is committed.
func (m *Manager) ClearActive(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return ErrNoActiveAgent
	}

	m.active.Turns = nil
	m.active.ThreadID = ""
	m.active.LastResponseID = ""

	if err := m.store.SaveConversation(ctx, m.active); err != nil {
		return fmt.Errorf("committing cleared conversation: %w", err)
	}
	m.logger.Info("conversation cleared", "agent_id", m.active.AgentID)
	return nil
}

// DeleteActive removes the active agent's conversation from the store
// entirely. Unlike ClearActive no record remains; the next SelectAgent
// for this agent starts genuinely fresh.
func (m *Manager) DeleteActive(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return ErrNoActiveAgent
	}

	agentID := m.active.AgentID
	if err := m.store.DeleteConversation(ctx, agentID); err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}

	fresh := store.NewConversation(agentID)
	fresh.AgentName = m.active.AgentName
	m.active = fresh

	m.logger.Info("conversation deleted", "agent_id", agentID)
	return nil
}

// FlushOnSuspend commits the active conversation unconditionally if it
// has any turns. Called when the host process is about to background or
// terminate.
func (m *Manager) FlushOnSuspend(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil || len(m.active.Turns) == 0 {
		return nil
	}
	if err := m.store.SaveConversation(ctx, m.active); err != nil {
		return fmt.Errorf("flushing conversation: %w", err)
	}
	m.logger.Debug("conversation flushed", "agent_id", m.active.AgentID)
	return nil
}

// RestoreLastActive re-selects the last active agent recorded in the
// store, provided it is still among the known agents. Returns the
// restored agent ID, or empty when nothing was restored.
func (m *Manager) RestoreLastActive(ctx context.Context, knownAgents []string) (string, error) {
	agentID, err := m.store.LastActiveAgent(ctx)
	if err != nil {
		return "", fmt.Errorf("reading last active agent: %w", err)
	}
	if agentID == "" || !slices.Contains(knownAgents, agentID) {
		return "", nil
	}

	if _, err := m.SelectAgent(ctx, agentID); err != nil {
		return "", err
	}
	return agentID, nil
}

// flushLocked commits the outgoing conversation before a switch. Store
// failures are logged, not fatal: in-memory interaction continues and a
// later commit retries.
func (m *Manager) flushLocked(ctx context.Context) {
	if m.active == nil || len(m.active.Turns) == 0 {
		return
	}
	if err := m.store.SaveConversation(ctx, m.active); err != nil {
		m.logger.Error("failed to flush outgoing conversation",
			"agent_id", m.active.AgentID,
			"error", err)
	}
}
