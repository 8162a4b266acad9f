// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Persists the whole ConversationIndex as one JSON document under a fixed key

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

// indexKey is the well-known key the ConversationIndex is stored under.
const indexKey = "conversation_index"

// SQLiteStore implements the Store interface using SQLite.
//
// The entire ConversationIndex lives in a single keyed row and every commit
// is a read-modify-write of that row. This keeps commits atomic from the
// caller's perspective: a reader sees either the old index or the new one.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveConversation upserts one conversation into the index.
func (s *SQLiteStore) SaveConversation(ctx context.Context, conv *Conversation) error {
	if conv.AgentID == "" {
		return fmt.Errorf("agent_id is required")
	}

	return s.updateIndex(ctx, func(idx *ConversationIndex) {
		idx.Sessions[conv.AgentID] = conv
	})
}

// GetConversation returns the conversation for an agent, or ErrNotFound.
func (s *SQLiteStore) GetConversation(ctx context.Context, agentID string) (*Conversation, error) {
	idx, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}

	conv, ok := idx.Sessions[agentID]
	if !ok {
		return nil, ErrNotFound
	}
	return conv, nil
}

// DeleteConversation removes the conversation for an agent entirely.
// Deleting an absent conversation is not an error.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, agentID string) error {
	return s.updateIndex(ctx, func(idx *ConversationIndex) {
		delete(idx.Sessions, agentID)
	})
}

// ListConversations returns all stored conversations ordered by most
// recent activity first.
func (s *SQLiteStore) ListConversations(ctx context.Context) ([]*Conversation, error) {
	idx, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}

	convs := make([]*Conversation, 0, len(idx.Sessions))
	for _, conv := range idx.Sessions {
		convs = append(convs, conv)
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].LastActivity.After(convs[j].LastActivity)
	})
	return convs, nil
}

// SetLastActiveAgent records which agent was selected last.
func (s *SQLiteStore) SetLastActiveAgent(ctx context.Context, agentID string) error {
	return s.updateIndex(ctx, func(idx *ConversationIndex) {
		idx.LastActiveAgentID = agentID
	})
}

// LastActiveAgent returns the last selected agent ID, or empty string if
// none was ever recorded.
func (s *SQLiteStore) LastActiveAgent(ctx context.Context) (string, error) {
	idx, err := s.loadIndex(ctx)
	if err != nil {
		return "", err
	}
	return idx.LastActiveAgentID, nil
}

// loadIndex reads the ConversationIndex row. A missing row yields an empty
// index so first use needs no special casing.
func (s *SQLiteStore) loadIndex(ctx context.Context) (*ConversationIndex, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM state WHERE key = ?", indexKey,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return &ConversationIndex{Sessions: make(map[string]*Conversation)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}

	var idx ConversationIndex
	if err := json.Unmarshal([]byte(raw), &idx); err != nil {
		return nil, fmt.Errorf("decoding index: %w", err)
	}
	if idx.Sessions == nil {
		idx.Sessions = make(map[string]*Conversation)
	}
	return &idx, nil
}

// updateIndex applies mutate under a transaction so concurrent commits
// cannot interleave their read-modify-write cycles.
func (s *SQLiteStore) updateIndex(ctx context.Context, mutate func(*ConversationIndex)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var raw string
	idx := &ConversationIndex{Sessions: make(map[string]*Conversation)}
	err = tx.QueryRowContext(ctx,
		"SELECT value FROM state WHERE key = ?", indexKey,
	).Scan(&raw)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("reading index: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal([]byte(raw), idx); err != nil {
			return fmt.Errorf("decoding index: %w", err)
		}
		if idx.Sessions == nil {
			idx.Sessions = make(map[string]*Conversation)
		}
	}

	mutate(idx)

	encoded, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, indexKey, string(encoded), time.Now())
	if err != nil {
		return fmt.Errorf("writing index: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index: %w", err)
	}

	s.logger.Debug("index committed", "sessions", len(idx.Sessions))
	return nil
}
