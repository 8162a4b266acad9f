// Package store provides conversation persistence for coven-chat.
//
// # Data model
//
// A Conversation is the full history with one agent: its ordered Turns,
// the agent's continuity identifiers (ThreadID, LastResponseID), and the
// last-activity timestamp. All conversations live in a single
// ConversationIndex keyed by agent ID, alongside the last selected agent.
//
// # Persistence shape
//
// The index is one JSON document stored under a fixed key. Every commit is
// a whole-conversation upsert inside a read-modify-write of that document,
// so readers never observe a torn write. The client has exactly one
// active-agent mutator at a time, which makes last-writer-wins sufficient.
//
// # Implementations
//
//   - SQLiteStore: modernc.org/sqlite file database, WAL mode
//   - MockStore: in-memory, for tests
package store
