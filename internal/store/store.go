// Package store provides a SQLite-backed session history store for the chat
// assistant. Each session id owns its own message thread. Messages are
// persisted across restarts and restored verbatim, timestamps included, when
// a session resumes.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser is a message sent by the human operator.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the assistant.
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a session.
type Message struct {
	// Role is the author of the message.
	Role Role `json:"role"`
	// Content is the text of the message.
	Content string `json:"content"`
	// Timestamp is when the message was created.
	Timestamp time.Time `json:"timestamp"`
}

// SessionStore persists and retrieves message history keyed by session id.
// Implementations must be safe for concurrent use.
type SessionStore interface {
	// Append persists a single message for the given session.
	Append(ctx context.Context, sessionID string, msg Message) error
	// Messages returns the session's full history, oldest-first, with the
	// original timestamps restored.
	Messages(ctx context.Context, sessionID string) ([]Message, error)
	// Replace clears the session and reseeds it with msgs in one
	// transaction, so a crash never leaves a half-reset session.
	Replace(ctx context.Context, sessionID string, msgs []Message) error
	// Clear removes all messages for the session.
	Clear(ctx context.Context, sessionID string) error
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a SessionStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the session history database.
// It resolves to ~/.chartchat/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".chartchat")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS messages (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    session      TEXT    NOT NULL,
    role         TEXT    NOT NULL CHECK(role IN ('user','assistant')),
    content      TEXT    NOT NULL,
    created_at   INTEGER NOT NULL  -- Unix timestamp (milliseconds)
);
CREATE INDEX IF NOT EXISTS idx_messages_session_created
    ON messages (session, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists a single message for the given session.
func (s *SQLiteStore) Append(ctx context.Context, sessionID string, msg Message) error {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	const q = `INSERT INTO messages (session, role, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, sessionID, string(msg.Role), msg.Content, ts.UnixMilli()); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Messages returns the session's full history oldest-first.
func (s *SQLiteStore) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	const q = `
SELECT role, content, created_at
FROM   messages
WHERE  session = ?
ORDER  BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var ts int64
		var role string
		if err := rows.Scan(&role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("store: messages scan: %w", err)
		}
		m.Role = Role(role)
		m.Timestamp = time.UnixMilli(ts)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: messages rows: %w", err)
	}
	return msgs, nil
}

// Replace clears the session and reseeds it with msgs in one transaction.
func (s *SQLiteStore) Replace(ctx context.Context, sessionID string, msgs []Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: replace begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session = ?`, sessionID); err != nil {
		return fmt.Errorf("store: replace clear: %w", err)
	}
	const q = `INSERT INTO messages (session, role, content, created_at) VALUES (?, ?, ?, ?)`
	for _, m := range msgs {
		ts := m.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := tx.ExecContext(ctx, q, sessionID, string(m.Role), m.Content, ts.UnixMilli()); err != nil {
			return fmt.Errorf("store: replace insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: replace commit: %w", err)
	}
	return nil
}

// Clear removes all messages for the session.
func (s *SQLiteStore) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session = ?`, sessionID); err != nil {
		return fmt.Errorf("store: clear: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
