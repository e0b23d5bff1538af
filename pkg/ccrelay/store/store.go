// Package store keeps a local SQLite index of agent sessions so earlier
// sessions can be listed and resumed.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	first_prompt TEXT NOT NULL,
	last_prompt  TEXT NOT NULL,
	turns        INTEGER NOT NULL DEFAULT 1,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at DESC);
`

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("store: session not found")

// Session is one indexed agent session.
type Session struct {
	ID          string
	FirstPrompt string
	LastPrompt  string
	Turns       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Summary is a one-line label for pickers and listings.
func (s Session) Summary() string {
	prompt := s.FirstPrompt
	if utf8.RuneCountInString(prompt) > 50 {
		prompt = string([]rune(prompt)[:50]) + "..."
	}
	return fmt.Sprintf("%s  %s  (%d turns)  %s", s.UpdatedAt.Local().Format("2006-01-02 15:04"), s.ID, s.Turns, prompt)
}

// Store is the session index.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the index at path.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "./data/ccrelay.db"
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create database directory %q: %w", dir, err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordTurn records a completed turn of sessionID. The first record of
// a session keeps its prompt as the first prompt.
func (s *Store) RecordTurn(ctx context.Context, sessionID, prompt string) error {
	if sessionID == "" {
		return nil
	}
	now := s.now().UnixNano()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, first_prompt, last_prompt, turns, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_prompt = excluded.last_prompt,
			turns = sessions.turns + 1,
			updated_at = excluded.updated_at`,
		sessionID, prompt, prompt, now, now)
	if err != nil {
		return fmt.Errorf("store: recording turn for %s: %w", sessionID, err)
	}
	return nil
}

// List returns up to limit sessions, most recently used first. A limit of
// zero or less returns all sessions.
func (s *Store) List(ctx context.Context, limit int) ([]Session, error) {
	query := `SELECT id, first_prompt, last_prompt, turns, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: listing sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: listing sessions: %w", err)
	}
	return out, nil
}

// Get returns one session.
func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, first_prompt, last_prompt, turns, created_at, updated_at
		FROM sessions WHERE id = ?`, id)
	sess, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return sess, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(r scanner) (Session, error) {
	var sess Session
	var created, updated int64
	if err := r.Scan(&sess.ID, &sess.FirstPrompt, &sess.LastPrompt, &sess.Turns, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("store: scanning session: %w", err)
	}
	sess.CreatedAt = time.Unix(0, created)
	sess.UpdatedAt = time.Unix(0, updated)
	return sess, nil
}
