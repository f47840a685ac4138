// Package journal keeps an SQLite record of tool invocations. It stores call
// metadata only: no message content and no credentials.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS invocations (
	id             TEXT PRIMARY KEY,
	tool           TEXT NOT NULL,
	started_at     TIMESTAMP NOT NULL,
	duration_ms    INTEGER NOT NULL,
	message_count  INTEGER NOT NULL,
	format         TEXT NOT NULL,
	outcome        TEXT NOT NULL,
	error          TEXT NOT NULL DEFAULT '',
	response_bytes INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_invocations_started_at ON invocations(started_at);
`

// Entry is one tool invocation
type Entry struct {
	ID            string        `json:"id"`
	Tool          string        `json:"tool"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	MessageCount  int           `json:"message_count"`
	Format        string        `json:"format"`
	Outcome       string        `json:"outcome"`
	Error         string        `json:"error,omitempty"`
	ResponseBytes int           `json:"response_bytes"`
}

// Journal is an SQLite-backed invocation log
type Journal struct {
	db        *sql.DB
	closeOnce sync.Once
	closeErr  error
}

// Open opens (or creates) the journal database at path
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// Test database connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record stores e. A missing ID is generated.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO invocations (id, tool, started_at, duration_ms, message_count, format, outcome, error, response_bytes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Tool, e.StartedAt.UTC(), e.Duration.Milliseconds(), e.MessageCount, e.Format, e.Outcome, e.Error, e.ResponseBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to record invocation: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, tool, started_at, duration_ms, message_count, format, outcome, error, response_bytes
		 FROM invocations ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query invocations: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var durationMS int64
		if err := rows.Scan(&e.ID, &e.Tool, &e.StartedAt, &durationMS, &e.MessageCount, &e.Format, &e.Outcome, &e.Error, &e.ResponseBytes); err != nil {
			return nil, fmt.Errorf("failed to scan invocation: %w", err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read invocations: %w", err)
	}

	return entries, nil
}

// Close releases database resources. Only the first call closes the database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	j.closeOnce.Do(func() {
		j.closeErr = j.db.Close()
	})
	return j.closeErr
}
