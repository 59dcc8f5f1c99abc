// Package journal keeps a SQLite-backed history of watch-triggered rebuilds.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS builds (
	id          TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	kind        TEXT NOT NULL DEFAULT '',
	paths       TEXT NOT NULL DEFAULT '[]',
	error       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_builds_started ON builds(started_at);
`

// Entry is one recorded rebuild.
type Entry struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Kind       string    `json:"kind"`
	Paths      []string  `json:"paths"`
	Error      string    `json:"error,omitempty"`
}

// OK reports whether the rebuild succeeded.
func (e Entry) OK() bool { return e.Error == "" }

// DB wraps a sql.DB with journal operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("journal: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Record stores e, assigning an id when it has none.
func (db *DB) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Paths == nil {
		e.Paths = []string{}
	}
	pathsJSON, err := json.Marshal(e.Paths)
	if err != nil {
		return fmt.Errorf("journal: marshal paths: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO builds (id, started_at, duration_ms, kind, paths, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.StartedAt.UTC(), e.DurationMS, e.Kind, string(pathsJSON), e.Error)
	if err != nil {
		return fmt.Errorf("journal: insert build: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (db *DB) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, started_at, duration_ms, kind, paths, error
		FROM builds
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query builds: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var pathsJSON string
		if err := rows.Scan(&e.ID, &e.StartedAt, &e.DurationMS, &e.Kind, &pathsJSON, &e.Error); err != nil {
			return nil, fmt.Errorf("journal: scan build: %w", err)
		}
		_ = json.Unmarshal([]byte(pathsJSON), &e.Paths)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep entries.
func (db *DB) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM builds WHERE id NOT IN (
			SELECT id FROM builds ORDER BY started_at DESC, rowid DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	return res.RowsAffected()
}
