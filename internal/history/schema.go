// Package history stores processed image events in SQLite.
package history

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS processed (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	final      TEXT NOT NULL,
	note       TEXT NOT NULL DEFAULT '',
	code       TEXT NOT NULL DEFAULT '',
	prefix     TEXT NOT NULL DEFAULT '',
	number     INTEGER NOT NULL DEFAULT 0,
	transcoded INTEGER NOT NULL DEFAULT 0,
	renamed    INTEGER NOT NULL DEFAULT 0,
	checksum   TEXT NOT NULL DEFAULT '',
	warnings   TEXT NOT NULL DEFAULT '[]',
	at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_processed_at ON processed(at);
CREATE INDEX IF NOT EXISTS idx_processed_note ON processed(note);
`

// DB wraps a sql.DB with history operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
