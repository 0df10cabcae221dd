package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/vaultsnap/internal/apperr"
	"github.com/starford/vaultsnap/internal/models"
)

// Limits applied by Recent: DefaultLimit when limit is not positive,
// MaxLimit as the upper bound.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Record stores p. Recording the same ID twice replaces the earlier row.
func (db *DB) Record(ctx context.Context, p models.Processed) error {
	warnings, _ := json.Marshal(p.Warnings)
	if p.Warnings == nil {
		warnings = []byte("[]")
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO processed (id, source, final, note, code, prefix, number, transcoded, renamed, checksum, warnings, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source     = excluded.source,
			final      = excluded.final,
			note       = excluded.note,
			code       = excluded.code,
			prefix     = excluded.prefix,
			number     = excluded.number,
			transcoded = excluded.transcoded,
			renamed    = excluded.renamed,
			checksum   = excluded.checksum,
			warnings   = excluded.warnings,
			at         = excluded.at
	`, p.ID, p.Source, p.Final, p.Note, p.Code, p.Prefix, p.Number,
		p.Transcoded, p.Renamed, p.Checksum, string(warnings), p.At.UTC())
	if err != nil {
		return fmt.Errorf("history: record: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (db *DB) Recent(ctx context.Context, limit int) ([]models.Processed, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, source, final, note, code, prefix, number, transcoded, renamed, checksum, warnings, at
		FROM processed
		ORDER BY at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var out []models.Processed
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ForNote returns the entries that appended to note, newest first.
func (db *DB) ForNote(ctx context.Context, note string) ([]models.Processed, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, source, final, note, code, prefix, number, transcoded, renamed, checksum, warnings, at
		FROM processed
		WHERE note = ?
		ORDER BY at DESC, rowid DESC`, note)
	if err != nil {
		return nil, fmt.Errorf("history: for note: %w", err)
	}
	defer rows.Close()

	var out []models.Processed
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get returns a single entry by ID.
func (db *DB) Get(ctx context.Context, id string) (models.Processed, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, source, final, note, code, prefix, number, transcoded, renamed, checksum, warnings, at
		FROM processed WHERE id = ?`, id)
	p, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Processed{}, fmt.Errorf("history: %s: %w", id, apperr.ErrNotFound)
	}
	return p, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (models.Processed, error) {
	var (
		p        models.Processed
		warnings string
		at       time.Time
	)
	if err := s.Scan(&p.ID, &p.Source, &p.Final, &p.Note, &p.Code, &p.Prefix, &p.Number,
		&p.Transcoded, &p.Renamed, &p.Checksum, &warnings, &at); err != nil {
		return models.Processed{}, err
	}
	if err := json.Unmarshal([]byte(warnings), &p.Warnings); err != nil {
		return models.Processed{}, fmt.Errorf("history: decode warnings: %w", err)
	}
	if len(p.Warnings) == 0 {
		p.Warnings = nil
	}
	p.At = at
	return p, nil
}
