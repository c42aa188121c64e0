package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/marxiv/marxiv/internal/schema"
)

// Snapshot captures the full store state for export: every setting
// verbatim, every paper note collection in storage order, and the
// maintained note counter. The three reads share one transaction so the
// snapshot is internally consistent.
func (s *Store) Snapshot(ctx context.Context) (map[string]json.RawMessage, []*schema.PaperNote, int, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback()

	settings := make(map[string]json.RawMessage)
	rows, err := tx.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to read settings: %w", err)
	}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			rows.Close()
			return nil, nil, 0, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, nil, 0, fmt.Errorf("error iterating settings: %w", err)
	}
	rows.Close()

	noteRows, err := tx.QueryContext(ctx, `SELECT paper_id, paper_title, notes FROM paper_notes ORDER BY rowid`)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to read paper notes: %w", err)
	}
	papers, err := scanPaperNotes(noteRows)
	noteRows.Close()
	if err != nil {
		return nil, nil, 0, err
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE name = ?`, counterNotes).Scan(&count); err != nil {
		count = 0
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, 0, fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return settings, papers, count, nil
}

// ReplaceAll wholesale-replaces the store's contents: the settings and
// paper_notes collections are cleared and rewritten, and the note counter
// is recomputed from the notes actually written, never trusted from the
// caller. Everything happens in one transaction, so a mid-operation
// failure leaves the previous state fully intact: settings can never end
// up cleared with notes un-replaced.
func (s *Store) ReplaceAll(ctx context.Context, settings map[string]json.RawMessage, papers []*schema.PaperNote) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return writeErr("replace all", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM settings`,
		`DELETE FROM paper_notes`,
		`DELETE FROM meta`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return writeErr("replace all", err)
		}
	}

	for key, value := range settings {
		if !json.Valid(value) {
			return writeErr("replace all", fmt.Errorf("setting %s: invalid JSON", key))
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)`, key, string(value)); err != nil {
			return writeErr("replace all", err)
		}
	}

	count := 0
	for _, p := range papers {
		if err := upsertPaperNotes(ctx, tx, p.PaperID, p.PaperTitle, p.Notes); err != nil {
			return writeErr("replace all", err)
		}
		count += len(p.Notes)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (name, value) VALUES (?, ?)`, counterNotes, count); err != nil {
		return writeErr("replace all", err)
	}

	if err := tx.Commit(); err != nil {
		return writeErr("replace all", err)
	}
	return nil
}
