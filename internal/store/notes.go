package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marxiv/marxiv/internal/schema"
)

// Every mutation that touches both the paper_notes and meta collections
// runs inside one transaction, so the notes_count counter always equals
// the sum of note-sequence lengths across all papers after a commit.

// AddNote appends a new note to the paper's collection, creating the
// collection if needed. The stored paper title is always refreshed to the
// supplied value, which handles title drift when the display text was
// updated upstream. The global note counter is incremented in the same
// transaction. Returns the created note.
func (s *Store) AddNote(paperID, paperTitle, content string) (*schema.Note, error) {
	return s.AddNoteContext(context.Background(), paperID, paperTitle, content)
}

// AddNoteContext appends a note with context support.
func (s *Store) AddNoteContext(ctx context.Context, paperID, paperTitle, content string) (*schema.Note, error) {
	if paperID == "" {
		return nil, fmt.Errorf("paper id is required")
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, writeErr("add note", err)
	}
	defer tx.Rollback()

	notes, _, err := readNotes(ctx, tx, paperID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	note := schema.NewNote(content)
	notes = append(notes, note)

	if err := upsertPaperNotes(ctx, tx, paperID, paperTitle, notes); err != nil {
		return nil, writeErr("add note", err)
	}
	if err := bumpCounter(ctx, tx, 1); err != nil {
		return nil, writeErr("add note", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, writeErr("add note", err)
	}
	return &note, nil
}

// UpdateNote replaces the content of an existing note and stamps
// UpdatedAt. CreatedAt is untouched. Returns an error wrapping ErrNotFound
// if the paper or the note does not exist.
func (s *Store) UpdateNote(paperID, noteID, content string) error {
	return s.UpdateNoteContext(context.Background(), paperID, noteID, content)
}

// UpdateNoteContext updates a note with context support.
func (s *Store) UpdateNoteContext(ctx context.Context, paperID, noteID, content string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return writeErr("update note", err)
	}
	defer tx.Rollback()

	notes, title, err := readNotes(ctx, tx, paperID)
	if err != nil {
		return err
	}

	idx := -1
	for i := range notes {
		if notes[i].ID == noteID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &NotFoundError{Kind: "note", ID: noteID}
	}

	notes[idx].Content = content
	notes[idx].UpdatedAt = time.Now().UnixMilli()

	if err := upsertPaperNotes(ctx, tx, paperID, title, notes); err != nil {
		return writeErr("update note", err)
	}
	if err := tx.Commit(); err != nil {
		return writeErr("update note", err)
	}
	return nil
}

// DeleteNote removes a note from the paper's collection and decrements the
// global counter in the same transaction. Deleting from a paper that does
// not exist, or a note id that is already gone, is a no-op rather than an
// error (idempotent). When the last note of a paper is removed, the
// PaperNote record itself is deleted instead of persisting empty.
func (s *Store) DeleteNote(paperID, noteID string) error {
	return s.DeleteNoteContext(context.Background(), paperID, noteID)
}

// DeleteNoteContext removes a note with context support.
func (s *Store) DeleteNoteContext(ctx context.Context, paperID, noteID string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return writeErr("delete note", err)
	}
	defer tx.Rollback()

	notes, title, err := readNotes(ctx, tx, paperID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	kept := notes[:0]
	removed := false
	for _, n := range notes {
		if n.ID == noteID {
			removed = true
			continue
		}
		kept = append(kept, n)
	}
	if !removed {
		return nil
	}

	if len(kept) == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM paper_notes WHERE paper_id = ?`, paperID); err != nil {
			return writeErr("delete note", err)
		}
	} else {
		if err := upsertPaperNotes(ctx, tx, paperID, title, kept); err != nil {
			return writeErr("delete note", err)
		}
	}

	if err := bumpCounter(ctx, tx, -1); err != nil {
		return writeErr("delete note", err)
	}
	if err := tx.Commit(); err != nil {
		return writeErr("delete note", err)
	}
	return nil
}

// ReorderNotes replaces the paper's stored note sequence with the supplied
// one. Array position is the only order representation; no per-note order
// field exists.
//
// Unlike the web client this layer does not trust the caller: the supplied
// sequence must be an id-permutation of the stored notes, otherwise
// ErrReorderMismatch is returned. A malformed reorder can therefore never
// lose or duplicate notes.
func (s *Store) ReorderNotes(paperID string, notes []schema.Note) error {
	return s.ReorderNotesContext(context.Background(), paperID, notes)
}

// ReorderNotesContext replaces the note sequence with context support.
func (s *Store) ReorderNotesContext(ctx context.Context, paperID string, notes []schema.Note) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return writeErr("reorder notes", err)
	}
	defer tx.Rollback()

	stored, title, err := readNotes(ctx, tx, paperID)
	if err != nil {
		return err
	}

	if !samePermutation(stored, notes) {
		return fmt.Errorf("paper %s: %w", paperID, ErrReorderMismatch)
	}

	if err := upsertPaperNotes(ctx, tx, paperID, title, notes); err != nil {
		return writeErr("reorder notes", err)
	}
	if err := tx.Commit(); err != nil {
		return writeErr("reorder notes", err)
	}
	return nil
}

// GetPaperNotes returns the note collection for one paper, or an error
// wrapping ErrNotFound if the paper has no notes.
func (s *Store) GetPaperNotes(paperID string) (*schema.PaperNote, error) {
	return s.GetPaperNotesContext(context.Background(), paperID)
}

// GetPaperNotesContext returns one paper's notes with context support.
func (s *Store) GetPaperNotesContext(ctx context.Context, paperID string) (*schema.PaperNote, error) {
	var title, notesJSON string
	err := s.conn.QueryRowContext(ctx,
		`SELECT paper_title, notes FROM paper_notes WHERE paper_id = ?`, paperID).
		Scan(&title, &notesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "paper", ID: paperID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notes for paper %s: %w", paperID, err)
	}

	var notes []schema.Note
	if err := json.Unmarshal([]byte(notesJSON), &notes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notes for paper %s: %w", paperID, err)
	}

	return &schema.PaperNote{PaperID: paperID, PaperTitle: title, Notes: notes}, nil
}

// ListPaperNotes paginates across all paper note collections in storage
// iteration order (insertion order, not any semantic order). The returned
// total is the maintained global note counter: it counts notes, not papers
// with notes, and callers must not conflate the two.
//
// A limit <= 0 returns all records from offset onward.
func (s *Store) ListPaperNotes(offset, limit int) ([]*schema.PaperNote, int, error) {
	return s.ListPaperNotesContext(context.Background(), offset, limit)
}

// ListPaperNotesContext paginates note collections with context support.
func (s *Store) ListPaperNotesContext(ctx context.Context, offset, limit int) ([]*schema.PaperNote, int, error) {
	query := `SELECT paper_id, paper_title, notes FROM paper_notes ORDER BY rowid`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	if offset > 0 {
		if limit <= 0 {
			query += " LIMIT -1"
		}
		query += " OFFSET ?"
		args = append(args, offset)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list paper notes: %w", err)
	}
	defer rows.Close()

	papers, err := scanPaperNotes(rows)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.NotesCountContext(ctx)
	if err != nil {
		return nil, 0, err
	}
	return papers, total, nil
}

// NotesCount returns the maintained global note counter.
func (s *Store) NotesCount() (int, error) {
	return s.NotesCountContext(context.Background())
}

// NotesCountContext returns the note counter with context support.
func (s *Store) NotesCountContext(ctx context.Context) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM meta WHERE name = ?`, counterNotes).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get note count: %w", err)
	}
	return count, nil
}

// readNotes loads a paper's note sequence inside tx. Returns an error
// wrapping ErrNotFound if the paper has no record.
func readNotes(ctx context.Context, tx *sql.Tx, paperID string) ([]schema.Note, string, error) {
	var title, notesJSON string
	err := tx.QueryRowContext(ctx,
		`SELECT paper_title, notes FROM paper_notes WHERE paper_id = ?`, paperID).
		Scan(&title, &notesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", &NotFoundError{Kind: "paper", ID: paperID}
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read notes for paper %s: %w", paperID, err)
	}

	var notes []schema.Note
	if err := json.Unmarshal([]byte(notesJSON), &notes); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal notes for paper %s: %w", paperID, err)
	}
	return notes, title, nil
}

// upsertPaperNotes writes a paper's title and note sequence inside tx.
func upsertPaperNotes(ctx context.Context, tx *sql.Tx, paperID, title string, notes []schema.Note) error {
	notesJSON, err := json.Marshal(notes)
	if err != nil {
		return fmt.Errorf("failed to marshal notes: %w", err)
	}

	query := `
	INSERT INTO paper_notes (paper_id, paper_title, notes) VALUES (?, ?, ?)
	ON CONFLICT(paper_id) DO UPDATE SET
		paper_title = excluded.paper_title,
		notes = excluded.notes
	`
	if _, err := tx.ExecContext(ctx, query, paperID, title, string(notesJSON)); err != nil {
		return fmt.Errorf("failed to upsert paper notes: %w", err)
	}
	return nil
}

// bumpCounter adjusts the global note counter by delta, floored at zero
// so concurrent decrements can never drive it negative.
func bumpCounter(ctx context.Context, tx *sql.Tx, delta int) error {
	query := `
	INSERT INTO meta (name, value) VALUES (?, MAX(0, ?))
	ON CONFLICT(name) DO UPDATE SET value = MAX(0, meta.value + ?)
	`
	if _, err := tx.ExecContext(ctx, query, counterNotes, delta, delta); err != nil {
		return fmt.Errorf("failed to update note counter: %w", err)
	}
	return nil
}

// samePermutation reports whether a and b contain the same note ids with
// the same multiplicities.
func samePermutation(a, b []schema.Note) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for i := range a {
		counts[a[i].ID]++
	}
	for i := range b {
		counts[b[i].ID]--
		if counts[b[i].ID] < 0 {
			return false
		}
	}
	return true
}

// scanPaperNotes scans paper note rows from query results.
func scanPaperNotes(rows *sql.Rows) ([]*schema.PaperNote, error) {
	var papers []*schema.PaperNote
	for rows.Next() {
		var p schema.PaperNote
		var notesJSON string
		if err := rows.Scan(&p.PaperID, &p.PaperTitle, &notesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan paper notes: %w", err)
		}
		if err := json.Unmarshal([]byte(notesJSON), &p.Notes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notes for paper %s: %w", p.PaperID, err)
		}
		papers = append(papers, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating paper notes: %w", err)
	}
	return papers, nil
}
