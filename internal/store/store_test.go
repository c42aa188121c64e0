package store

import (
	"errors"
	"path/filepath"
	"testing"
)

// newTestStore opens a fresh database in a temp directory.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "marxiv.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestOpenCreatesSchema(t *testing.T) {
	s := newTestStore(t)

	var version int
	if err := s.RawDB().QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("Failed to read schema version: %v", err)
	}
	if version != schemaVersion {
		t.Errorf("Expected schema version %d, got %d", schemaVersion, version)
	}

	for _, table := range []string{"settings", "paper_notes", "meta"} {
		var name string
		err := s.RawDB().QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("Expected table %s to exist: %v", table, err)
		}
	}

	count, err := s.NotesCount()
	if err != nil {
		t.Fatalf("Failed to read note counter: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected seeded counter 0, got %d", count)
	}
}

func TestOpenIsMemoized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marxiv.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	if s1 != s2 {
		t.Error("Expected the same *Store for the same path")
	}

	if err := s1.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	// Close releases the memoized entry, so the path can be reopened.
	s3, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open after close: %v", err)
	}
	defer s3.Close()
	if s3 == s1 {
		t.Error("Expected a new *Store after close")
	}
}

func TestMigrationDropsLegacyTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marxiv.db")

	// Simulate a version 1 database with the old collections.
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	setup := `
	PRAGMA user_version = 1;
	CREATE TABLE notes (id TEXT PRIMARY KEY, body TEXT);
	CREATE TABLE read_next (id TEXT PRIMARY KEY);
	CREATE TABLE api_keys (provider TEXT PRIMARY KEY, key TEXT);
	DROP TABLE settings;
	DROP TABLE paper_notes;
	DROP TABLE meta;
	`
	if _, err := s.RawDB().Exec(setup); err != nil {
		t.Fatalf("Failed to set up legacy schema: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("Failed to reopen legacy database: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"notes", "read_next", "api_keys"} {
		var name string
		err := s.RawDB().QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err == nil {
			t.Errorf("Expected legacy table %s to be dropped", table)
		}
	}

	var version int
	if err := s.RawDB().QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("Failed to read schema version: %v", err)
	}
	if version != schemaVersion {
		t.Errorf("Expected schema version %d after migration, got %d", schemaVersion, version)
	}
}

func TestMigrationIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marxiv.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	if _, err := s.AddNote("2103.12345", "Attention Is All You Need", "seed"); err != nil {
		t.Fatalf("Failed to add note: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	// Reopening at the current version must not touch existing data.
	s, err = Open(path)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer s.Close()

	paper, err := s.GetPaperNotes("2103.12345")
	if err != nil {
		t.Fatalf("Expected note to survive reopen: %v", err)
	}
	if len(paper.Notes) != 1 || paper.Notes[0].Content != "seed" {
		t.Errorf("Unexpected notes after reopen: %+v", paper.Notes)
	}
}

func TestNotFoundError(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetPaperNotes("no-such-paper")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Expected *NotFoundError, got %T", err)
	}
	if nf.Kind != "paper" || nf.ID != "no-such-paper" {
		t.Errorf("Unexpected NotFoundError fields: %+v", nf)
	}
}
