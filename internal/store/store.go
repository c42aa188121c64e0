// Package store implements the versioned local database backing marxiv.
//
// The store is a single SQLite database (embedded, WAL mode) holding three
// record collections:
//
//   - settings:    logical setting name -> raw JSON value
//   - paper_notes: paper id -> denormalized title + ordered note sequence
//   - meta:        named integer counters (currently only notes_count)
//
// The database carries an integer schema version (PRAGMA user_version).
// On open, if the target version exceeds the on-disk version, a migration
// runs exactly once inside the open transaction before any other operation
// is allowed. The migration policy is destructive-by-default: incompatible
// legacy collections are dropped rather than transformed. This is suitable
// only for pre-release data; shipping to real users requires replacing the
// drop branch with field-preserving transforms keyed by version delta.
//
// Initialization is memoized per database path: concurrent callers share a
// single open in flight and receive the same *Store. The store is never
// opened twice for one path.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// schemaVersion is the version this build of marxiv requires. Bumping it
// triggers the migration in migrate() on the next open.
const schemaVersion = 2

// counterNotes is the meta row tracking the global note count.
const counterNotes = "notes_count"

// Store wraps the SQLite connection with marxiv's collection operations.
type Store struct {
	conn   *sql.DB
	path   string
	logger *log.Logger
}

// entry tracks one memoized open per canonical path.
type entry struct {
	once  sync.Once
	store *Store
	err   error
}

var (
	openMu sync.Mutex
	opened = make(map[string]*entry)
)

// Open opens (or creates) the database at path, running any pending schema
// migration. Calls for the same path share one initialization and return
// the same *Store. The caller owns Close; closing releases the memoized
// entry so the path can be reopened.
func Open(path string) (*Store, error) {
	return OpenContext(context.Background(), path)
}

// OpenContext opens the database with context support.
func OpenContext(ctx context.Context, path string) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}

	openMu.Lock()
	e, ok := opened[abs]
	if !ok {
		e = &entry{}
		opened[abs] = e
	}
	openMu.Unlock()

	e.once.Do(func() {
		e.store, e.err = open(ctx, abs)
		if e.err != nil {
			// Failed opens are not cached; the next caller retries.
			openMu.Lock()
			delete(opened, abs)
			openMu.Unlock()
		}
	})
	return e.store, e.err
}

// open performs the actual connection setup and migration.
func open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Immediate transactions make read-modify-write mutations queue on the
	// busy timeout instead of failing with a snapshot conflict.
	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_txlock=immediate", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		conn:   conn,
		path:   path,
		logger: log.New(os.Stderr, "[store] ", log.LstdFlags),
	}

	// WAL for concurrent readers, a busy timeout so writers queue instead
	// of failing immediately.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := s.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate brings the on-disk schema up to schemaVersion inside a single
// transaction. If the migration fails, the open fails entirely and no
// partial collection state is exposed.
//
// The routine is cumulative: it inspects the old version and applies only
// the deltas needed to reach the target. Opening an already-current
// database is a no-op.
func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var version int
	if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version >= schemaVersion {
		return tx.Commit()
	}

	if version < 2 {
		// Pre-v2 collections used a different shape. No production users
		// exist yet, so drop instead of transforming.
		drops := `
		DROP TABLE IF EXISTS notes;
		DROP TABLE IF EXISTS read_next;
		DROP TABLE IF EXISTS api_keys;
		`
		if _, err := tx.ExecContext(ctx, drops); err != nil {
			return fmt.Errorf("failed to drop legacy collections: %w", err)
		}

		schema := `
		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL  -- raw JSON
		);

		CREATE TABLE IF NOT EXISTS paper_notes (
			paper_id    TEXT PRIMARY KEY,
			paper_title TEXT NOT NULL,
			notes       TEXT NOT NULL  -- JSON array, array order = display order
		);

		CREATE TABLE IF NOT EXISTS meta (
			name  TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		);
		`
		if _, err := tx.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("failed to create collections: %w", err)
		}

		seed := `INSERT INTO meta (name, value) VALUES (?, 0) ON CONFLICT(name) DO NOTHING`
		if _, err := tx.ExecContext(ctx, seed, counterNotes); err != nil {
			return fmt.Errorf("failed to seed note counter: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}

// SetLogger replaces the store's logger. A nil logger restores the default
// stderr logger.
func (s *Store) SetLogger(logger *log.Logger) {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}
	s.logger = logger
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// RawDB returns the underlying sql.DB connection.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Close checkpoints the WAL, closes the connection and releases the
// memoized open entry for the store's path.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Printf("Warning: failed to checkpoint WAL: %v", err)
	}

	err := s.conn.Close()
	s.conn = nil

	openMu.Lock()
	delete(opened, s.path)
	openMu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
