package store

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by store operations.
//
// These can be checked with errors.Is():
//
//	if errors.Is(err, store.ErrNotFound) {
//	    // the paper or note does not exist
//	}
var (
	// ErrNotFound is returned when an operation targets a setting, paper
	// or note identifier that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrReorderMismatch is returned when a reorder supplies a sequence
	// that is not a permutation of the stored notes.
	ErrReorderMismatch = errors.New("reordered notes are not a permutation of the stored notes")
)

// NotFoundError reports which record an operation failed to find.
// It unwraps to ErrNotFound.
type NotFoundError struct {
	Kind string // "setting", "paper", "note"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// DurableWriteError wraps a failed write to the underlying database
// (disk quota, storage unavailable, ...). Optimistic callers log and
// swallow it; explicit user-initiated operations surface it.
type DurableWriteError struct {
	Op  string
	Err error
}

func (e *DurableWriteError) Error() string {
	return fmt.Sprintf("durable write failed (%s): %v", e.Op, e.Err)
}

func (e *DurableWriteError) Unwrap() error {
	return e.Err
}

// writeErr wraps err as a DurableWriteError unless it is nil or already
// carries a store error classification.
func writeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var dw *DurableWriteError
	if errors.As(err, &dw) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrReorderMismatch) {
		return err
	}
	return &DurableWriteError{Op: op, Err: err}
}
