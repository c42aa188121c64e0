package schema

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Note is a single user-authored annotation on a paper.
//
// The ID is generated once and never changes. Content may be empty at the
// storage layer; rejecting blank notes is a UI concern, not a storage
// invariant.
type Note struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"createdAt"` // Unix milliseconds
	UpdatedAt int64  `json:"updatedAt"` // Unix milliseconds
}

// NewNote creates a Note with a fresh unique ID and both timestamps set
// to the current time.
func NewNote(content string) Note {
	now := time.Now().UnixMilli()
	return Note{
		ID:        uuid.NewString(),
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the Note's field invariants.
func (n *Note) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("note id is required")
	}
	if n.CreatedAt == 0 {
		return fmt.Errorf("createdAt is required")
	}
	if n.UpdatedAt < n.CreatedAt {
		return fmt.Errorf("updatedAt %d precedes createdAt %d", n.UpdatedAt, n.CreatedAt)
	}
	return nil
}

// PaperNote is the per-paper container holding an ordered note sequence
// plus a denormalized display title. The title is refreshed on every note
// addition so upstream metadata edits eventually propagate.
//
// A PaperNote with zero notes must not persist; the store deletes the
// record instead of keeping an empty shell.
type PaperNote struct {
	PaperID    string `json:"paperId"`
	PaperTitle string `json:"paperTitle"`
	Notes      []Note `json:"notes"`
}

// Validate checks that a PaperNote carries the minimum shape required for
// storage. Used by import to skip malformed entries.
func (p *PaperNote) Validate() error {
	if p.PaperID == "" {
		return fmt.Errorf("paper id is required")
	}
	if p.Notes == nil {
		return fmt.Errorf("notes sequence is required")
	}
	for i := range p.Notes {
		if err := p.Notes[i].Validate(); err != nil {
			return fmt.Errorf("note %d: %w", i, err)
		}
	}
	return nil
}

// FindNote returns the index of the note with the given id, or -1.
func (p *PaperNote) FindNote(noteID string) int {
	for i := range p.Notes {
		if p.Notes[i].ID == noteID {
			return i
		}
	}
	return -1
}
