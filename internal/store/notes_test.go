package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/marxiv/marxiv/internal/schema"
)

func TestAddNote(t *testing.T) {
	s := newTestStore(t)

	note, err := s.AddNote("2103.12345", "Attention Is All You Need", "first")
	if err != nil {
		t.Fatalf("Failed to add note: %v", err)
	}
	if note.ID == "" {
		t.Error("Expected a generated note id")
	}
	if note.Content != "first" {
		t.Errorf("Expected content %q, got %q", "first", note.Content)
	}
	if note.CreatedAt == 0 || note.UpdatedAt != note.CreatedAt {
		t.Errorf("Expected matching timestamps, got created=%d updated=%d", note.CreatedAt, note.UpdatedAt)
	}

	paper, err := s.GetPaperNotes("2103.12345")
	if err != nil {
		t.Fatalf("Failed to get paper notes: %v", err)
	}
	if paper.PaperTitle != "Attention Is All You Need" {
		t.Errorf("Unexpected title %q", paper.PaperTitle)
	}
	if len(paper.Notes) != 1 {
		t.Fatalf("Expected 1 note, got %d", len(paper.Notes))
	}
}

func TestAddNoteRefreshesTitle(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.AddNote("2103.12345", "Old Title", "a"); err != nil {
		t.Fatalf("Failed to add note: %v", err)
	}
	if _, err := s.AddNote("2103.12345", "New Title", "b"); err != nil {
		t.Fatalf("Failed to add second note: %v", err)
	}

	paper, err := s.GetPaperNotes("2103.12345")
	if err != nil {
		t.Fatalf("Failed to get paper notes: %v", err)
	}
	if paper.PaperTitle != "New Title" {
		t.Errorf("Expected refreshed title, got %q", paper.PaperTitle)
	}
	if len(paper.Notes) != 2 {
		t.Errorf("Expected 2 notes, got %d", len(paper.Notes))
	}
}

func TestAddNoteRequiresPaperID(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AddNote("", "title", "content"); err == nil {
		t.Error("Expected error for empty paper id")
	}
}

func TestNoteLifecycle(t *testing.T) {
	s := newTestStore(t)
	const paperID = "2103.12345"

	a, _ := s.AddNote(paperID, "Title", "a")
	b, _ := s.AddNote(paperID, "Title", "b")
	c, _ := s.AddNote(paperID, "Title", "c")

	count, err := s.NotesCount()
	if err != nil {
		t.Fatalf("Failed to read counter: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected counter 3, got %d", count)
	}

	// Delete the middle note: order of the survivors is preserved.
	if err := s.DeleteNote(paperID, b.ID); err != nil {
		t.Fatalf("Failed to delete note: %v", err)
	}
	paper, err := s.GetPaperNotes(paperID)
	if err != nil {
		t.Fatalf("Failed to get paper notes: %v", err)
	}
	if len(paper.Notes) != 2 || paper.Notes[0].ID != a.ID || paper.Notes[1].ID != c.ID {
		t.Errorf("Unexpected notes after delete: %+v", paper.Notes)
	}
	if count, _ := s.NotesCount(); count != 2 {
		t.Errorf("Expected counter 2, got %d", count)
	}

	// Deleting the remaining notes removes the paper record entirely.
	if err := s.DeleteNote(paperID, a.ID); err != nil {
		t.Fatalf("Failed to delete note: %v", err)
	}
	if err := s.DeleteNote(paperID, c.ID); err != nil {
		t.Fatalf("Failed to delete note: %v", err)
	}
	if _, err := s.GetPaperNotes(paperID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected paper record to be gone, got %v", err)
	}
	if count, _ := s.NotesCount(); count != 0 {
		t.Errorf("Expected counter 0, got %d", count)
	}
}

func TestDeleteNoteIdempotent(t *testing.T) {
	s := newTestStore(t)

	// Missing paper and missing note are both no-ops.
	if err := s.DeleteNote("no-such-paper", "no-such-note"); err != nil {
		t.Errorf("Expected no-op for missing paper, got %v", err)
	}

	a, _ := s.AddNote("2103.12345", "Title", "a")
	if err := s.DeleteNote("2103.12345", "no-such-note"); err != nil {
		t.Errorf("Expected no-op for missing note, got %v", err)
	}
	if count, _ := s.NotesCount(); count != 1 {
		t.Errorf("Counter must not move on a no-op delete, got %d", count)
	}

	if err := s.DeleteNote("2103.12345", a.ID); err != nil {
		t.Fatalf("Failed to delete note: %v", err)
	}
	if err := s.DeleteNote("2103.12345", a.ID); err != nil {
		t.Errorf("Expected repeated delete to be a no-op, got %v", err)
	}
	if count, _ := s.NotesCount(); count != 0 {
		t.Errorf("Expected counter 0, got %d", count)
	}
}

func TestUpdateNote(t *testing.T) {
	s := newTestStore(t)

	a, _ := s.AddNote("2103.12345", "Title", "draft")
	if err := s.UpdateNote("2103.12345", a.ID, "final"); err != nil {
		t.Fatalf("Failed to update note: %v", err)
	}

	paper, _ := s.GetPaperNotes("2103.12345")
	got := paper.Notes[0]
	if got.Content != "final" {
		t.Errorf("Expected updated content, got %q", got.Content)
	}
	if got.CreatedAt != a.CreatedAt {
		t.Errorf("CreatedAt must not change on update")
	}
	if got.UpdatedAt < a.UpdatedAt {
		t.Errorf("UpdatedAt must move forward on update")
	}

	if err := s.UpdateNote("2103.12345", "no-such-note", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing note, got %v", err)
	}
	if err := s.UpdateNote("no-such-paper", a.ID, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing paper, got %v", err)
	}
}

func TestReorderNotes(t *testing.T) {
	s := newTestStore(t)
	const paperID = "2103.12345"

	a, _ := s.AddNote(paperID, "Title", "a")
	b, _ := s.AddNote(paperID, "Title", "b")
	c, _ := s.AddNote(paperID, "Title", "c")

	if err := s.ReorderNotes(paperID, []schema.Note{*c, *a, *b}); err != nil {
		t.Fatalf("Failed to reorder: %v", err)
	}

	paper, _ := s.GetPaperNotes(paperID)
	want := []string{c.ID, a.ID, b.ID}
	for i, n := range paper.Notes {
		if n.ID != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], n.ID)
		}
	}
}

func TestReorderNotesRejectsMismatch(t *testing.T) {
	s := newTestStore(t)
	const paperID = "2103.12345"

	a, _ := s.AddNote(paperID, "Title", "a")
	b, _ := s.AddNote(paperID, "Title", "b")

	cases := []struct {
		name  string
		notes []schema.Note
	}{
		{"missing note", []schema.Note{*a}},
		{"extra note", []schema.Note{*a, *b, schema.NewNote("stranger")}},
		{"duplicated note", []schema.Note{*a, *a}},
	}
	for _, tc := range cases {
		err := s.ReorderNotes(paperID, tc.notes)
		if !errors.Is(err, ErrReorderMismatch) {
			t.Errorf("%s: expected ErrReorderMismatch, got %v", tc.name, err)
		}
	}

	// The stored order must be untouched after a rejected reorder.
	paper, _ := s.GetPaperNotes(paperID)
	if len(paper.Notes) != 2 || paper.Notes[0].ID != a.ID || paper.Notes[1].ID != b.ID {
		t.Errorf("Stored order changed after rejected reorder: %+v", paper.Notes)
	}

	if err := s.ReorderNotes("no-such-paper", []schema.Note{*a}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing paper, got %v", err)
	}
}

func TestListPaperNotes(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		paperID := fmt.Sprintf("2103.%05d", i)
		if _, err := s.AddNote(paperID, "Title", "a"); err != nil {
			t.Fatalf("Failed to add note: %v", err)
		}
		if _, err := s.AddNote(paperID, "Title", "b"); err != nil {
			t.Fatalf("Failed to add note: %v", err)
		}
	}

	papers, total, err := s.ListPaperNotes(0, 0)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(papers) != 5 {
		t.Errorf("Expected 5 papers, got %d", len(papers))
	}
	// The total counts notes, not papers.
	if total != 10 {
		t.Errorf("Expected total 10, got %d", total)
	}

	// Pagination walks insertion order.
	page, total, err := s.ListPaperNotes(2, 2)
	if err != nil {
		t.Fatalf("Failed to list page: %v", err)
	}
	if total != 10 {
		t.Errorf("Expected total 10, got %d", total)
	}
	if len(page) != 2 || page[0].PaperID != "2103.00002" || page[1].PaperID != "2103.00003" {
		t.Errorf("Unexpected page contents: %+v", page)
	}

	// Offset without limit returns the tail.
	tail, _, err := s.ListPaperNotes(4, 0)
	if err != nil {
		t.Fatalf("Failed to list tail: %v", err)
	}
	if len(tail) != 1 || tail[0].PaperID != "2103.00004" {
		t.Errorf("Unexpected tail: %+v", tail)
	}
}

func TestCounterSurvivesConcurrentMutations(t *testing.T) {
	s := newTestStore(t)

	const workers = 8
	const perWorker = 5

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			paperID := fmt.Sprintf("2103.%05d", w)
			for i := 0; i < perWorker; i++ {
				if _, err := s.AddNote(paperID, "Title", "note"); err != nil {
					t.Errorf("Failed to add note: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	count, err := s.NotesCount()
	if err != nil {
		t.Fatalf("Failed to read counter: %v", err)
	}
	if count != workers*perWorker {
		t.Errorf("Expected counter %d, got %d", workers*perWorker, count)
	}
}
