// Package portable converts the full marxiv local store into a portable
// JSON backup document and restores it.
//
// The document nests theme, font and default model under a
// "personalization" object. That grouping exists only in the file format:
// in storage the three remain individual setting keys, and import unpacks
// them again. Any setting key the serializer does not recognize passes
// through untouched, so settings added later survive a backup/restore
// cycle without serializer changes.
//
// Import performs full replacement. The note counter in the document's
// meta object is informational only; the restored counter is recomputed
// from the notes actually written, so a hand-edited or stale document can
// never break the counter invariant.
package portable

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/marxiv/marxiv/internal/schema"
	"github.com/marxiv/marxiv/internal/store"
)

// AppName prefixes exported filenames.
const AppName = "marxiv"

// Top-level document keys with dedicated handling; everything else is a
// passthrough setting.
const (
	keyPersonalization = "personalization"
	keyNotes           = "notes"
	keyMeta            = "meta"
)

// InvalidFormatError is returned when an import payload cannot be parsed
// as JSON or fails minimal shape validation.
type InvalidFormatError struct {
	Reason string
	Err    error
}

func (e *InvalidFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid backup format: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid backup format: %s", e.Reason)
}

func (e *InvalidFormatError) Unwrap() error {
	return e.Err
}

// Personalization groups the appearance settings in the export document.
type Personalization struct {
	Theme        string `json:"theme"`
	Font         string `json:"font"`
	DefaultModel string `json:"defaultModel,omitempty"`
}

// Meta carries counters in the export document.
type Meta struct {
	NotesCount int `json:"notes_count"`
}

// Serializer reads and writes backup documents against a store.
type Serializer struct {
	store  *store.Store
	logger *log.Logger
}

// New creates a Serializer. A nil logger defaults to stderr.
func New(st *store.Store, logger *log.Logger) *Serializer {
	if logger == nil {
		logger = log.New(os.Stderr, "[backup] ", log.LstdFlags)
	}
	return &Serializer{store: st, logger: logger}
}

// Export produces the backup document for the store's current state.
// Durable read failures are surfaced: export is an explicit user-initiated
// operation.
func (s *Serializer) Export(ctx context.Context) ([]byte, error) {
	settings, papers, count, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot store: %w", err)
	}

	doc := make(map[string]json.RawMessage, len(settings)+3)

	var pers Personalization
	pers.Theme = stringSetting(settings, schema.KeyTheme, schema.DefaultTheme)
	pers.Font = stringSetting(settings, schema.KeyFont, schema.DefaultFont)
	pers.DefaultModel = stringSetting(settings, schema.KeyDefaultModel, "")
	delete(settings, schema.KeyTheme)
	delete(settings, schema.KeyFont)
	delete(settings, schema.KeyDefaultModel)

	persJSON, err := json.Marshal(pers)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal personalization: %w", err)
	}
	doc[keyPersonalization] = persJSON

	if papers == nil {
		papers = []*schema.PaperNote{}
	}
	notesJSON, err := json.Marshal(papers)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notes: %w", err)
	}
	doc[keyNotes] = notesJSON

	metaJSON, err := json.Marshal(Meta{NotesCount: count})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal meta: %w", err)
	}
	doc[keyMeta] = metaJSON

	// Remaining settings (credentials included) pass through verbatim.
	for key, value := range settings {
		doc[key] = value
	}

	return json.MarshalIndent(doc, "", "  ")
}

// Import restores a backup document, replacing the store's contents
// wholesale. The settings clear, notes clear and rewrite all run in one
// store transaction; a partial import failure cannot leave settings
// cleared with notes un-replaced.
//
// Both the nested export shape and the legacy flat shape (individual
// top-level setting keys, no personalization object) are accepted.
// Malformed note entries are skipped with a log line rather than aborting
// the whole import.
func (s *Serializer) Import(ctx context.Context, data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return &InvalidFormatError{Reason: "document is not a JSON object", Err: err}
	}

	settings := make(map[string]json.RawMessage)

	if raw, ok := doc[keyPersonalization]; ok {
		var pers Personalization
		if err := json.Unmarshal(raw, &pers); err != nil {
			return &InvalidFormatError{Reason: "personalization is malformed", Err: err}
		}
		if pers.Theme != "" {
			settings[schema.KeyTheme] = mustMarshal(pers.Theme)
		}
		if pers.Font != "" {
			settings[schema.KeyFont] = mustMarshal(pers.Font)
		}
		if pers.DefaultModel != "" {
			settings[schema.KeyDefaultModel] = mustMarshal(pers.DefaultModel)
		}
		delete(doc, keyPersonalization)
	}

	var papers []*schema.PaperNote
	if raw, ok := doc[keyNotes]; ok {
		if entries, ok := decodeNoteEntries(raw); ok {
			papers = s.validNoteEntries(entries)
			delete(doc, keyNotes)
		}
		// A non-array notes value is a legacy flat setting and falls
		// through to the passthrough loop below.
	}

	// meta.notes_count is never trusted; the store recomputes it.
	delete(doc, keyMeta)

	for key, value := range doc {
		if !json.Valid(value) {
			return &InvalidFormatError{Reason: fmt.Sprintf("value for %q is not valid JSON", key)}
		}
		settings[key] = value
	}

	if err := s.store.ReplaceAll(ctx, settings, papers); err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}
	return nil
}

// decodeNoteEntries attempts to read the notes value as an array of raw
// entries. Returns false when the value is not an array.
func decodeNoteEntries(raw json.RawMessage) ([]json.RawMessage, bool) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

// validNoteEntries parses note entries, skipping malformed ones. An entry
// must carry a paper id and a note sequence to be restored.
func (s *Serializer) validNoteEntries(entries []json.RawMessage) []*schema.PaperNote {
	papers := make([]*schema.PaperNote, 0, len(entries))
	for i, raw := range entries {
		var p schema.PaperNote
		if err := json.Unmarshal(raw, &p); err != nil {
			s.logger.Printf("Skipping malformed note entry %d: %v", i, err)
			continue
		}
		if err := p.Validate(); err != nil {
			s.logger.Printf("Skipping invalid note entry %d: %v", i, err)
			continue
		}
		papers = append(papers, &p)
	}
	return papers
}

// ExportFilename returns the download filename convention for a backup:
// marxiv-<kind>-<ISO date>.json, where kind is "settings" or "data".
func ExportFilename(kind string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s.json", AppName, kind, now.Format("2006-01-02"))
}

// stringSetting unpacks a JSON string setting, falling back to def when
// the key is absent or not a string.
func stringSetting(settings map[string]json.RawMessage, key, def string) string {
	raw, ok := settings[key]
	if !ok {
		return def
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return def
	}
	return v
}

func mustMarshal(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err) // strings cannot fail to marshal
	}
	return raw
}
