package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	stdsync "sync"
	"time"

	"github.com/marxiv/marxiv/internal/schema"
	"github.com/marxiv/marxiv/internal/store"
)

// defaultWriteTimeout bounds each background durable write.
const defaultWriteTimeout = 5 * time.Second

// Storage is the durable-store surface the facade depends on. *store.Store
// satisfies it; tests substitute failing implementations to exercise the
// best-effort write paths.
type Storage interface {
	GetSettingContext(ctx context.Context, key string) (json.RawMessage, error)
	SetSettingContext(ctx context.Context, key string, value json.RawMessage) error
	AddNoteContext(ctx context.Context, paperID, paperTitle, content string) (*schema.Note, error)
	UpdateNoteContext(ctx context.Context, paperID, noteID, content string) error
	DeleteNoteContext(ctx context.Context, paperID, noteID string) error
	ReorderNotesContext(ctx context.Context, paperID string, notes []schema.Note) error
	GetPaperNotesContext(ctx context.Context, paperID string) (*schema.PaperNote, error)
}

// KeyNotes is the event key for note collection changes.
const KeyNotes = "notes"

// Event is a change notification published by the facade.
type Event struct {
	// Key is the setting name, or KeyNotes for note changes.
	Key string
	// Value carries the new setting value for setting events.
	Value interface{}
	// PaperID identifies the affected paper for note events.
	PaperID string
	// Notes carries the new sequence for reorders so subscribers can
	// update without a durable read. Nil means "reload if you care".
	Notes []schema.Note
}

// State is the facade's reconciled view of user preferences.
type State struct {
	Theme        string
	Font         string
	DefaultModel string
	Credentials  []schema.APICredential
	// Loading is true until the first durable read completes.
	Loading bool
}

// Applier receives a visual side effect when an appearance setting
// changes (the terminal render profile swap).
type Applier func(value string)

// Facade is the reactive state holder bridging UI surfaces and the
// durable store. It owns optimistic updates, the fast-path cache and
// cross-instance broadcast. Only the facade mutates durable state on
// behalf of the UI; the export/import serializer is the sole exception.
type Facade struct {
	storage Storage
	cache   *FastCache
	logger  *log.Logger

	mu    stdsync.RWMutex
	state State

	applyTheme Applier
	applyFont  Applier

	subsMu  stdsync.Mutex
	subs    map[string]map[int]func(Event)
	nextSub int

	// paperMu serializes note mutations per paper id so partial effects
	// of one logical operation never interleave with another.
	paperMuMu stdsync.Mutex
	paperMu   map[string]*stdsync.Mutex

	writeTimeout time.Duration

	writes stdsync.WaitGroup
}

// Option configures a Facade.
type Option func(*Facade)

// WithLogger sets the facade's logger.
func WithLogger(logger *log.Logger) Option {
	return func(f *Facade) { f.logger = logger }
}

// WithThemeApplier registers the theme side-effect hook.
func WithThemeApplier(a Applier) Option {
	return func(f *Facade) { f.applyTheme = a }
}

// WithFontApplier registers the font side-effect hook.
func WithFontApplier(a Applier) Option {
	return func(f *Facade) { f.applyFont = a }
}

// WithWriteTimeout overrides the deadline for background durable writes.
func WithWriteTimeout(d time.Duration) Option {
	return func(f *Facade) { f.writeTimeout = d }
}

// New creates a Facade seeded synchronously from the fast cache, falling
// back to the hardcoded defaults when the cache is empty. The durable
// store has not been consulted yet; call Load to reconcile.
func New(storage Storage, cache *FastCache, opts ...Option) *Facade {
	f := &Facade{
		storage:      storage,
		cache:        cache,
		logger:       log.New(os.Stderr, "[sync] ", log.LstdFlags),
		subs:         make(map[string]map[int]func(Event)),
		paperMu:      make(map[string]*stdsync.Mutex),
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}

	theme, font := cache.Read()
	if theme == "" {
		theme = schema.DefaultTheme
	}
	if font == "" {
		font = schema.DefaultFont
	}
	f.state = State{Theme: theme, Font: font, Loading: true}

	f.apply(f.applyTheme, theme)
	f.apply(f.applyFont, font)
	return f
}

// State returns a copy of the current state.
func (f *Facade) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s := f.state
	s.Credentials = append([]schema.APICredential(nil), f.state.Credentials...)
	return s
}

// Load reads the durable store and reconciles it against the seeded
// state. Where the durable value differs, it wins: in-memory state, fast
// cache and visual side effects are all overwritten, and a change event
// is published so mounted instances converge. Read failures are logged;
// the facade keeps serving the cached values.
func (f *Facade) Load(ctx context.Context) {
	theme, err := f.readString(ctx, schema.KeyTheme)
	if err == nil && theme != "" {
		f.reconcileAppearance(schema.KeyTheme, theme)
	}
	font, err := f.readString(ctx, schema.KeyFont)
	if err == nil && font != "" {
		f.reconcileAppearance(schema.KeyFont, font)
	}

	model, err := f.readString(ctx, schema.KeyDefaultModel)
	if err == nil && model != "" {
		f.mu.Lock()
		changed := f.state.DefaultModel != model
		f.state.DefaultModel = model
		f.mu.Unlock()
		if changed {
			f.publish(Event{Key: schema.KeyDefaultModel, Value: model})
		}
	}

	raw, err := f.storage.GetSettingContext(ctx, schema.KeyAPICredentials)
	if err == nil {
		var creds []schema.APICredential
		if err := json.Unmarshal(raw, &creds); err != nil {
			f.logger.Printf("Failed to parse stored credentials: %v", err)
		} else {
			f.mu.Lock()
			f.state.Credentials = creds
			f.mu.Unlock()
			f.publish(Event{Key: schema.KeyAPICredentials, Value: creds})
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		f.logger.Printf("Failed to load credentials: %v", err)
	}

	f.mu.Lock()
	f.state.Loading = false
	f.mu.Unlock()
}

// reconcileAppearance applies the durable-wins policy for one appearance
// setting: on mismatch the durable value overwrites state and fast cache,
// and the visual side effect is reapplied.
func (f *Facade) reconcileAppearance(key, durable string) {
	f.mu.Lock()
	var changed bool
	switch key {
	case schema.KeyTheme:
		changed = f.state.Theme != durable
		f.state.Theme = durable
	case schema.KeyFont:
		changed = f.state.Font != durable
		f.state.Font = durable
	}
	theme, font := f.state.Theme, f.state.Font
	f.mu.Unlock()

	if !changed {
		return
	}

	switch key {
	case schema.KeyTheme:
		f.apply(f.applyTheme, durable)
	case schema.KeyFont:
		f.apply(f.applyFont, durable)
	}
	if err := f.cache.Write(theme, font); err != nil {
		f.logger.Printf("Failed to update fast cache: %v", err)
	}
	f.publish(Event{Key: key, Value: durable})
}

// SetTheme optimistically switches the theme: state, side effect and fast
// cache update immediately, the durable write proceeds in the background,
// and subscribers are notified. The caller never blocks on durability.
func (f *Facade) SetTheme(theme string) {
	f.mu.Lock()
	f.state.Theme = theme
	font := f.state.Font
	f.mu.Unlock()

	f.apply(f.applyTheme, theme)
	if err := f.cache.Write(theme, font); err != nil {
		f.logger.Printf("Failed to update fast cache: %v", err)
	}
	f.writeThrough(schema.KeyTheme, theme)
	f.publish(Event{Key: schema.KeyTheme, Value: theme})
}

// SetFont optimistically switches the font, mirroring SetTheme.
func (f *Facade) SetFont(font string) {
	f.mu.Lock()
	f.state.Font = font
	theme := f.state.Theme
	f.mu.Unlock()

	f.apply(f.applyFont, font)
	if err := f.cache.Write(theme, font); err != nil {
		f.logger.Printf("Failed to update fast cache: %v", err)
	}
	f.writeThrough(schema.KeyFont, font)
	f.publish(Event{Key: schema.KeyFont, Value: font})
}

// SetDefaultModel optimistically stores the preferred model id.
func (f *Facade) SetDefaultModel(model string) {
	f.mu.Lock()
	f.state.DefaultModel = model
	f.mu.Unlock()

	f.writeThrough(schema.KeyDefaultModel, model)
	f.publish(Event{Key: schema.KeyDefaultModel, Value: model})
}

// SetCredentials replaces the whole credential list.
func (f *Facade) SetCredentials(creds []schema.APICredential) {
	f.mu.Lock()
	f.state.Credentials = append([]schema.APICredential(nil), creds...)
	f.mu.Unlock()

	f.writeThrough(schema.KeyAPICredentials, creds)
	f.publish(Event{Key: schema.KeyAPICredentials, Value: creds})
}

// SetCredential stores one provider's key via read-modify-write: an
// existing entry for the provider is replaced, never appended, so the
// list holds at most one credential per provider.
func (f *Facade) SetCredential(provider schema.Provider, key string) error {
	cred := schema.APICredential{Provider: provider, Key: key}
	if err := cred.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	creds := schema.ReplaceCredential(f.state.Credentials, cred)
	f.state.Credentials = creds
	f.mu.Unlock()

	f.writeThrough(schema.KeyAPICredentials, creds)
	f.publish(Event{Key: schema.KeyAPICredentials, Value: creds})
	return nil
}

// AddNote persists a new note and notifies subscribers. Unlike setting
// writes this is synchronous: the caller needs the generated note back,
// and a failure must surface.
func (f *Facade) AddNote(ctx context.Context, paperID, paperTitle, content string) (*schema.Note, error) {
	unlock := f.lockPaper(paperID)
	defer unlock()

	note, err := f.storage.AddNoteContext(ctx, paperID, paperTitle, content)
	if err != nil {
		return nil, err
	}
	f.publish(Event{Key: KeyNotes, PaperID: paperID})
	return note, nil
}

// UpdateNote persists a content edit and notifies subscribers.
func (f *Facade) UpdateNote(ctx context.Context, paperID, noteID, content string) error {
	unlock := f.lockPaper(paperID)
	defer unlock()

	if err := f.storage.UpdateNoteContext(ctx, paperID, noteID, content); err != nil {
		return err
	}
	f.publish(Event{Key: KeyNotes, PaperID: paperID})
	return nil
}

// DeleteNote removes a note and notifies subscribers.
func (f *Facade) DeleteNote(ctx context.Context, paperID, noteID string) error {
	unlock := f.lockPaper(paperID)
	defer unlock()

	if err := f.storage.DeleteNoteContext(ctx, paperID, noteID); err != nil {
		return err
	}
	f.publish(Event{Key: KeyNotes, PaperID: paperID})
	return nil
}

// ReorderNotes applies the optimistic-reorder-with-rollback pattern: the
// new order is published immediately so every mounted instance renders it,
// then the durable write runs in the background. If the write fails, the
// last known-good order is reloaded from the durable store and
// republished. At most one reorder per paper is in flight at a time.
func (f *Facade) ReorderNotes(paperID string, notes []schema.Note) {
	ordered := append([]schema.Note(nil), notes...)
	f.publish(Event{Key: KeyNotes, PaperID: paperID, Notes: ordered})

	f.writes.Add(1)
	go func() {
		defer f.writes.Done()

		unlock := f.lockPaper(paperID)
		defer unlock()

		ctx, cancel := context.WithTimeout(context.Background(), f.writeTimeout)
		defer cancel()

		if err := f.storage.ReorderNotesContext(ctx, paperID, ordered); err != nil {
			f.logger.Printf("Reorder failed for paper %s, rolling back: %v", paperID, err)
			f.rollbackNotes(paperID)
		}
	}()
}

// rollbackNotes reloads a paper's durable note order and republishes it.
// The failed write may have died with an expired deadline, so the reload
// runs on a fresh context.
func (f *Facade) rollbackNotes(paperID string) {
	ctx, cancel := context.WithTimeout(context.Background(), f.writeTimeout)
	defer cancel()

	paper, err := f.storage.GetPaperNotesContext(ctx, paperID)
	if errors.Is(err, store.ErrNotFound) {
		f.publish(Event{Key: KeyNotes, PaperID: paperID, Notes: []schema.Note{}})
		return
	}
	if err != nil {
		f.logger.Printf("Rollback reload failed for paper %s: %v", paperID, err)
		f.publish(Event{Key: KeyNotes, PaperID: paperID})
		return
	}
	f.publish(Event{Key: KeyNotes, PaperID: paperID, Notes: paper.Notes})
}

// Subscribe registers a callback for events with the given key. The
// returned function cancels the subscription. Callbacks run on the
// publishing goroutine and must not block.
func (f *Facade) Subscribe(key string, fn func(Event)) func() {
	f.subsMu.Lock()
	defer f.subsMu.Unlock()

	id := f.nextSub
	f.nextSub++
	if f.subs[key] == nil {
		f.subs[key] = make(map[int]func(Event))
	}
	f.subs[key][id] = fn

	return func() {
		f.subsMu.Lock()
		defer f.subsMu.Unlock()
		delete(f.subs[key], id)
	}
}

// Flush blocks until all in-flight background durable writes finish.
// Call before shutdown so best-effort writes get their chance to land.
func (f *Facade) Flush() {
	f.writes.Wait()
}

// publish fans an event out to the key's subscribers.
func (f *Facade) publish(ev Event) {
	f.subsMu.Lock()
	fns := make([]func(Event), 0, len(f.subs[ev.Key]))
	for _, fn := range f.subs[ev.Key] {
		fns = append(fns, fn)
	}
	f.subsMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// writeThrough performs the background durable write for a setting.
// Failures are wrapped as DurableWriteError, logged and swallowed: the UI
// already shows the optimistic result, and interrupting the user buys
// nothing. State may be inconsistent with storage until the next
// successful write.
func (f *Facade) writeThrough(key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		f.logger.Printf("Failed to marshal setting %s: %v", key, err)
		return
	}

	f.writes.Add(1)
	go func() {
		defer f.writes.Done()

		ctx, cancel := context.WithTimeout(context.Background(), f.writeTimeout)
		defer cancel()

		if err := f.storage.SetSettingContext(ctx, key, raw); err != nil {
			var dw *store.DurableWriteError
			if !errors.As(err, &dw) {
				err = &store.DurableWriteError{Op: fmt.Sprintf("set %s", key), Err: err}
			}
			f.logger.Printf("Best-effort write failed: %v", err)
		}
	}()
}

// readString reads a JSON string setting from the durable store.
func (f *Facade) readString(ctx context.Context, key string) (string, error) {
	raw, err := f.storage.GetSettingContext(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			f.logger.Printf("Failed to load setting %s: %v", key, err)
		}
		return "", err
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("setting %s is not a string: %w", key, err)
	}
	return v, nil
}

// apply invokes a side-effect hook if one is registered.
func (f *Facade) apply(a Applier, value string) {
	if a != nil {
		a(value)
	}
}

// lockPaper acquires the per-paper mutex, creating it on first use.
func (f *Facade) lockPaper(paperID string) func() {
	f.paperMuMu.Lock()
	mu, ok := f.paperMu[paperID]
	if !ok {
		mu = &stdsync.Mutex{}
		f.paperMu[paperID] = mu
	}
	f.paperMuMu.Unlock()

	mu.Lock()
	return mu.Unlock
}
