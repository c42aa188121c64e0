// Package theme holds the built-in appearance definitions and renders
// terminal output in the active palette. Themes and fonts are declared
// in an embedded TOML file so adding one does not touch Go code.
package theme

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

//go:embed themes.toml
var themesTOML []byte

// Theme is a named color palette.
type Theme struct {
	Name    string `toml:"name"`
	Dark    bool   `toml:"dark"`
	Primary string `toml:"primary"`
	Accent  string `toml:"accent"`
	Muted   string `toml:"muted"`
}

// Font is a named typography preset. Terminals cannot switch typefaces,
// so fonts only affect labels and layout density.
type Font struct {
	Name  string `toml:"name"`
	Label string `toml:"label"`
}

type registry struct {
	Themes []Theme `toml:"themes"`
	Fonts  []Font  `toml:"fonts"`
}

var (
	loadOnce sync.Once
	loaded   registry
	loadErr  error
)

func load() (registry, error) {
	loadOnce.Do(func() {
		loadErr = toml.Unmarshal(themesTOML, &loaded)
	})
	return loaded, loadErr
}

// Themes returns the built-in themes in declaration order.
func Themes() ([]Theme, error) {
	reg, err := load()
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded themes: %w", err)
	}
	return reg.Themes, nil
}

// Fonts returns the built-in fonts in declaration order.
func Fonts() ([]Font, error) {
	reg, err := load()
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded themes: %w", err)
	}
	return reg.Fonts, nil
}

// Lookup finds a theme by name.
func Lookup(name string) (Theme, bool) {
	reg, err := load()
	if err != nil {
		return Theme{}, false
	}
	for _, t := range reg.Themes {
		if t.Name == name {
			return t, true
		}
	}
	return Theme{}, false
}

// LookupFont finds a font by name.
func LookupFont(name string) (Font, bool) {
	reg, err := load()
	if err != nil {
		return Font{}, false
	}
	for _, f := range reg.Fonts {
		if f.Name == name {
			return f, true
		}
	}
	return Font{}, false
}

// Names returns the sorted theme names, for completion and validation.
func Names() []string {
	reg, err := load()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(reg.Themes))
	for _, t := range reg.Themes {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// FontNames returns the sorted font names.
func FontNames() []string {
	reg, err := load()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(reg.Fonts))
	for _, f := range reg.Fonts {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

// Styles is the set of lipgloss styles derived from a theme. Renderers
// take a Styles value rather than a Theme so output code never touches
// raw colors.
type Styles struct {
	Title   lipgloss.Style
	Accent  lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Divider lipgloss.Style
}

// StylesFor builds the style set for a theme.
func StylesFor(t Theme) Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Primary)),
		Accent:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.Accent)),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f7768e")),
		Divider: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
	}
}

var (
	activeMu sync.RWMutex
	active   = Styles{
		Title:   lipgloss.NewStyle().Bold(true),
		Accent:  lipgloss.NewStyle(),
		Muted:   lipgloss.NewStyle().Faint(true),
		Error:   lipgloss.NewStyle().Bold(true),
		Divider: lipgloss.NewStyle().Faint(true),
	}
)

// Apply switches the process-wide active styles to the named theme.
// Unknown names are ignored so stale persisted values degrade to the
// current styles instead of failing. Apply matches the Applier
// signature expected by the sync facade.
func Apply(name string) {
	t, ok := Lookup(name)
	if !ok {
		return
	}
	if termenv.ColorProfile() == termenv.Ascii {
		return
	}
	activeMu.Lock()
	active = StylesFor(t)
	activeMu.Unlock()
}

// Active returns the current process-wide styles.
func Active() Styles {
	activeMu.RLock()
	defer activeMu.RUnlock()
	return active
}
