package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FastCache is the synchronously-readable appearance cache. It exists only
// to avoid a visible flash of default theme and font before the durable
// store has answered; it is never the source of truth, and the durable
// store overwrites it whenever they disagree.
//
// The cache is a tiny JSON file holding theme and font only, the two
// settings with a visual side effect at startup.
type FastCache struct {
	path string
}

// fastCacheData is the on-disk shape.
type fastCacheData struct {
	Theme string `json:"theme,omitempty"`
	Font  string `json:"font,omitempty"`
}

// NewFastCache creates a cache backed by the given file path. The file is
// created lazily on first write.
func NewFastCache(path string) *FastCache {
	return &FastCache{path: path}
}

// Path returns the cache file path.
func (c *FastCache) Path() string {
	return c.path
}

// Read returns the cached theme and font. Missing file, unreadable file
// and malformed content all read as empty values; the caller falls back to
// defaults and the durable store corrects things on reconcile.
func (c *FastCache) Read() (theme, font string) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return "", ""
	}
	var d fastCacheData
	if err := json.Unmarshal(data, &d); err != nil {
		return "", ""
	}
	return d.Theme, d.Font
}

// Write stores the theme and font. Best effort: the cache self-heals from
// the durable store, so a failed write only costs one flash of defaults.
func (c *FastCache) Write(theme, font string) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	data, err := json.Marshal(fastCacheData{Theme: theme, Font: font})
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}
