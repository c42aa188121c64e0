package sync

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFastCacheMissingFile(t *testing.T) {
	c := NewFastCache(filepath.Join(t.TempDir(), "appearance.json"))
	theme, font := c.Read()
	if theme != "" || font != "" {
		t.Errorf("Expected empty values for missing file, got %q/%q", theme, font)
	}
}

func TestFastCacheRoundTrip(t *testing.T) {
	c := NewFastCache(filepath.Join(t.TempDir(), "appearance.json"))
	if err := c.Write("amber-crt", "raw"); err != nil {
		t.Fatalf("Failed to write cache: %v", err)
	}
	theme, font := c.Read()
	if theme != "amber-crt" || font != "raw" {
		t.Errorf("Expected written values back, got %q/%q", theme, font)
	}
}

func TestFastCacheCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appearance.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write corrupt file: %v", err)
	}

	c := NewFastCache(path)
	theme, font := c.Read()
	if theme != "" || font != "" {
		t.Errorf("Expected empty values for corrupt file, got %q/%q", theme, font)
	}

	// A write heals the file.
	if err := c.Write("swiss", "editorial"); err != nil {
		t.Fatalf("Failed to write over corrupt file: %v", err)
	}
	if theme, _ := c.Read(); theme != "swiss" {
		t.Errorf("Expected healed cache, got %q", theme)
	}
}

func TestFastCacheCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "appearance.json")
	c := NewFastCache(path)
	if err := c.Write("research", "research"); err != nil {
		t.Fatalf("Failed to write into missing directory: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected cache file to exist: %v", err)
	}
}
