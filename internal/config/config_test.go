package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MARXIV_DATA_DIR", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.PageSize != 10 {
		t.Errorf("Expected default page size 10, got %d", cfg.PageSize)
	}
	if cfg.HTTP.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", cfg.HTTP.Timeout)
	}
	if cfg.Serve.Addr != "localhost:8787" {
		t.Errorf("Unexpected default serve addr %q", cfg.Serve.Addr)
	}
	if filepath.Base(cfg.DatabasePath()) != "marxiv.db" {
		t.Errorf("Unexpected database path %q", cfg.DatabasePath())
	}
	if filepath.Dir(cfg.CachePath()) != cfg.DataDir {
		t.Errorf("Expected cache under data dir, got %q", cfg.CachePath())
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
data_dir: /tmp/marxiv-test
page_size: 25
http:
  timeout: 5s
serve:
  addr: localhost:9999
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.DataDir != "/tmp/marxiv-test" {
		t.Errorf("Unexpected data dir %q", cfg.DataDir)
	}
	if cfg.PageSize != 25 {
		t.Errorf("Expected page size 25, got %d", cfg.PageSize)
	}
	if cfg.HTTP.Timeout != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %v", cfg.HTTP.Timeout)
	}
	if cfg.Serve.Addr != "localhost:9999" {
		t.Errorf("Unexpected serve addr %q", cfg.Serve.Addr)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing explicit config file")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("MARXIV_PAGE_SIZE", "50")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.PageSize != 50 {
		t.Errorf("Expected env override 50, got %d", cfg.PageSize)
	}
}
