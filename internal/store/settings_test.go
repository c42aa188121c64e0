package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetSetting("theme", json.RawMessage(`"amber-crt"`)); err != nil {
		t.Fatalf("Failed to set setting: %v", err)
	}

	raw, err := s.GetSetting("theme")
	if err != nil {
		t.Fatalf("Failed to get setting: %v", err)
	}
	if string(raw) != `"amber-crt"` {
		t.Errorf("Expected stored value back verbatim, got %s", raw)
	}

	// Overwrite replaces the value whole.
	if err := s.SetSetting("theme", json.RawMessage(`"swiss"`)); err != nil {
		t.Fatalf("Failed to overwrite setting: %v", err)
	}
	raw, _ = s.GetSetting("theme")
	if string(raw) != `"swiss"` {
		t.Errorf("Expected overwritten value, got %s", raw)
	}
}

func TestSettingsCompositeValues(t *testing.T) {
	s := newTestStore(t)

	creds := `[{"provider":"anthropic","key":"sk-test"}]`
	if err := s.SetSetting("apiCredentials", json.RawMessage(creds)); err != nil {
		t.Fatalf("Failed to set composite setting: %v", err)
	}
	raw, err := s.GetSetting("apiCredentials")
	if err != nil {
		t.Fatalf("Failed to get composite setting: %v", err)
	}
	if string(raw) != creds {
		t.Errorf("Expected %s, got %s", creds, raw)
	}
}

func TestSettingsNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetSetting("never-set")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSettingsRejectInvalidJSON(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetSetting("theme", json.RawMessage(`not json`)); err == nil {
		t.Error("Expected error for invalid JSON value")
	}
}

func TestSettingStringHelpers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetSettingString(ctx, "font", "editorial"); err != nil {
		t.Fatalf("Failed to set string setting: %v", err)
	}
	v, err := s.GetSettingString(ctx, "font")
	if err != nil {
		t.Fatalf("Failed to get string setting: %v", err)
	}
	if v != "editorial" {
		t.Errorf("Expected %q, got %q", "editorial", v)
	}

	// A non-string value fails the string accessor but not the raw one.
	if err := s.SetSetting("font", json.RawMessage(`42`)); err != nil {
		t.Fatalf("Failed to set setting: %v", err)
	}
	if _, err := s.GetSettingString(ctx, "font"); err == nil {
		t.Error("Expected error for non-string value")
	}
}
