package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// GetSetting returns the stored value for a logical setting name.
// Returns an error wrapping ErrNotFound if the key was never set.
//
// No coercion or validation happens here: whatever JSON was stored is
// returned verbatim. Defaulting is the caller's responsibility.
func (s *Store) GetSetting(key string) (json.RawMessage, error) {
	return s.GetSettingContext(context.Background(), key)
}

// GetSettingContext returns a setting value with context support.
func (s *Store) GetSettingContext(ctx context.Context, key string) (json.RawMessage, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "setting", ID: key}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return json.RawMessage(value), nil
}

// SetSetting overwrites the value for a logical setting name
// unconditionally. Composite values are replaced whole; callers wanting to
// change one entry of a list must read-modify-write.
//
// The accessor has no side effects beyond the store mutation; change
// notification is the synchronization facade's job.
func (s *Store) SetSetting(key string, value json.RawMessage) error {
	return s.SetSettingContext(context.Background(), key, value)
}

// SetSettingContext overwrites a setting value with context support.
func (s *Store) SetSettingContext(ctx context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("setting %s: value is not valid JSON", key)
	}

	query := `
	INSERT INTO settings (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := s.conn.ExecContext(ctx, query, key, string(value)); err != nil {
		return writeErr(fmt.Sprintf("set setting %s", key), err)
	}
	return nil
}

// GetSettingString is a convenience for settings whose value is a JSON
// string. Returns an error wrapping ErrNotFound when absent.
func (s *Store) GetSettingString(ctx context.Context, key string) (string, error) {
	raw, err := s.GetSettingContext(ctx, key)
	if err != nil {
		return "", err
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("setting %s is not a string: %w", key, err)
	}
	return v, nil
}

// SetSettingString stores a plain string value under key.
func (s *Store) SetSettingString(ctx context.Context, key, value string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal setting %s: %w", key, err)
	}
	return s.SetSettingContext(ctx, key, raw)
}
