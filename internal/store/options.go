package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetOption returns a persisted option value and whether it exists.
func (s *Store) GetOption(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM options WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read option %s: %w", name, err)
	}
	return value, true, nil
}

// SetOption creates or replaces a persisted option value.
func (s *Store) SetOption(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO options (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, name, value)
	if err != nil {
		return fmt.Errorf("write option %s: %w", name, err)
	}
	return nil
}
