package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/scrypster/resonance/internal/storage"
)

// AddEntity registers a known entity name. Re-adding an existing name
// (case-insensitively) is a no-op.
func (s *Store) AddEntity(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: entity name is required", storage.ErrInvalidInput)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entities (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("sqlite: failed to add entity: %w", err)
	}
	return nil
}

// EntityNames returns every known entity name in insertion order.
func (s *Store) EntityNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM entities ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list entities: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan entity: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
