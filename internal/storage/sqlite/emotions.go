package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/scrypster/resonance/internal/storage"
	"github.com/scrypster/resonance/pkg/types"
)

const emotionColumns = `label, axis0, axis1, axis2, axis3, shadow_for, times_used, last_used_at, is_user_defined, created_at`

// GetEmotion retrieves a lexicon entry by label.
func (s *Store) GetEmotion(ctx context.Context, label string) (*types.EmotionDefinition, error) {
	label = types.NormalizeLabel(label)
	if label == "" {
		return nil, fmt.Errorf("%w: label is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+emotionColumns+` FROM emotions WHERE label = ?`, label)
	def, err := scanEmotion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: failed to get emotion: %w", err)
	}
	return def, nil
}

// EnsureEmotion inserts def when its label is absent and returns the stored row.
func (s *Store) EnsureEmotion(ctx context.Context, def *types.EmotionDefinition) (*types.EmotionDefinition, error) {
	if def == nil {
		return nil, storage.ErrInvalidInput
	}
	label := types.NormalizeLabel(def.Label)
	if label == "" {
		return nil, fmt.Errorf("%w: label is required", storage.ErrInvalidInput)
	}

	shadowJSON, err := marshalShadowFor(def.ShadowFor)
	if err != nil {
		return nil, err
	}

	createdAt := def.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	w := def.AxisWeights
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO emotions (label, axis0, axis1, axis2, axis3, shadow_for, times_used, is_user_defined, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(label) DO NOTHING`,
		label, w[0], w[1], w[2], w[3], shadowJSON, def.IsUserDefined, createdAt)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to ensure emotion: %w", err)
	}
	return s.GetEmotion(ctx, label)
}

// RecordUsage increments the usage counter for label.
func (s *Store) RecordUsage(ctx context.Context, label string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE emotions SET times_used = times_used + 1, last_used_at = ? WHERE label = ?`,
		at.UTC(), types.NormalizeLabel(label))
	if err != nil {
		return fmt.Errorf("sqlite: failed to record emotion usage: %w", err)
	}
	return requireAffected(result)
}

// Calibrate overwrites the weights and shadow list of label.
func (s *Store) Calibrate(ctx context.Context, label string, weights types.Axes, shadowFor []string) (*types.EmotionDefinition, error) {
	label = types.NormalizeLabel(label)
	if label == "" {
		return nil, fmt.Errorf("%w: label is required", storage.ErrInvalidInput)
	}
	if label == types.NeutralLabel {
		return nil, fmt.Errorf("%w: %q cannot carry trait weights", storage.ErrInvalidInput, types.NeutralLabel)
	}

	shadowJSON, err := marshalShadowFor(shadowFor)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO emotions (label, axis0, axis1, axis2, axis3, shadow_for, times_used, is_user_defined, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, 1, ?)
		ON CONFLICT(label) DO UPDATE SET
			axis0 = excluded.axis0,
			axis1 = excluded.axis1,
			axis2 = excluded.axis2,
			axis3 = excluded.axis3,
			shadow_for = excluded.shadow_for,
			is_user_defined = 1`,
		label, weights[0], weights[1], weights[2], weights[3], shadowJSON, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to calibrate emotion: %w", err)
	}
	return s.GetEmotion(ctx, label)
}

// ListEmotions returns the whole lexicon ordered by label.
func (s *Store) ListEmotions(ctx context.Context) ([]*types.EmotionDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+emotionColumns+` FROM emotions ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list emotions: %w", err)
	}
	defer rows.Close()

	var out []*types.EmotionDefinition
	for rows.Next() {
		def, err := scanEmotion(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan emotion: %w", err)
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

func scanEmotion(row rowScanner) (*types.EmotionDefinition, error) {
	var (
		def        types.EmotionDefinition
		shadowJSON sql.NullString
		lastUsed   sql.NullTime
	)
	err := row.Scan(
		&def.Label,
		&def.AxisWeights[0], &def.AxisWeights[1], &def.AxisWeights[2], &def.AxisWeights[3],
		&shadowJSON, &def.TimesUsed, &lastUsed, &def.IsUserDefined, &def.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if shadowJSON.Valid && shadowJSON.String != "" {
		if err := json.Unmarshal([]byte(shadowJSON.String), &def.ShadowFor); err != nil {
			return nil, fmt.Errorf("failed to unmarshal shadow list: %w", err)
		}
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		def.LastUsedAt = &t
	}
	return &def, nil
}

func marshalShadowFor(codes []string) (sql.NullString, error) {
	if len(codes) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(codes)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal shadow list: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
