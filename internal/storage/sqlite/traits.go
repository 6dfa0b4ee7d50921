package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/scrypster/resonance/internal/storage"
	"github.com/scrypster/resonance/pkg/types"
)

// AppendSignal records a signal event.
func (s *Store) AppendSignal(ctx context.Context, sig *types.SignalEvent) error {
	if sig == nil || sig.ID == "" || sig.FeelingID == "" {
		return fmt.Errorf("%w: signal ID and feeling ID are required", storage.ErrInvalidInput)
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = time.Now().UTC()
	}

	d := sig.Deltas
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signals (id, feeling_id, d0, d1, d2, d3, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sig.ID, sig.FeelingID, d[0], d[1], d[2], d[3], sig.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("sqlite: failed to append signal: %w", err)
	}
	return nil
}

// SumSignals returns per-axis sums over signals created at or after since.
func (s *Store) SumSignals(ctx context.Context, since time.Time) (types.Axes, int, error) {
	query := `
		SELECT COALESCE(SUM(d0), 0), COALESCE(SUM(d1), 0), COALESCE(SUM(d2), 0), COALESCE(SUM(d3), 0), COUNT(*)
		FROM signals`
	var args []any
	if !since.IsZero() {
		query += ` WHERE created_at >= ?`
		args = append(args, since.UTC())
	}

	var sums types.Axes
	var total int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&sums[0], &sums[1], &sums[2], &sums[3], &total)
	if err != nil {
		return types.Axes{}, 0, fmt.Errorf("sqlite: failed to sum signals: %w", err)
	}
	return sums, total, nil
}

// AppendSnapshot records a trait snapshot.
func (s *Store) AppendSnapshot(ctx context.Context, snap *types.TraitSnapshot) error {
	if snap == nil || snap.ID == "" {
		return fmt.Errorf("%w: snapshot ID is required", storage.ErrInvalidInput)
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	a := snap.AxisSums
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trait_snapshots (id, s0, s1, s2, s3, code, confidence, total_signals, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, a[0], a[1], a[2], a[3], snap.Code, snap.Confidence, snap.TotalSignals, snap.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("sqlite: failed to append snapshot: %w", err)
	}
	return nil
}

const snapshotColumns = `id, s0, s1, s2, s3, code, confidence, total_signals, created_at`

// LatestSnapshot returns the most recent snapshot.
func (s *Store) LatestSnapshot(ctx context.Context) (*types.TraitSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM trait_snapshots ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: failed to get latest snapshot: %w", err)
	}
	return snap, nil
}

// ListSnapshots returns up to limit snapshots, newest first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]*types.TraitSnapshot, error) {
	limit = clampLimit(limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM trait_snapshots ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var out []*types.TraitSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// AppendShadow records a shadow event.
func (s *Store) AppendShadow(ctx context.Context, ev *types.ShadowEvent) error {
	if ev == nil || ev.ID == "" || ev.FeelingID == "" {
		return fmt.Errorf("%w: shadow ID and feeling ID are required", storage.ErrInvalidInput)
	}
	if ev.RecordedAt.IsZero() {
		ev.RecordedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shadow_events (id, feeling_id, emotion_label, trait_code, note, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.FeelingID, ev.EmotionLabel, ev.TraitCode, nullableString(ev.Note), ev.RecordedAt.UTC())
	if err != nil {
		return fmt.Errorf("sqlite: failed to append shadow event: %w", err)
	}
	return nil
}

// ListShadows returns up to limit shadow events, newest first.
func (s *Store) ListShadows(ctx context.Context, limit int) ([]*types.ShadowEvent, error) {
	limit = clampLimit(limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, feeling_id, emotion_label, trait_code, note, recorded_at
		FROM shadow_events
		ORDER BY recorded_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list shadow events: %w", err)
	}
	defer rows.Close()

	var out []*types.ShadowEvent
	for rows.Next() {
		var ev types.ShadowEvent
		var note sql.NullString
		if err := rows.Scan(&ev.ID, &ev.FeelingID, &ev.EmotionLabel, &ev.TraitCode, &note, &ev.RecordedAt); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan shadow event: %w", err)
		}
		ev.Note = note.String
		out = append(out, &ev)
	}
	return out, rows.Err()
}

func scanSnapshot(row rowScanner) (*types.TraitSnapshot, error) {
	var snap types.TraitSnapshot
	err := row.Scan(&snap.ID,
		&snap.AxisSums[0], &snap.AxisSums[1], &snap.AxisSums[2], &snap.AxisSums[3],
		&snap.Code, &snap.Confidence, &snap.TotalSignals, &snap.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// clampLimit applies the default page size of 20 and a ceiling of 100.
func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
