package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/scrypster/resonance/internal/storage"
	"github.com/scrypster/resonance/pkg/types"
)

// LabelCounts returns label frequencies over the most recent window feelings.
func (s *Store) LabelCounts(ctx context.Context, window int) (map[string]int, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: window must be positive", storage.ErrInvalidInput)
	}

	query := `
		SELECT label, COUNT(*)
		FROM (
			SELECT label FROM feelings
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		)
		GROUP BY label`

	rows, err := s.db.QueryContext(ctx, query, window)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to count labels: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan label count: %w", err)
		}
		counts[label] = n
	}
	return counts, rows.Err()
}

// PillarCounts returns the number of categorized feelings per pillar.
func (s *Store) PillarCounts(ctx context.Context) (map[types.Pillar]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pillar, COUNT(*)
		FROM feelings
		WHERE pillar IS NOT NULL AND pillar != ''
		GROUP BY pillar`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to count pillars: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.Pillar]int, len(types.Pillars))
	for _, p := range types.Pillars {
		counts[p] = 0
	}
	for rows.Next() {
		var pillar string
		var n int
		if err := rows.Scan(&pillar, &n); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan pillar count: %w", err)
		}
		counts[types.Pillar(pillar)] = n
	}
	return counts, rows.Err()
}

// LeastAccessed returns the least visited feelings in opts.Pillar.
func (s *Store) LeastAccessed(ctx context.Context, opts storage.SampleOptions) ([]*types.Feeling, error) {
	opts.Normalize()
	if opts.Pillar == "" {
		return nil, fmt.Errorf("%w: pillar is required", storage.ErrInvalidInput)
	}
	if opts.Limit == 0 {
		return nil, nil
	}

	conds := []string{"pillar = ?"}
	args := []any{string(opts.Pillar)}
	conds, args = appendSampleFilters(conds, args, opts, false)

	query := `SELECT ` + feelingColumns + ` FROM feelings WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY access_count ASC, RANDOM() LIMIT ?`
	args = append(args, opts.Limit)

	return s.queryFeelings(ctx, query, args...)
}

// SampleRandom returns feelings drawn uniformly at random.
func (s *Store) SampleRandom(ctx context.Context, opts storage.SampleOptions) ([]*types.Feeling, error) {
	opts.Normalize()
	if opts.Limit == 0 {
		return nil, nil
	}

	conds := []string{"1 = 1"}
	var args []any
	conds, args = appendSampleFilters(conds, args, opts, true)

	query := `SELECT ` + feelingColumns + ` FROM feelings WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY RANDOM() LIMIT ?`
	args = append(args, opts.Limit)

	return s.queryFeelings(ctx, query, args...)
}

func appendSampleFilters(conds []string, args []any, opts storage.SampleOptions, withScope bool) ([]string, []any) {
	if opts.Weight != "" {
		conds = append(conds, "weight = ?")
		args = append(args, string(opts.Weight))
	}
	if withScope {
		switch opts.Scope {
		case types.ScopeFeelings:
			conds = append(conds, "label != ?")
			args = append(args, types.NeutralLabel)
		case types.ScopeFacts:
			conds = append(conds, "label = ?")
			args = append(args, types.NeutralLabel)
		}
	}
	if len(opts.Exclude) > 0 {
		conds = append(conds, "id NOT IN ("+buildInClause(len(opts.Exclude))+")")
		for _, id := range opts.Exclude {
			args = append(args, id)
		}
	}
	return conds, args
}

func (s *Store) queryFeelings(ctx context.Context, query string, args ...any) ([]*types.Feeling, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query feelings: %w", err)
	}
	defer rows.Close()

	out, err := scanFeelings(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to scan feelings: %w", err)
	}
	return out, nil
}
