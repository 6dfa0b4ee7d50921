// Package lexicon manages the emotion lexicon: the built-in seed table,
// lazy creation of novel labels, usage tracking and operator calibration.
package lexicon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/scrypster/resonance/internal/storage"
	"github.com/scrypster/resonance/pkg/types"
)

// MaxAxisWeight bounds the magnitude of a calibrated axis weight.
const MaxAxisWeight = 5

// Lexicon wraps an EmotionStore with lexicon rules.
type Lexicon struct {
	store storage.EmotionStore
	now   func() time.Time
}

// New creates a Lexicon over store.
func New(store storage.EmotionStore) *Lexicon {
	return &Lexicon{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Seed inserts every built-in emotion whose label is absent. Existing entries,
// including calibrated ones, are left untouched.
func (l *Lexicon) Seed(ctx context.Context) (int, error) {
	inserted := 0
	for _, def := range DefaultEmotions() {
		if _, err := l.store.GetEmotion(ctx, def.Label); err == nil {
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return inserted, fmt.Errorf("lexicon: seed lookup %s: %w", def.Label, err)
		}

		d := def
		if _, err := l.store.EnsureEmotion(ctx, &d); err != nil {
			return inserted, fmt.Errorf("lexicon: seed %s: %w", def.Label, err)
		}
		inserted++
	}
	if inserted > 0 {
		log.Printf("lexicon: seeded %d emotions", inserted)
	}
	return inserted, nil
}

// Lookup returns the lexicon entry for label.
func (l *Lexicon) Lookup(ctx context.Context, label string) (*types.EmotionDefinition, error) {
	return l.store.GetEmotion(ctx, types.NormalizeLabel(label))
}

// Ensure returns the entry for label, creating an uncalibrated one with zero
// weights when the label is novel. The neutral label has no entry.
func (l *Lexicon) Ensure(ctx context.Context, label string) (*types.EmotionDefinition, bool, error) {
	label = types.NormalizeLabel(label)
	if label == "" || types.IsNeutral(label) {
		return nil, false, fmt.Errorf("%w: %q has no lexicon entry", storage.ErrInvalidInput, label)
	}

	def, err := l.store.GetEmotion(ctx, label)
	if err == nil {
		return def, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}

	def, err = l.store.EnsureEmotion(ctx, &types.EmotionDefinition{Label: label, CreatedAt: l.now()})
	if err != nil {
		return nil, false, err
	}
	log.Printf("lexicon: created uncalibrated emotion %q", label)
	return def, true, nil
}

// RecordUsage counts one use of label.
func (l *Lexicon) RecordUsage(ctx context.Context, label string) error {
	return l.store.RecordUsage(ctx, types.NormalizeLabel(label), l.now())
}

// Calibrate validates and stores operator-supplied weights for label.
func (l *Lexicon) Calibrate(ctx context.Context, label string, weights types.Axes, shadowFor []string) (*types.EmotionDefinition, error) {
	if err := ValidateCalibration(label, weights, shadowFor); err != nil {
		return nil, err
	}
	return l.store.Calibrate(ctx, types.NormalizeLabel(label), weights, shadowFor)
}

// List returns the whole lexicon.
func (l *Lexicon) List(ctx context.Context) ([]*types.EmotionDefinition, error) {
	return l.store.ListEmotions(ctx)
}

// ValidateCalibration checks a calibration before it is stored.
func ValidateCalibration(label string, weights types.Axes, shadowFor []string) error {
	label = types.NormalizeLabel(label)
	if label == "" {
		return fmt.Errorf("%w: label is required", storage.ErrInvalidInput)
	}
	if types.IsNeutral(label) {
		return fmt.Errorf("%w: %q cannot be calibrated", storage.ErrInvalidInput, label)
	}
	for i, w := range weights {
		if w < -MaxAxisWeight || w > MaxAxisWeight {
			return fmt.Errorf("%w: axis %d weight %d out of range [-%d, %d]",
				storage.ErrInvalidInput, i, w, MaxAxisWeight, MaxAxisWeight)
		}
	}
	for _, code := range shadowFor {
		if !types.ValidTraitCode(code) {
			return fmt.Errorf("%w: invalid trait code %q", storage.ErrInvalidInput, code)
		}
	}
	return nil
}
