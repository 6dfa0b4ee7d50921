package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scrypster/resonance/internal/storage"
	"github.com/scrypster/resonance/pkg/types"
)

// ShadowDetector flags feelings whose emotion is difficult for the current
// trait code. It reads the latest snapshot and appends events; it never
// mutates the feeling or the snapshot.
type ShadowDetector struct {
	store storage.TraitStore
	now   func() time.Time
}

// NewShadowDetector creates a detector over store.
func NewShadowDetector(store storage.TraitStore) *ShadowDetector {
	return &ShadowDetector{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Check records and returns a shadow event when def lists the current trait
// code. It returns nil when there is no shadow list, no snapshot yet, or no match.
func (d *ShadowDetector) Check(ctx context.Context, feeling *types.Feeling, def *types.EmotionDefinition) (*types.ShadowEvent, error) {
	if feeling == nil || def == nil || len(def.ShadowFor) == 0 {
		return nil, nil
	}

	snap, err := d.store.LatestSnapshot(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !def.IsShadowFor(snap.Code) {
		return nil, nil
	}

	ev := &types.ShadowEvent{
		ID:           newID(shadowIDPrefix),
		FeelingID:    feeling.ID,
		EmotionLabel: def.Label,
		TraitCode:    snap.Code,
		Note:         fmt.Sprintf("%s expressed while the trait reads %s", def.Label, snap.Code),
		RecordedAt:   d.now(),
	}
	if err := d.store.AppendShadow(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Recent returns recent shadow events, newest first.
func (d *ShadowDetector) Recent(ctx context.Context, limit int) ([]*types.ShadowEvent, error) {
	return d.store.ListShadows(ctx, limit)
}
