package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/scrypster/resonance/internal/storage"
	"github.com/scrypster/resonance/pkg/types"
)

// TraitAggregator turns the signal log into trait snapshots. Refresh is
// explicit; reads return the latest stored snapshot.
type TraitAggregator struct {
	store  storage.TraitStore
	window time.Duration
	now    func() time.Time
}

// NewTraitAggregator creates an aggregator. A zero window sums every signal.
func NewTraitAggregator(store storage.TraitStore, window time.Duration) *TraitAggregator {
	return &TraitAggregator{
		store:  store,
		window: window,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Emit appends a signal carrying a copy of def's axis weights.
func (a *TraitAggregator) Emit(ctx context.Context, feelingID string, def *types.EmotionDefinition) (*types.SignalEvent, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: emotion definition is required", storage.ErrInvalidInput)
	}
	sig := &types.SignalEvent{
		ID:        newID(signalIDPrefix),
		FeelingID: feelingID,
		Deltas:    def.AxisWeights,
		CreatedAt: a.now(),
	}
	if err := a.store.AppendSignal(ctx, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

// Refresh sums the signal log, derives the code and confidence, and stores
// the result as a new snapshot.
func (a *TraitAggregator) Refresh(ctx context.Context) (*types.TraitSnapshot, error) {
	var since time.Time
	if a.window > 0 {
		since = a.now().Add(-a.window)
	}

	sums, total, err := a.store.SumSignals(ctx, since)
	if err != nil {
		return nil, err
	}

	snap := &types.TraitSnapshot{
		ID:           newID(snapshotIDPrefix),
		AxisSums:     sums,
		Code:         types.TraitCode(sums),
		Confidence:   types.TraitConfidence(total),
		TotalSignals: total,
		CreatedAt:    a.now(),
	}
	if err := a.store.AppendSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Current returns the latest snapshot, or storage.ErrNotFound before the first refresh.
func (a *TraitAggregator) Current(ctx context.Context) (*types.TraitSnapshot, error) {
	return a.store.LatestSnapshot(ctx)
}

// History returns recent snapshots, newest first.
func (a *TraitAggregator) History(ctx context.Context, limit int) ([]*types.TraitSnapshot, error) {
	return a.store.ListSnapshots(ctx, limit)
}
