// Package storage provides composable storage interfaces for the Resonance
// emotional memory engine.
//
// The storage layer is split into small, focused interfaces so that the
// engine depends only on what it uses and backends can be mixed (for example
// SQLite for records and pgvector for the vector index).
//
// Every lifecycle mutation (decay, reinforce, sit, resolve) is expressed as a
// single store-side statement. Implementations must not read-modify-write
// strength or charge in application code, so concurrent decay and
// reinforcement on the same feeling cannot lose updates.
package storage

import (
	"context"
	"time"

	"github.com/scrypster/resonance/pkg/types"
)

// FeelingStore persists feelings and applies their lifecycle transitions.
type FeelingStore interface {
	// Insert stores a new feeling. Returns ErrInvalidInput when required
	// fields are missing.
	Insert(ctx context.Context, feeling *types.Feeling) error

	// Get retrieves a feeling by ID.
	// Returns ErrNotFound if the feeling doesn't exist.
	Get(ctx context.Context, id string) (*types.Feeling, error)

	// Exists reports whether a feeling with the given ID is stored.
	Exists(ctx context.Context, id string) (bool, error)

	// Decay multiplies the strength of every non-metabolized feeling by the
	// factor for its weight (floored at types.StrengthFloor), then cools any
	// fresh or warm feeling whose strength fell below factors.CoolBelow.
	Decay(ctx context.Context, factors DecayFactors) (DecayResult, error)

	// Reinforce atomically raises strength by delta (capped at
	// types.StrengthCeiling), increments access_count and stamps
	// last_accessed_at. Metabolized feelings keep their pinned strength.
	// Returns ErrNotFound if the feeling doesn't exist.
	Reinforce(ctx context.Context, id string, delta float64) error

	// Sit increments sit_count and advances charge (first sit warms, later
	// sits cool, never backwards). Returns the updated feeling.
	// Returns ErrNotFound if the feeling doesn't exist.
	Sit(ctx context.Context, id string) (*types.Feeling, error)

	// Resolve metabolizes a feeling, pinning its strength at the floor.
	// Returns ErrNotFound if the feeling doesn't exist and
	// ErrInvalidTransition if it is already metabolized.
	Resolve(ctx context.Context, id string, res Resolution) (*types.Feeling, error)

	// Lineage walks predecessor links starting at id, newest first.
	// Capped at 50 feelings to prevent infinite loops.
	Lineage(ctx context.Context, id string) ([]*types.Feeling, error)

	// Close releases any resources held by the store.
	Close() error
}

// SamplingStore provides the distribution queries and samplers used by
// diversity retrieval.
type SamplingStore interface {
	// LabelCounts returns label frequencies over the most recent window feelings.
	LabelCounts(ctx context.Context, window int) (map[string]int, error)

	// PillarCounts returns the number of categorized feelings per pillar.
	// Pillars with no feelings are present with a zero count.
	PillarCounts(ctx context.Context) (map[types.Pillar]int, error)

	// LeastAccessed returns up to opts.Limit feelings in opts.Pillar ordered by
	// access_count ascending with random tie-break.
	LeastAccessed(ctx context.Context, opts SampleOptions) ([]*types.Feeling, error)

	// SampleRandom returns up to opts.Limit feelings drawn uniformly at random.
	SampleRandom(ctx context.Context, opts SampleOptions) ([]*types.Feeling, error)
}

// EmotionStore is the persistent emotion lexicon.
type EmotionStore interface {
	// GetEmotion retrieves a lexicon entry by label.
	// Returns ErrNotFound if the label is unknown.
	GetEmotion(ctx context.Context, label string) (*types.EmotionDefinition, error)

	// EnsureEmotion inserts def if its label is absent and returns the stored
	// entry either way. Existing entries are never overwritten.
	EnsureEmotion(ctx context.Context, def *types.EmotionDefinition) (*types.EmotionDefinition, error)

	// RecordUsage increments times_used and stamps last_used_at.
	RecordUsage(ctx context.Context, label string, at time.Time) error

	// Calibrate overwrites the axis weights and shadow list of a label and
	// marks it user defined, creating the entry when absent.
	Calibrate(ctx context.Context, label string, weights types.Axes, shadowFor []string) (*types.EmotionDefinition, error)

	// ListEmotions returns the whole lexicon ordered by label.
	ListEmotions(ctx context.Context) ([]*types.EmotionDefinition, error)
}

// TraitStore holds the append-only signal log, trait snapshots and shadow events.
type TraitStore interface {
	// AppendSignal records a signal event. Signals are never mutated.
	AppendSignal(ctx context.Context, sig *types.SignalEvent) error

	// SumSignals returns per-axis sums and the number of signals created at or
	// after since. A zero since sums the whole log.
	SumSignals(ctx context.Context, since time.Time) (types.Axes, int, error)

	// AppendSnapshot records a trait snapshot.
	AppendSnapshot(ctx context.Context, snap *types.TraitSnapshot) error

	// LatestSnapshot returns the most recent snapshot.
	// Returns ErrNotFound if none has been computed yet.
	LatestSnapshot(ctx context.Context) (*types.TraitSnapshot, error)

	// ListSnapshots returns up to limit snapshots, newest first.
	ListSnapshots(ctx context.Context, limit int) ([]*types.TraitSnapshot, error)

	// AppendShadow records a shadow event.
	AppendShadow(ctx context.Context, ev *types.ShadowEvent) error

	// ListShadows returns up to limit shadow events, newest first.
	ListShadows(ctx context.Context, limit int) ([]*types.ShadowEvent, error)
}

// VectorIndex is the nearest-neighbour search service used for semantic echo.
type VectorIndex interface {
	// Upsert stores or replaces the vector for id.
	Upsert(ctx context.Context, id string, vector []float64, metadata map[string]string) error

	// Query returns up to topK matches ranked by descending score in [0, 1].
	// Every key in filter must equal the stored metadata value.
	Query(ctx context.Context, vector []float64, topK int, filter map[string]string) ([]VectorMatch, error)
}

// EntitySource returns the names of currently known entities.
type EntitySource interface {
	EntityNames(ctx context.Context) ([]string, error)
}

// EntityStore is an EntitySource that also accepts new names.
type EntityStore interface {
	EntitySource
	AddEntity(ctx context.Context, name string) error
}
