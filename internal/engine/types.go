// Package engine is the Resonance emotional memory core. It classifies
// incoming feelings, stores them, reinforces semantically similar ones,
// emits trait signals, detects shadow moments and serves diversity-aware
// retrieval.
package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/resonance/internal/storage"
	"github.com/scrypster/resonance/pkg/types"
)

// Config holds the tunable constants of the engine.
type Config struct {
	// InitialStrength is the strength of a newly stored feeling (default: 0.5).
	InitialStrength float64

	// EchoThreshold is the similarity a neighbour must exceed to be echoed (default: 0.7).
	EchoThreshold float64

	// EchoBoost is the strength added to each echoed feeling (default: 0.15).
	EchoBoost float64

	// EchoTopK is the number of neighbours examined per indexed feeling (default: 5).
	EchoTopK int

	// TouchBoost is the strength added to each feeling returned by Spark (default: 0.05).
	TouchBoost float64

	// PillarThreshold is the minimum similarity for embedding pillar inference (default: 0.3).
	PillarThreshold float64

	// EntropyWindow is the number of recent feelings used for label entropy (default: 50).
	EntropyWindow int

	// TraitWindow limits trait aggregation to recent signals. Zero sums every
	// signal ever recorded (default: 0).
	TraitWindow time.Duration

	// Decay holds the per-cycle decay factors.
	Decay storage.DecayFactors
}

// DefaultConfig returns a Config with the standard constants.
func DefaultConfig() Config {
	return Config{
		InitialStrength: 0.5,
		EchoThreshold:   0.7,
		EchoBoost:       0.15,
		EchoTopK:        5,
		TouchBoost:      0.05,
		PillarThreshold: 0.3,
		EntropyWindow:   50,
		TraitWindow:     0,
		Decay:           storage.DefaultDecayFactors(),
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.InitialStrength < types.StrengthFloor || c.InitialStrength > types.StrengthCeiling {
		return fmt.Errorf("InitialStrength must be in [%v, %v], got %v", types.StrengthFloor, types.StrengthCeiling, c.InitialStrength)
	}
	if c.EchoThreshold < 0 || c.EchoThreshold > 1 {
		return fmt.Errorf("EchoThreshold must be in [0, 1], got %v", c.EchoThreshold)
	}
	if c.EchoBoost < 0 || c.TouchBoost < 0 {
		return fmt.Errorf("boosts must be >= 0, got echo=%v touch=%v", c.EchoBoost, c.TouchBoost)
	}
	if c.EchoTopK < 1 {
		return fmt.Errorf("EchoTopK must be >= 1, got %d", c.EchoTopK)
	}
	if c.PillarThreshold < 0 || c.PillarThreshold > 1 {
		return fmt.Errorf("PillarThreshold must be in [0, 1], got %v", c.PillarThreshold)
	}
	if c.EntropyWindow < 1 {
		return fmt.Errorf("EntropyWindow must be >= 1, got %d", c.EntropyWindow)
	}
	if c.TraitWindow < 0 {
		return fmt.Errorf("TraitWindow must be >= 0, got %v", c.TraitWindow)
	}
	if err := c.Decay.Validate(); err != nil {
		return err
	}
	return nil
}

// Outcome summarises how an ingest finished.
type Outcome string

const (
	// OutcomeStored means every step succeeded.
	OutcomeStored Outcome = "stored"

	// OutcomeStoredWithWarnings means the feeling was committed but a
	// best-effort step (indexing, echo, signal, shadow) failed.
	OutcomeStoredWithWarnings Outcome = "stored_with_warnings"
)

// IngestRequest is one feeling to record.
type IngestRequest struct {
	Text      string          `json:"text"`
	Label     string          `json:"label"`
	Intensity types.Intensity `json:"intensity,omitempty"`

	// PriorTurns is optional preceding conversation used as extra context.
	PriorTurns []string `json:"prior_turns,omitempty"`

	// Entities overrides the known entity list for this request.
	Entities []string `json:"entities,omitempty"`

	// PredecessorID links the feeling to what triggered it.
	PredecessorID string `json:"predecessor_id,omitempty"`

	// Pillar and Weight override the inferred values when set.
	Pillar types.Pillar `json:"pillar,omitempty"`
	Weight types.Weight `json:"weight,omitempty"`

	// Tags are merged with the extracted tags.
	Tags []string `json:"tags,omitempty"`
}

// Echo is a past feeling reinforced by semantic similarity.
type Echo struct {
	FeelingID string  `json:"feeling_id"`
	Score     float64 `json:"score"`
}

// IngestResult reports everything an ingest did.
type IngestResult struct {
	Feeling  *types.Feeling     `json:"feeling"`
	Decision Decision           `json:"decision"`
	Echoes   []Echo             `json:"echoes,omitempty"`
	Signal   *types.SignalEvent `json:"signal,omitempty"`
	Shadow   *types.ShadowEvent `json:"shadow,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
	Outcome  Outcome            `json:"outcome"`
}

// Pick sources in a spark result.
const (
	PickDeliberate = "deliberate"
	PickRandom     = "random"
)

// SparkRequest asks for a diversity sample.
type SparkRequest struct {
	Count  int          `json:"count"`
	Weight types.Weight `json:"weight,omitempty"`
	Scope  types.Scope  `json:"scope,omitempty"`
}

// SparkPick is one sampled feeling and why it was chosen.
type SparkPick struct {
	Feeling *types.Feeling `json:"feeling"`
	Source  string         `json:"source"`
}

// SparkStats describes the current distribution of feelings.
type SparkStats struct {
	Entropy      float64              `json:"entropy"`
	LabelCounts  map[string]int       `json:"label_counts"`
	PillarCounts map[types.Pillar]int `json:"pillar_counts"`

	// TargetPillar is the least represented pillar with at least one feeling.
	TargetPillar types.Pillar `json:"target_pillar,omitempty"`
}

// SparkResult is a blended sample plus the distribution it was drawn from.
type SparkResult struct {
	SparkStats
	Picks    []SparkPick `json:"picks"`
	Warnings []string    `json:"warnings,omitempty"`
}

// ID prefixes.
const (
	feelingIDPrefix  = "feel:"
	signalIDPrefix   = "sig:"
	snapshotIDPrefix = "trait:"
	shadowIDPrefix   = "shadow:"
)

func newID(prefix string) string {
	return prefix + uuid.New().String()
}
