package types

import "time"

// Strength bounds. Strength is always clamped to [StrengthFloor, StrengthCeiling].
const (
	StrengthFloor   = 0.05
	StrengthCeiling = 1.0
)

// Feeling is a single stored record: a subjective note (or a neutral fact)
// with a decaying strength and a charge state.
type Feeling struct {
	// Core identification fields
	ID    string `json:"id"`    // Unique identifier (format: feel:<uuid>)
	Text  string `json:"text"`  // Raw free text
	Label string `json:"label"` // Emotion label; NeutralLabel marks a fact

	// Classification
	Intensity Intensity `json:"intensity,omitempty"` // How strongly it was expressed
	Pillar    Pillar    `json:"pillar,omitempty"`    // Emotional-intelligence category (may be unset)
	Weight    Weight    `json:"weight"`              // Selects the decay factor
	Tags      []string  `json:"tags,omitempty"`      // Free-form tags

	// Lifecycle
	Charge      Charge  `json:"charge"`       // fresh -> warm -> cool -> metabolized
	Strength    float64 `json:"strength"`     // Retrieval salience in [0.05, 1.0]
	SitCount    int     `json:"sit_count"`    // Explicit user engagements
	AccessCount int     `json:"access_count"` // Reinforcement touches

	// Links
	PredecessorID  string `json:"predecessor_id,omitempty"`  // What triggered this feeling
	ResolutionID   string `json:"resolution_id,omitempty"`   // What resolved it
	ResolutionNote string `json:"resolution_note,omitempty"` // How it was resolved
	Entity         string `json:"entity,omitempty"`          // Known entity it references

	// Timestamps
	CreatedAt      time.Time  `json:"created_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// IsFeeling reports whether the record carries an emotion rather than a fact.
func (f *Feeling) IsFeeling() bool {
	return !IsNeutral(f.Label)
}

// IsMetabolized reports whether the feeling has reached its terminal charge.
func (f *Feeling) IsMetabolized() bool {
	return f.Charge == ChargeMetabolized
}

// ClampStrength bounds s to [StrengthFloor, StrengthCeiling].
func ClampStrength(s float64) float64 {
	if s < StrengthFloor {
		return StrengthFloor
	}
	if s > StrengthCeiling {
		return StrengthCeiling
	}
	return s
}
