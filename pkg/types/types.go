// Package types defines the core data structures for the Resonance emotional
// memory engine: feelings, the emotion lexicon, trait signals and snapshots,
// and shadow events.
package types

import "strings"

// NeutralLabel is the sentinel emotion label meaning "fact, not feeling".
const NeutralLabel = "neutral"

// Intensity is how strongly a feeling was expressed. Values are ordered.
type Intensity string

// Intensity constants, weakest first.
const (
	IntensityNone         Intensity = "none"
	IntensityWhisper      Intensity = "whisper"
	IntensityPresent      Intensity = "present"
	IntensityStrong       Intensity = "strong"
	IntensityOverwhelming Intensity = "overwhelming"
)

var intensityRank = map[Intensity]int{
	IntensityNone:         0,
	IntensityWhisper:      1,
	IntensityPresent:      2,
	IntensityStrong:       3,
	IntensityOverwhelming: 4,
}

// Rank returns the ordinal position of the intensity, or -1 when unknown.
func (i Intensity) Rank() int {
	if r, ok := intensityRank[i]; ok {
		return r
	}
	return -1
}

// IsValid reports whether i is a known intensity. Empty is valid (not supplied).
func (i Intensity) IsValid() bool {
	return i == "" || i.Rank() >= 0
}

// Weight is the emotional heft of a feeling. It selects the decay factor.
type Weight string

// Weight constants.
const (
	WeightLight  Weight = "light"
	WeightMedium Weight = "medium"
	WeightHeavy  Weight = "heavy"
)

// IsValid reports whether w is a known weight. Empty is valid (not supplied).
func (w Weight) IsValid() bool {
	switch w {
	case "", WeightLight, WeightMedium, WeightHeavy:
		return true
	}
	return false
}

// Pillar is one of the four emotional-intelligence categories.
type Pillar string

// Pillar constants in classification priority order.
const (
	PillarSelfAwareness          Pillar = "SELF_AWARENESS"
	PillarSelfManagement         Pillar = "SELF_MANAGEMENT"
	PillarSocialAwareness        Pillar = "SOCIAL_AWARENESS"
	PillarRelationshipManagement Pillar = "RELATIONSHIP_MANAGEMENT"
)

// Pillars lists every pillar in classification priority order.
var Pillars = []Pillar{
	PillarSelfAwareness,
	PillarSelfManagement,
	PillarSocialAwareness,
	PillarRelationshipManagement,
}

// IsValid reports whether p is a known pillar. Empty is valid (uncategorized).
func (p Pillar) IsValid() bool {
	if p == "" {
		return true
	}
	for _, known := range Pillars {
		if p == known {
			return true
		}
	}
	return false
}

// Scope restricts random sampling to feelings, facts, or both.
type Scope string

// Scope constants.
const (
	ScopeAll      Scope = "all"
	ScopeFeelings Scope = "feelings"
	ScopeFacts    Scope = "facts"
)

// IsValid reports whether s is a known scope. Empty means ScopeAll.
func (s Scope) IsValid() bool {
	switch s {
	case "", ScopeAll, ScopeFeelings, ScopeFacts:
		return true
	}
	return false
}

// NormalizeLabel lower-cases and trims an emotion label.
func NormalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// IsNeutral reports whether label is the neutral sentinel.
func IsNeutral(label string) bool {
	return NormalizeLabel(label) == NeutralLabel
}
