package storage

import (
	"errors"

	"github.com/scrypster/resonance/pkg/types"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition indicates a charge transition the state machine forbids.
	ErrInvalidTransition = errors.New("invalid charge transition")
)

// MaxLineage caps predecessor walks.
const MaxLineage = 50

// DecayFactors configures one decay cycle.
type DecayFactors struct {
	Heavy  float64
	Medium float64
	Light  float64

	// CoolBelow is the strength under which fresh or warm feelings cool.
	CoolBelow float64
}

// DefaultDecayFactors returns the standard per-cycle multipliers.
func DefaultDecayFactors() DecayFactors {
	return DecayFactors{
		Heavy:     0.98,
		Medium:    0.95,
		Light:     0.90,
		CoolBelow: 0.15,
	}
}

// Validate checks that every factor is a proper fraction.
func (f DecayFactors) Validate() error {
	for _, v := range []float64{f.Heavy, f.Medium, f.Light} {
		if v <= 0 || v > 1 {
			return errors.New("decay factors must be in (0, 1]")
		}
	}
	if f.CoolBelow < 0 || f.CoolBelow > 1 {
		return errors.New("cool threshold must be in [0, 1]")
	}
	return nil
}

// DecayResult reports what one decay cycle changed.
type DecayResult struct {
	// Decayed is the number of feelings whose strength was multiplied.
	Decayed int `json:"decayed"`

	// Cooled is the number of feelings moved to the cool charge.
	Cooled int `json:"cooled"`
}

// Resolution carries the data recorded when a feeling is metabolized.
type Resolution struct {
	// ResolutionID optionally references the feeling that resolved this one.
	ResolutionID string

	// Note describes how the feeling was resolved.
	Note string
}

// SampleOptions filters the spark samplers.
type SampleOptions struct {
	// Pillar restricts LeastAccessed to one category. Ignored by SampleRandom.
	Pillar types.Pillar

	// Weight restricts results to one weight class. Empty means any.
	Weight types.Weight

	// Scope restricts SampleRandom to feelings or facts. Empty means all.
	Scope types.Scope

	// Exclude lists feeling IDs that must not be returned.
	Exclude []string

	// Limit is the maximum number of feelings to return.
	Limit int
}

// Normalize applies defaults.
func (o *SampleOptions) Normalize() {
	if o.Limit < 0 {
		o.Limit = 0
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	if o.Scope == "" {
		o.Scope = types.ScopeAll
	}
}

// VectorMatch is one nearest-neighbour hit.
type VectorMatch struct {
	ID       string
	Score    float64
	Metadata map[string]string
}
