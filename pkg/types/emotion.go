package types

import "time"

// AxisCount is the number of trait axes each emotion contributes to.
const AxisCount = 4

// Axes is a signed per-axis vector.
type Axes [AxisCount]int

// IsZero reports whether every axis is zero (an uncalibrated emotion).
func (a Axes) IsZero() bool {
	return a == Axes{}
}

// Add returns the element-wise sum of a and b.
func (a Axes) Add(b Axes) Axes {
	var out Axes
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

// EmotionDefinition is one lexicon entry. Entries are created on first use of a
// novel label with zero weights and are never deleted.
type EmotionDefinition struct {
	Label         string     `json:"label"`
	AxisWeights   Axes       `json:"axis_weights"`
	ShadowFor     []string   `json:"shadow_for,omitempty"` // Trait codes this emotion is difficult for
	TimesUsed     int        `json:"times_used"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	IsUserDefined bool       `json:"is_user_defined"`
	CreatedAt     time.Time  `json:"created_at"`
}

// IsShadowFor reports whether code appears in the emotion's shadow list.
func (e *EmotionDefinition) IsShadowFor(code string) bool {
	for _, c := range e.ShadowFor {
		if c == code {
			return true
		}
	}
	return false
}
