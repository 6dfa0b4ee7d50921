package types

import (
	"math"
	"time"
)

// SignalsForFullConfidence is the signal count at which trait confidence reaches 100%.
const SignalsForFullConfidence = 50

// AxisLetters holds, per axis, the letter chosen for a non-negative sum and the
// letter chosen for a negative sum. The mapping is fixed.
var AxisLetters = [AxisCount][2]byte{
	{'E', 'I'},
	{'S', 'N'},
	{'T', 'F'},
	{'J', 'P'},
}

// SignalEvent is an append-only copy of an emotion's axis weights emitted when a
// feeling is recorded.
type SignalEvent struct {
	ID        string    `json:"id"`
	FeelingID string    `json:"feeling_id"`
	Deltas    Axes      `json:"deltas"`
	CreatedAt time.Time `json:"created_at"`
}

// TraitSnapshot is a point-in-time aggregation of every SignalEvent.
type TraitSnapshot struct {
	ID           string    `json:"id"`
	AxisSums     Axes      `json:"axis_sums"`
	Code         string    `json:"code"`
	Confidence   int       `json:"confidence"`
	TotalSignals int       `json:"total_signals"`
	CreatedAt    time.Time `json:"created_at"`
}

// ShadowEvent records that an emotion difficult for the current trait code was
// expressed anyway.
type ShadowEvent struct {
	ID           string    `json:"id"`
	FeelingID    string    `json:"feeling_id"`
	EmotionLabel string    `json:"emotion_label"`
	TraitCode    string    `json:"trait_code"`
	Note         string    `json:"note,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// TraitCode derives the four-letter code from cumulative axis sums.
// A sum of zero selects the first letter of the axis.
func TraitCode(sums Axes) string {
	code := make([]byte, AxisCount)
	for i, s := range sums {
		if s >= 0 {
			code[i] = AxisLetters[i][0]
		} else {
			code[i] = AxisLetters[i][1]
		}
	}
	return string(code)
}

// TraitConfidence returns min(100, round(total/50*100)). Negative totals yield 0.
func TraitConfidence(total int) int {
	if total <= 0 {
		return 0
	}
	c := int(math.Round(float64(total) / SignalsForFullConfidence * 100))
	if c > 100 {
		return 100
	}
	return c
}

// ValidTraitCode reports whether code is a four-letter code built from AxisLetters.
func ValidTraitCode(code string) bool {
	if len(code) != AxisCount {
		return false
	}
	for i := 0; i < AxisCount; i++ {
		if code[i] != AxisLetters[i][0] && code[i] != AxisLetters[i][1] {
			return false
		}
	}
	return true
}
