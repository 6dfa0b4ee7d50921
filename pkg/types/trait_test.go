package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scrypster/resonance/pkg/types"
)

func TestTraitConfidence(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{0, 0},
		{1, 2},
		{25, 50},
		{49, 98},
		{50, 100},
		{75, 100},
		{1000, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, types.TraitConfidence(tt.total), "total=%d", tt.total)
	}
}

func TestTraitCode_SignMappingIncludesZero(t *testing.T) {
	assert.Equal(t, "ENTJ", types.TraitCode(types.Axes{3, -1, 0, 7}))
	assert.Equal(t, "ESTJ", types.TraitCode(types.Axes{}))
	assert.Equal(t, "INFP", types.TraitCode(types.Axes{-1, -1, -1, -1}))
}

func TestTraitCode_IndependentOfMagnitude(t *testing.T) {
	assert.Equal(t, types.TraitCode(types.Axes{1, -1, 1, -1}), types.TraitCode(types.Axes{900, -2, 40, -7000}))
}

func TestAxes_AddAndIsZero(t *testing.T) {
	a := types.Axes{1, -2, 0, 3}
	assert.Equal(t, types.Axes{2, -4, 0, 6}, a.Add(a))
	assert.False(t, a.IsZero())
	assert.True(t, types.Axes{}.IsZero())
}

func TestClampStrength(t *testing.T) {
	assert.Equal(t, types.StrengthFloor, types.ClampStrength(0.01))
	assert.Equal(t, types.StrengthCeiling, types.ClampStrength(1.4))
	assert.Equal(t, 0.5, types.ClampStrength(0.5))
}

func TestIntensityRankOrdering(t *testing.T) {
	order := []types.Intensity{
		types.IntensityNone, types.IntensityWhisper, types.IntensityPresent,
		types.IntensityStrong, types.IntensityOverwhelming,
	}
	for i := 1; i < len(order); i++ {
		assert.Less(t, order[i-1].Rank(), order[i].Rank())
	}
	assert.Equal(t, -1, types.Intensity("loud").Rank())
	assert.True(t, types.Intensity("").IsValid())
}

func TestValidTraitCode(t *testing.T) {
	assert.True(t, types.ValidTraitCode("INFJ"))
	assert.True(t, types.ValidTraitCode("ESTP"))
	assert.False(t, types.ValidTraitCode("infj"))
	assert.False(t, types.ValidTraitCode("IXFJ"))
	assert.False(t, types.ValidTraitCode("ENF"))
}
