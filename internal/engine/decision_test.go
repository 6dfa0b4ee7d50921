package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/resonance/pkg/types"
)

func TestIsIndexWorthy(t *testing.T) {
	tests := []struct {
		name  string
		label string
		text  string
		want  bool
	}{
		{"any feeling", "joy", "ok", true},
		{"short fact", types.NeutralLabel, "bought milk", false},
		{"long fact", types.NeutralLabel, strings.Repeat("a", 51), true},
		{"fact at threshold", types.NeutralLabel, strings.Repeat("a", 50), false},
		{"importance marker", types.NeutralLabel, "Remember the code", true},
		{"decision marker", types.NeutralLabel, "I decided to quit", true},
		{"marker inside a word", types.NeutralLabel, "unimportantly", true},
		{"no marker", types.NeutralLabel, "bought bread", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsIndexWorthy(tt.label, tt.text))
		})
	}
}

func TestInferPillarByKeywords_PriorityOrder(t *testing.T) {
	p, ok := InferPillarByKeywords("After the argument I realized I was scared")
	require.True(t, ok)
	assert.Equal(t, types.PillarSelfAwareness, p)

	p, ok = InferPillarByKeywords("We had a conflict but I walked away")
	require.True(t, ok)
	assert.Equal(t, types.PillarSelfManagement, p)

	p, ok = InferPillarByKeywords("They seemed upset at dinner")
	require.True(t, ok)
	assert.Equal(t, types.PillarSocialAwareness, p)

	p, ok = InferPillarByKeywords("The team shipped it")
	require.True(t, ok)
	assert.Equal(t, types.PillarRelationshipManagement, p)

	_, ok = InferPillarByKeywords("rain on the window all afternoon")
	assert.False(t, ok)
}

func TestInferPillarByKeywords_MatchesInsideWords(t *testing.T) {
	p, ok := InferPillarByKeywords("my teammates and i had a disagreement")
	require.True(t, ok)
	assert.Equal(t, types.PillarRelationshipManagement, p)

	p, ok = InferPillarByKeywords("i am unaware of it")
	require.True(t, ok)
	assert.Equal(t, types.PillarSelfAwareness, p)

	p, ok = InferPillarByKeywords("My awareness grew")
	require.True(t, ok)
	assert.Equal(t, types.PillarSelfAwareness, p)
}

func TestInferWeight(t *testing.T) {
	tests := []struct {
		label     string
		intensity types.Intensity
		text      string
		want      types.Weight
	}{
		{"joy", types.IntensityOverwhelming, "x", types.WeightHeavy},
		{"joy", types.IntensityStrong, "x", types.WeightHeavy},
		{types.NeutralLabel, types.IntensityStrong, "x", types.WeightHeavy},
		{types.NeutralLabel, "", "my grandmother died", types.WeightLight},
		{"sadness", types.IntensityWhisper, "my grandmother died", types.WeightLight},
		{"sadness", types.IntensityNone, "x", types.WeightLight},
		{"sadness", types.IntensityPresent, "my grandmother died", types.WeightHeavy},
		{"sadness", "", "I lost my keys", types.WeightHeavy},
		{"joy", types.IntensityPresent, "nice lunch", types.WeightMedium},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InferWeight(tt.label, tt.intensity, tt.text), "%s/%s/%q", tt.label, tt.intensity, tt.text)
	}
}

func TestExtractTags(t *testing.T) {
	assert.Equal(t, []string{"relationships", "work"}, ExtractTags("My wife called during the meeting"))
	assert.Equal(t, []string{"body", "growth"}, ExtractTags("Tired but realizing I sleep better now"))
	assert.Empty(t, ExtractTags("nothing here"))
}

func TestDetectEntities(t *testing.T) {
	known := []string{"Sarah", "Dr. Patel", "Sam"}
	assert.Equal(t, []string{"Sarah", "Sam"}, DetectEntities("sam and SARAH argued", known))

	assert.Equal(t, []string{"mom", "therapist"}, DetectEntities("Told my therapist about Mom", nil))
	assert.Empty(t, DetectEntities("alone today", nil))
}

func TestDecide_NeutralFact(t *testing.T) {
	d := NewDecisionEngine(nil, 0.3)
	dec := d.Decide(context.Background(), DecisionInput{Label: "Neutral", Text: "Dentist on Tuesday"})

	assert.False(t, dec.ShouldIndex)
	assert.False(t, dec.ShouldEmitSignals)
	assert.False(t, dec.ShouldCheckShadow)
	assert.Equal(t, types.WeightLight, dec.Weight)
	assert.Empty(t, dec.Pillar)
}

func TestDecide_UsesPriorTurns(t *testing.T) {
	d := NewDecisionEngine(nil, 0.3)
	dec := d.Decide(context.Background(), DecisionInput{
		Label:      "frustration",
		Text:       "so yeah",
		PriorTurns: []string{"My boss moved the deadline again", "I took a break before replying"},
	})

	assert.True(t, dec.ShouldIndex)
	assert.Equal(t, types.PillarSelfManagement, dec.Pillar)
	assert.Equal(t, PillarSourceKeyword, dec.PillarSource)
	assert.Contains(t, dec.Tags, "work")
}

func TestDecide_EmbeddingFallback(t *testing.T) {
	emb := newScriptedEmbedder()
	emb.set(pillarDescriptions[types.PillarSelfAwareness], []float64{1, 0, 0, 0})
	emb.set(pillarDescriptions[types.PillarSelfManagement], []float64{0, 1, 0, 0})
	emb.set(pillarDescriptions[types.PillarSocialAwareness], []float64{0, 0, 1, 0})
	emb.set(pillarDescriptions[types.PillarRelationshipManagement], []float64{0, 0, 0, 1})

	text := "everyone at dinner went quiet when I spoke"
	emb.set("sadness: "+text, []float64{0.1, 0, 0.9, 0.2})

	d := NewDecisionEngine(NewPillarCache(emb), 0.3)
	dec := d.Decide(context.Background(), DecisionInput{Label: "sadness", Text: text})

	assert.Equal(t, types.PillarSocialAwareness, dec.Pillar)
	assert.Equal(t, PillarSourceEmbedding, dec.PillarSource)
	assert.Greater(t, dec.PillarScore, 0.3)
	assert.Empty(t, dec.Warnings)
}

func TestDecide_EmbeddingBelowThreshold(t *testing.T) {
	emb := newScriptedEmbedder()
	for i, p := range types.Pillars {
		v := make([]float64, 5)
		v[i] = 1
		emb.set(pillarDescriptions[p], v)
	}
	text := "something happened that I cannot place"
	emb.set("wistful: "+text, []float64{0, 0, 0, 0, 1})

	d := NewDecisionEngine(NewPillarCache(emb), 0.3)
	dec := d.Decide(context.Background(), DecisionInput{Label: "wistful", Text: text})
	assert.Empty(t, dec.Pillar)
}

func TestDecide_EmbeddingFailureIsBestEffort(t *testing.T) {
	emb := newScriptedEmbedder()
	emb.fail(errors.New("provider down"))

	d := NewDecisionEngine(NewPillarCache(emb), 0.3)
	dec := d.Decide(context.Background(), DecisionInput{Label: "joy", Text: "a long enough sentence without any marker"})

	assert.Empty(t, dec.Pillar)
	require.Len(t, dec.Warnings, 1)
	assert.Contains(t, dec.Warnings[0], "provider down")
	assert.True(t, dec.ShouldEmitSignals)
}

func TestDecide_ShortTextSkipsFallback(t *testing.T) {
	emb := newScriptedEmbedder()
	d := NewDecisionEngine(NewPillarCache(emb), 0.3)
	dec := d.Decide(context.Background(), DecisionInput{Label: "joy", Text: "sunny day"})

	assert.Empty(t, dec.Pillar)
	assert.Zero(t, emb.calls())
}
