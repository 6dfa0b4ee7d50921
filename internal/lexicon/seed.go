package lexicon

import "github.com/scrypster/resonance/pkg/types"

// Axis order is E/I, S/N, T/F, J/P; a positive weight leans toward the first
// letter of the pair.
var defaultEmotions = []types.EmotionDefinition{
	{Label: "anger", AxisWeights: types.Axes{1, 0, 1, 1}, ShadowFor: []string{"INFJ", "INFP", "ISFJ", "ISFP"}},
	{Label: "anxiety", AxisWeights: types.Axes{-1, 1, 0, 1}, ShadowFor: []string{"ESTP", "ESFP"}},
	{Label: "calm", AxisWeights: types.Axes{-1, 0, 0, 1}},
	{Label: "contentment", AxisWeights: types.Axes{-1, 1, 0, 1}},
	{Label: "curiosity", AxisWeights: types.Axes{0, -2, 1, -1}, ShadowFor: []string{"ISTJ", "ESTJ"}},
	{Label: "envy", AxisWeights: types.Axes{0, 0, -1, 0}, ShadowFor: []string{"ENFJ", "INFJ"}},
	{Label: "excitement", AxisWeights: types.Axes{2, -1, 0, -1}},
	{Label: "fear", AxisWeights: types.Axes{-1, 1, 0, 1}, ShadowFor: []string{"ENTJ", "ESTJ", "ESTP"}},
	{Label: "frustration", AxisWeights: types.Axes{1, 1, 1, 1}, ShadowFor: []string{"INFP"}},
	{Label: "gratitude", AxisWeights: types.Axes{0, 0, -2, 0}},
	{Label: "grief", AxisWeights: types.Axes{-2, 0, -2, 0}, ShadowFor: []string{"ESTJ", "ENTJ"}},
	{Label: "guilt", AxisWeights: types.Axes{-1, 0, -1, 1}, ShadowFor: []string{"ENTP", "ESTP"}},
	{Label: "hope", AxisWeights: types.Axes{0, -2, -1, -1}},
	{Label: "joy", AxisWeights: types.Axes{1, 0, -1, 0}},
	{Label: "loneliness", AxisWeights: types.Axes{-2, 0, -1, 0}, ShadowFor: []string{"ENFP", "ESFP", "ESFJ", "ENFJ"}},
	{Label: "love", AxisWeights: types.Axes{1, 0, -2, 0}, ShadowFor: []string{"INTJ", "ISTP"}},
	{Label: "overwhelm", AxisWeights: types.Axes{-1, 1, -1, -2}, ShadowFor: []string{"ISTJ", "ESTJ"}},
	{Label: "pride", AxisWeights: types.Axes{1, 1, 1, 1}, ShadowFor: []string{"INFP", "ISFP"}},
	{Label: "sadness", AxisWeights: types.Axes{-1, 0, -1, 0}, ShadowFor: []string{"ESTP", "ESFP", "ENTJ", "ESTJ"}},
	{Label: "shame", AxisWeights: types.Axes{-2, 0, -1, 0}, ShadowFor: []string{"ENTJ", "ENTP", "ESTP"}},
}

// DefaultEmotions returns a copy of the built-in lexicon.
func DefaultEmotions() []types.EmotionDefinition {
	out := make([]types.EmotionDefinition, len(defaultEmotions))
	for i, def := range defaultEmotions {
		def.ShadowFor = append([]string(nil), def.ShadowFor...)
		out[i] = def
	}
	return out
}
