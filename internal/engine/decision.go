package engine

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/scrypster/resonance/pkg/types"
)

// Length thresholds, in characters, used by the decision rules.
const (
	indexLengthThreshold      = 50
	importanceLengthThreshold = 200
	pillarFallbackMinLength   = 20
)

// Pillar sources reported in a Decision.
const (
	PillarSourceKeyword   = "keyword"
	PillarSourceEmbedding = "embedding"
	PillarSourceOverride  = "override"
)

// markerSet reports whether text contains any of its phrases. Matching is a
// case-insensitive substring test, so "team" also matches "teammates".
type markerSet []string

func newMarkerSet(phrases ...string) markerSet {
	m := make(markerSet, len(phrases))
	for i, p := range phrases {
		m[i] = strings.ToLower(p)
	}
	return m
}

func (m markerSet) match(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range m {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

var (
	importanceMarkers = newMarkerSet(
		"important", "remember", "never forget", "milestone", "breakthrough", "first time",
	)

	decisionMarkers = newMarkerSet(
		"i decided", "i will", "i'm going to", "from now on", "i promise", "commit to",
	)

	significantEventMarkers = newMarkerSet(
		"died", "death", "funeral", "divorce", "breakup", "fired",
		"diagnosed", "hospital", "born", "wedding", "accident", "lost my",
	)

	// Checked in types.Pillars priority order; first match wins.
	pillarMarkers = map[types.Pillar]markerSet{
		types.PillarSelfAwareness: newMarkerSet(
			"i realized", "i noticed", "i feel like", "self-reflection", "i recognize", "aware", "my pattern",
		),
		types.PillarSelfManagement: newMarkerSet(
			"calm down", "held back", "breathe", "took a break", "walked away", "stayed focused",
			"controlled", "impulse", "discipline",
		),
		types.PillarSocialAwareness: newMarkerSet(
			"they seemed", "noticed that he", "noticed that she", "empathy", "read the room",
			"understand how", "perspective",
		),
		types.PillarRelationshipManagement: newMarkerSet(
			"conflict", "apologized", "resolved", "conversation with", "argument", "reconnect",
			"boundary", "team",
		),
	}

	tagPatterns = []struct {
		tag string
		re  *regexp.Regexp
	}{
		{"relationships", regexp.MustCompile(`(?i)\b(?:mom|dad|partner|friends?|wife|husband|brother|sister|family)\b`)},
		{"work", regexp.MustCompile(`(?i)\b(?:work|job|boss|meeting|project|deadline|office)\b`)},
		{"body", regexp.MustCompile(`(?i)\b(?:sleep|tired|sick|pain|doctor|exercise|workout)\b`)},
		{"growth", regexp.MustCompile(`(?i)\b(?:learn|learned|growth|progress|realiz\w*|better)\b`)},
	}

	fallbackEntities = []string{"mom", "dad", "partner", "therapist"}
)

// DecisionInput is what the decision engine classifies.
type DecisionInput struct {
	Label         string
	Text          string
	Intensity     types.Intensity
	PriorTurns    []string
	KnownEntities []string
}

// Decision tells the rest of the pipeline how to process a feeling.
type Decision struct {
	ShouldIndex       bool         `json:"should_index"`
	ShouldEmitSignals bool         `json:"should_emit_signals"`
	ShouldCheckShadow bool         `json:"should_check_shadow"`
	Pillar            types.Pillar `json:"pillar,omitempty"`
	PillarSource      string       `json:"pillar_source,omitempty"`
	PillarScore       float64      `json:"pillar_score,omitempty"`
	Weight            types.Weight `json:"weight"`
	Tags              []string     `json:"tags,omitempty"`
	Entities          []string     `json:"entities,omitempty"`

	// Warnings lists non-fatal problems, such as a failed embedding fallback.
	Warnings []string `json:"warnings,omitempty"`
}

// DecisionEngine classifies feelings. It has no side effects beyond the
// embedding calls made by its pillar cache.
type DecisionEngine struct {
	pillars   *PillarCache
	threshold float64
}

// NewDecisionEngine creates a decision engine. pillars may be nil, in which
// case pillar inference is keyword-only.
func NewDecisionEngine(pillars *PillarCache, threshold float64) *DecisionEngine {
	return &DecisionEngine{pillars: pillars, threshold: threshold}
}

// Decide classifies in.
func (d *DecisionEngine) Decide(ctx context.Context, in DecisionInput) Decision {
	text := combinedText(in.PriorTurns, in.Text)
	label := types.NormalizeLabel(in.Label)
	neutral := types.IsNeutral(label)

	dec := Decision{
		ShouldIndex:       IsIndexWorthy(label, text),
		ShouldEmitSignals: !neutral,
		ShouldCheckShadow: !neutral,
		Weight:            InferWeight(label, in.Intensity, text),
		Tags:              ExtractTags(text),
		Entities:          DetectEntities(text, in.KnownEntities),
	}

	if p, ok := InferPillarByKeywords(text); ok {
		dec.Pillar = p
		dec.PillarSource = PillarSourceKeyword
		return dec
	}

	if neutral || utf8.RuneCountInString(text) <= pillarFallbackMinLength || d.pillars == nil {
		return dec
	}

	p, score, err := d.pillars.Classify(ctx, label+": "+text, d.threshold)
	if err != nil {
		log.Printf("engine: pillar embedding fallback failed: %v", err)
		dec.Warnings = append(dec.Warnings, fmt.Sprintf("pillar inference skipped: %v", err))
		return dec
	}
	if p != "" {
		dec.Pillar = p
		dec.PillarSource = PillarSourceEmbedding
		dec.PillarScore = score
	}
	return dec
}

// combinedText joins prior turns and the current text.
func combinedText(prior []string, text string) string {
	if len(prior) == 0 {
		return text
	}
	parts := make([]string, 0, len(prior)+1)
	parts = append(parts, prior...)
	parts = append(parts, text)
	return strings.Join(parts, "\n")
}

// IsIndexWorthy reports whether a feeling should be embedded and indexed.
func IsIndexWorthy(label, text string) bool {
	if !types.IsNeutral(label) {
		return true
	}
	return utf8.RuneCountInString(text) > indexLengthThreshold || IsImportant(text)
}

// IsImportant applies the importance heuristic.
func IsImportant(text string) bool {
	return importanceMarkers.match(text) ||
		utf8.RuneCountInString(text) > importanceLengthThreshold ||
		decisionMarkers.match(text)
}

// InferPillarByKeywords returns the first pillar whose markers appear in text.
func InferPillarByKeywords(text string) (types.Pillar, bool) {
	for _, p := range types.Pillars {
		if pillarMarkers[p].match(text) {
			return p, true
		}
	}
	return "", false
}

// InferWeight derives the weight from intensity, label and significant-event markers.
func InferWeight(label string, intensity types.Intensity, text string) types.Weight {
	switch {
	case intensity == types.IntensityOverwhelming || intensity == types.IntensityStrong:
		return types.WeightHeavy
	case types.IsNeutral(label) || intensity == types.IntensityWhisper || intensity == types.IntensityNone:
		return types.WeightLight
	case significantEventMarkers.match(text):
		return types.WeightHeavy
	default:
		return types.WeightMedium
	}
}

// ExtractTags returns every tag category whose pattern matches text.
func ExtractTags(text string) []string {
	var tags []string
	for _, tp := range tagPatterns {
		if tp.re.MatchString(text) {
			tags = append(tags, tp.tag)
		}
	}
	return tags
}

// DetectEntities returns the names found in text by case-insensitive substring
// match, in the order of names. An empty names list uses a small fallback set.
func DetectEntities(text string, names []string) []string {
	if len(names) == 0 {
		names = fallbackEntities
	}
	lower := strings.ToLower(text)

	var found []string
	seen := make(map[string]bool)
	for _, name := range names {
		n := strings.ToLower(strings.TrimSpace(name))
		if n == "" || seen[n] {
			continue
		}
		if strings.Contains(lower, n) {
			seen[n] = true
			found = append(found, name)
		}
	}
	return found
}
