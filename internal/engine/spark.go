package engine

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/scrypster/resonance/internal/storage"
	"github.com/scrypster/resonance/pkg/types"
)

// Spark count bounds.
const (
	DefaultSparkCount = 3
	MaxSparkCount     = 20
)

// ShannonEntropy returns the entropy, in bits, of a frequency distribution.
// Empty or single-valued distributions have zero entropy.
func ShannonEntropy(counts map[string]int) float64 {
	total := 0
	for _, n := range counts {
		if n > 0 {
			total += n
		}
	}
	if total == 0 {
		return 0
	}

	h := 0.0
	for _, n := range counts {
		if n <= 0 {
			continue
		}
		p := float64(n) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

// LeastRepresentedPillar returns the pillar with the fewest feelings among
// pillars that have at least one. Ties go to the earlier pillar in
// types.Pillars. It returns false when no pillar has any feelings.
func LeastRepresentedPillar(counts map[types.Pillar]int) (types.Pillar, bool) {
	var best types.Pillar
	bestCount := 0
	for _, p := range types.Pillars {
		n := counts[p]
		if n <= 0 {
			continue
		}
		if best == "" || n < bestCount {
			best, bestCount = p, n
		}
	}
	return best, best != ""
}

// SplitSparkCount divides n into deliberate and random picks: ceil(n/2)
// deliberate, the rest random.
func SplitSparkCount(n int) (deliberate, random int) {
	deliberate = (n + 1) / 2
	return deliberate, n - deliberate
}

// Stats computes the current label entropy and pillar distribution without
// touching any feeling.
func (e *Engine) Stats(ctx context.Context) (*SparkStats, error) {
	labels, err := e.sampling.LabelCounts(ctx, e.config.EntropyWindow)
	if err != nil {
		return nil, fmt.Errorf("label counts: %w", err)
	}
	pillars, err := e.sampling.PillarCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("pillar counts: %w", err)
	}

	stats := &SparkStats{
		Entropy:      ShannonEntropy(labels),
		LabelCounts:  labels,
		PillarCounts: pillars,
	}
	if p, ok := LeastRepresentedPillar(pillars); ok {
		stats.TargetPillar = p
	}
	return stats, nil
}

// Spark returns a blended sample: half drawn from the least represented
// pillar in ascending access order, the rest uniformly at random. Every
// returned feeling receives the touch reinforcement.
func (e *Engine) Spark(ctx context.Context, req SparkRequest) (*SparkResult, error) {
	if req.Count <= 0 {
		req.Count = DefaultSparkCount
	}
	if req.Count > MaxSparkCount {
		req.Count = MaxSparkCount
	}
	if !req.Weight.IsValid() {
		return nil, fmt.Errorf("%w: unknown weight %q", storage.ErrInvalidInput, req.Weight)
	}
	if !req.Scope.IsValid() {
		return nil, fmt.Errorf("%w: unknown scope %q", storage.ErrInvalidInput, req.Scope)
	}

	stats, err := e.Stats(ctx)
	if err != nil {
		return nil, err
	}
	result := &SparkResult{SparkStats: *stats}

	wantDeliberate, _ := SplitSparkCount(req.Count)

	var deliberate []*types.Feeling
	if stats.TargetPillar != "" {
		deliberate, err = e.sampling.LeastAccessed(ctx, storage.SampleOptions{
			Pillar: stats.TargetPillar,
			Weight: req.Weight,
			Limit:  wantDeliberate,
		})
		if err != nil {
			return nil, fmt.Errorf("deliberate sample: %w", err)
		}
	}

	exclude := make([]string, len(deliberate))
	for i, f := range deliberate {
		exclude[i] = f.ID
	}

	random, err := e.sampling.SampleRandom(ctx, storage.SampleOptions{
		Weight:  req.Weight,
		Scope:   req.Scope,
		Exclude: exclude,
		Limit:   req.Count - len(deliberate),
	})
	if err != nil {
		return nil, fmt.Errorf("random sample: %w", err)
	}

	for _, f := range deliberate {
		result.Picks = append(result.Picks, SparkPick{Feeling: f, Source: PickDeliberate})
	}
	for _, f := range random {
		result.Picks = append(result.Picks, SparkPick{Feeling: f, Source: PickRandom})
	}

	for _, pick := range result.Picks {
		if err := e.feelings.Reinforce(ctx, pick.Feeling.ID, e.config.TouchBoost); err != nil {
			log.Printf("engine: spark touch failed for %s: %v", pick.Feeling.ID, err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("touch %s: %v", pick.Feeling.ID, err))
			continue
		}
		applyReinforcement(pick.Feeling, e.config.TouchBoost)
	}
	return result, nil
}

// applyReinforcement mirrors a successful store-side Reinforce on an
// in-memory copy.
func applyReinforcement(f *types.Feeling, delta float64) {
	if !f.IsMetabolized() {
		f.Strength = types.ClampStrength(f.Strength + delta)
	}
	f.AccessCount++
}
