package engine

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/scrypster/resonance/internal/embedding"
	"github.com/scrypster/resonance/pkg/types"
)

// pillarDescriptions are the canonical texts embedded once per process.
var pillarDescriptions = map[types.Pillar]string{
	types.PillarSelfAwareness: "Self-awareness: recognizing my own emotions, moods and patterns as they happen, " +
		"and understanding how they affect my thoughts and behaviour.",
	types.PillarSelfManagement: "Self-management: regulating my impulses and reactions, staying composed under " +
		"stress, and choosing how to act instead of reacting.",
	types.PillarSocialAwareness: "Social awareness: sensing other people's emotions, needs and perspectives, " +
		"and reading the dynamics of a group or situation.",
	types.PillarRelationshipManagement: "Relationship management: handling conflict, repairing and building " +
		"connection, communicating clearly and working with others.",
}

// PillarCache holds the embeddings of the four pillar descriptions. It is
// initialised on first use and never refreshed. A failed initialisation
// leaves the cache empty so the next call retries.
type PillarCache struct {
	embedder embedding.Embedder

	mu      sync.Mutex
	ready   bool
	vectors map[types.Pillar][]float64
}

// NewPillarCache creates an empty cache over embedder.
func NewPillarCache(embedder embedding.Embedder) *PillarCache {
	return &PillarCache{embedder: embedder}
}

// Vectors returns the description embeddings, computing them on first call.
func (c *PillarCache) Vectors(ctx context.Context) (map[types.Pillar][]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready {
		return c.vectors, nil
	}
	if c.embedder == nil {
		return nil, fmt.Errorf("no embedding provider configured")
	}

	vectors := make(map[types.Pillar][]float64, len(types.Pillars))
	for _, p := range types.Pillars {
		v, err := c.embedder.Embed(ctx, pillarDescriptions[p])
		if err != nil {
			return nil, fmt.Errorf("embed %s description: %w", p, err)
		}
		vectors[p] = v
	}

	c.vectors = vectors
	c.ready = true
	return c.vectors, nil
}

// Classify embeds text and returns the most similar pillar when its score
// exceeds threshold. An empty pillar means no pillar cleared the threshold.
func (c *PillarCache) Classify(ctx context.Context, text string, threshold float64) (types.Pillar, float64, error) {
	vectors, err := c.Vectors(ctx)
	if err != nil {
		return "", 0, err
	}

	v, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return "", 0, fmt.Errorf("embed feeling: %w", err)
	}

	var best types.Pillar
	bestScore := math.Inf(-1)
	for _, p := range types.Pillars {
		if s := cosineSimilarity(v, vectors[p]); s > bestScore {
			best, bestScore = p, s
		}
	}
	if bestScore <= threshold {
		return "", bestScore, nil
	}
	return best, bestScore, nil
}

// cosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 if either vector has zero magnitude or lengths differ.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
