package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/scrypster/resonance/internal/storage"
	"github.com/scrypster/resonance/pkg/types"
)

// indexText is the string embedded for a feeling.
func indexText(f *types.Feeling) string {
	return f.Label + ": " + f.Text
}

// index embeds f, upserts it into the vector index and reinforces its echoes.
func (e *Engine) index(ctx context.Context, f *types.Feeling) ([]Echo, error) {
	vec, err := e.embedder.Embed(ctx, indexText(f))
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	meta := map[string]string{
		"label":  f.Label,
		"weight": string(f.Weight),
	}
	if f.Pillar != "" {
		meta["pillar"] = string(f.Pillar)
	}
	if err := e.vectors.Upsert(ctx, f.ID, vec, meta); err != nil {
		return nil, fmt.Errorf("upsert: %w", err)
	}

	return e.echo(ctx, f.ID, vec)
}

// echo reinforces every indexed feeling, other than selfID, whose similarity
// to vec exceeds the echo threshold.
func (e *Engine) echo(ctx context.Context, selfID string, vec []float64) ([]Echo, error) {
	// One extra slot because the feeling usually finds itself.
	matches, err := e.vectors.Query(ctx, vec, e.config.EchoTopK+1, nil)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	var echoes []Echo
	var errs []error
	for _, m := range matches {
		if m.ID == selfID || m.Score <= e.config.EchoThreshold {
			continue
		}
		if len(echoes) >= e.config.EchoTopK {
			break
		}
		if err := e.feelings.Reinforce(ctx, m.ID, e.config.EchoBoost); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				log.Printf("engine: echo skipped stale vector %s", m.ID)
				continue
			}
			errs = append(errs, fmt.Errorf("reinforce %s: %w", m.ID, err))
			continue
		}
		echoes = append(echoes, Echo{FeelingID: m.ID, Score: m.Score})
	}
	return echoes, errors.Join(errs...)
}
