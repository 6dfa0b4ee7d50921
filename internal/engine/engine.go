package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/scrypster/resonance/internal/embedding"
	"github.com/scrypster/resonance/internal/lexicon"
	"github.com/scrypster/resonance/internal/storage"
	"github.com/scrypster/resonance/pkg/types"
)

// Dependencies are the collaborators of an Engine. Feelings, Sampling, Traits
// and Lexicon are required. Without Vectors and Embedder the engine stores
// feelings but never indexes or echoes them.
type Dependencies struct {
	Feelings storage.FeelingStore
	Sampling storage.SamplingStore
	Traits   storage.TraitStore
	Lexicon  *lexicon.Lexicon

	Vectors  storage.VectorIndex
	Embedder embedding.Embedder
	Entities storage.EntityStore

	// Pillars is the shared pillar description cache. When nil and an
	// Embedder is set, the engine creates its own.
	Pillars *PillarCache
}

// Engine orchestrates ingestion, lifecycle, traits and retrieval.
type Engine struct {
	config Config

	feelings storage.FeelingStore
	sampling storage.SamplingStore
	lexicon  *lexicon.Lexicon
	vectors  storage.VectorIndex
	embedder embedding.Embedder
	entities storage.EntityStore

	decider *DecisionEngine
	traits  *TraitAggregator
	shadows *ShadowDetector

	now func() time.Time

	mu               sync.RWMutex
	onFeelingStored  func(f *types.Feeling)
	onShadow         func(ev *types.ShadowEvent)
	onTraitRefreshed func(snap *types.TraitSnapshot)
	onDecay          func(res storage.DecayResult)
}

// New creates an Engine. Use DefaultConfig() for the standard constants.
func New(deps Dependencies, cfg Config) (*Engine, error) {
	if deps.Feelings == nil || deps.Sampling == nil || deps.Traits == nil || deps.Lexicon == nil {
		return nil, fmt.Errorf("feeling, sampling, trait stores and lexicon are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	pillars := deps.Pillars
	if pillars == nil && deps.Embedder != nil {
		pillars = NewPillarCache(deps.Embedder)
	}

	if deps.Embedder == nil || deps.Vectors == nil {
		log.Println("engine: no embedding provider or vector index; semantic echo disabled")
	}

	return &Engine{
		config:   cfg,
		feelings: deps.Feelings,
		sampling: deps.Sampling,
		lexicon:  deps.Lexicon,
		vectors:  deps.Vectors,
		embedder: deps.Embedder,
		entities: deps.Entities,
		decider:  NewDecisionEngine(pillars, cfg.PillarThreshold),
		traits:   NewTraitAggregator(deps.Traits, cfg.TraitWindow),
		shadows:  NewShadowDetector(deps.Traits),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// SetOnFeelingStored sets a callback fired after a feeling is committed.
func (e *Engine) SetOnFeelingStored(callback func(f *types.Feeling)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onFeelingStored = callback
}

// SetOnShadow sets a callback fired when a shadow event is recorded.
func (e *Engine) SetOnShadow(callback func(ev *types.ShadowEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onShadow = callback
}

// SetOnTraitRefreshed sets a callback fired after a trait snapshot is stored.
func (e *Engine) SetOnTraitRefreshed(callback func(snap *types.TraitSnapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTraitRefreshed = callback
}

// SetOnDecay sets a callback fired after each decay cycle.
func (e *Engine) SetOnDecay(callback func(res storage.DecayResult)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onDecay = callback
}

// Ingest classifies and stores a feeling, then runs the best-effort
// post-commit steps: indexing with semantic echo, signal emission and the
// shadow check. A failure after commit is reported as a warning and never
// undoes the stored feeling.
func (e *Engine) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if err := validateIngest(&req); err != nil {
		return nil, err
	}
	if req.PredecessorID != "" {
		ok, err := e.feelings.Exists(ctx, req.PredecessorID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: predecessor %s", storage.ErrNotFound, req.PredecessorID)
		}
	}

	known := req.Entities
	if len(known) == 0 && e.entities != nil {
		names, err := e.entities.EntityNames(ctx)
		if err != nil {
			log.Printf("engine: entity lookup failed, using fallback names: %v", err)
		} else {
			known = names
		}
	}

	dec := e.decider.Decide(ctx, DecisionInput{
		Label:         req.Label,
		Text:          req.Text,
		Intensity:     req.Intensity,
		PriorTurns:    req.PriorTurns,
		KnownEntities: known,
	})
	if req.Pillar != "" {
		dec.Pillar = req.Pillar
		dec.PillarSource = PillarSourceOverride
		dec.PillarScore = 0
	}
	if req.Weight != "" {
		dec.Weight = req.Weight
	}

	// Lexicon writes wait until the feeling is committed.
	var def *types.EmotionDefinition
	if !types.IsNeutral(req.Label) {
		found, err := e.lexicon.Lookup(ctx, req.Label)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("lexicon: %w", err)
		}
		def = found
	}

	f := &types.Feeling{
		ID:            newID(feelingIDPrefix),
		Text:          req.Text,
		Label:         req.Label,
		Intensity:     req.Intensity,
		Pillar:        dec.Pillar,
		Weight:        dec.Weight,
		Tags:          mergeTags(dec.Tags, req.Tags),
		Charge:        types.ChargeFresh,
		Strength:      e.config.InitialStrength,
		PredecessorID: req.PredecessorID,
		CreatedAt:     e.now(),
	}
	if len(dec.Entities) > 0 {
		f.Entity = dec.Entities[0]
	}

	if err := e.feelings.Insert(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to store feeling: %w", err)
	}

	result := &IngestResult{Feeling: f, Decision: dec}
	result.Warnings = append(result.Warnings, dec.Warnings...)

	if !types.IsNeutral(f.Label) {
		def = e.recordLabel(ctx, f.Label, def, result)
	}

	e.mu.RLock()
	onStored, onShadow := e.onFeelingStored, e.onShadow
	e.mu.RUnlock()

	if onStored != nil {
		onStored(f)
	}

	if dec.ShouldIndex && e.embedder != nil && e.vectors != nil {
		echoes, err := e.index(ctx, f)
		result.Echoes = echoes
		if err != nil {
			log.Printf("engine: indexing %s failed: %v", f.ID, err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("indexing: %v", err))
		}
	}

	if dec.ShouldEmitSignals && def != nil {
		sig, err := e.traits.Emit(ctx, f.ID, def)
		if err != nil {
			log.Printf("engine: signal emission for %s failed: %v", f.ID, err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("signal: %v", err))
		}
		result.Signal = sig
	}

	if dec.ShouldCheckShadow && def != nil {
		ev, err := e.shadows.Check(ctx, f, def)
		if err != nil {
			log.Printf("engine: shadow check for %s failed: %v", f.ID, err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("shadow: %v", err))
		}
		if ev != nil {
			result.Shadow = ev
			if onShadow != nil {
				onShadow(ev)
			}
		}
	}

	result.Outcome = OutcomeStored
	if len(result.Warnings) > 0 {
		result.Outcome = OutcomeStoredWithWarnings
	}
	return result, nil
}

// recordLabel creates the lexicon entry for a novel label and counts the use.
// Failures are reported as warnings on result.
func (e *Engine) recordLabel(ctx context.Context, label string, def *types.EmotionDefinition, result *IngestResult) *types.EmotionDefinition {
	if def == nil {
		created, _, err := e.lexicon.Ensure(ctx, label)
		if err != nil {
			log.Printf("engine: lexicon entry for %q failed: %v", label, err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("lexicon: %v", err))
			return nil
		}
		def = created
	}
	if err := e.lexicon.RecordUsage(ctx, label); err != nil {
		log.Printf("engine: usage count for %q failed: %v", label, err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("lexicon usage: %v", err))
	}
	return def
}

// AddEntity registers a name for entity detection in later ingests.
func (e *Engine) AddEntity(ctx context.Context, name string) error {
	if e.entities == nil {
		return fmt.Errorf("%w: no entity store configured", storage.ErrInvalidInput)
	}
	return e.entities.AddEntity(ctx, name)
}

// Entities returns the registered entity names. When none are registered,
// detection uses a small built-in list.
func (e *Engine) Entities(ctx context.Context) ([]string, error) {
	if e.entities == nil {
		return nil, nil
	}
	return e.entities.EntityNames(ctx)
}

func validateIngest(req *IngestRequest) error {
	req.Text = strings.TrimSpace(req.Text)
	req.Label = types.NormalizeLabel(req.Label)

	if req.Text == "" {
		return fmt.Errorf("%w: text is required", storage.ErrInvalidInput)
	}
	if req.Label == "" {
		return fmt.Errorf("%w: label is required", storage.ErrInvalidInput)
	}
	if !req.Intensity.IsValid() {
		return fmt.Errorf("%w: unknown intensity %q", storage.ErrInvalidInput, req.Intensity)
	}
	if !req.Pillar.IsValid() {
		return fmt.Errorf("%w: unknown pillar %q", storage.ErrInvalidInput, req.Pillar)
	}
	if !req.Weight.IsValid() {
		return fmt.Errorf("%w: unknown weight %q", storage.ErrInvalidInput, req.Weight)
	}
	return nil
}

// mergeTags returns the union of a and b, preserving first-seen order.
func mergeTags(a, b []string) []string {
	var out []string
	seen := make(map[string]bool, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, t := range list {
			t = strings.ToLower(strings.TrimSpace(t))
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Get retrieves a feeling by ID.
func (e *Engine) Get(ctx context.Context, id string) (*types.Feeling, error) {
	return e.feelings.Get(ctx, id)
}

// Lineage returns the predecessor chain of a feeling, newest first.
func (e *Engine) Lineage(ctx context.Context, id string) ([]*types.Feeling, error) {
	return e.feelings.Lineage(ctx, id)
}

// Sit records an explicit engagement with a feeling.
func (e *Engine) Sit(ctx context.Context, id string) (*types.Feeling, error) {
	return e.feelings.Sit(ctx, id)
}

// Resolve metabolizes a feeling.
func (e *Engine) Resolve(ctx context.Context, id string, res storage.Resolution) (*types.Feeling, error) {
	return e.feelings.Resolve(ctx, id, res)
}

// Decay runs one decay cycle with the configured factors.
func (e *Engine) Decay(ctx context.Context) (storage.DecayResult, error) {
	res, err := e.feelings.Decay(ctx, e.config.Decay)
	if err != nil {
		return res, err
	}

	e.mu.RLock()
	cb := e.onDecay
	e.mu.RUnlock()
	if cb != nil {
		cb(res)
	}
	return res, nil
}

// RefreshTrait recomputes and stores the trait snapshot.
func (e *Engine) RefreshTrait(ctx context.Context) (*types.TraitSnapshot, error) {
	snap, err := e.traits.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	cb := e.onTraitRefreshed
	e.mu.RUnlock()
	if cb != nil {
		cb(snap)
	}
	return snap, nil
}

// CurrentTrait returns the latest trait snapshot.
func (e *Engine) CurrentTrait(ctx context.Context) (*types.TraitSnapshot, error) {
	return e.traits.Current(ctx)
}

// TraitHistory returns recent trait snapshots, newest first.
func (e *Engine) TraitHistory(ctx context.Context, limit int) ([]*types.TraitSnapshot, error) {
	return e.traits.History(ctx, limit)
}

// Shadows returns recent shadow events, newest first.
func (e *Engine) Shadows(ctx context.Context, limit int) ([]*types.ShadowEvent, error) {
	return e.shadows.Recent(ctx, limit)
}

// Emotions returns the whole lexicon.
func (e *Engine) Emotions(ctx context.Context) ([]*types.EmotionDefinition, error) {
	return e.lexicon.List(ctx)
}

// Calibrate stores operator-supplied weights for an emotion.
func (e *Engine) Calibrate(ctx context.Context, label string, weights types.Axes, shadowFor []string) (*types.EmotionDefinition, error) {
	return e.lexicon.Calibrate(ctx, label, weights, shadowFor)
}
