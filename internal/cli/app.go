package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/scrypster/resonance/internal/config"
	"github.com/scrypster/resonance/internal/embedding"
	"github.com/scrypster/resonance/internal/engine"
	"github.com/scrypster/resonance/internal/lexicon"
	"github.com/scrypster/resonance/internal/notify"
	"github.com/scrypster/resonance/internal/server"
	"github.com/scrypster/resonance/internal/storage"
	"github.com/scrypster/resonance/internal/storage/postgres"
	"github.com/scrypster/resonance/internal/storage/sqlite"
	"github.com/scrypster/resonance/pkg/types"
)

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	store    *sqlite.Store
	lexicon  *lexicon.Lexicon
	embedder embedding.Embedder
	engine   *engine.Engine
	closers  []io.Closer
}

// openApp loads configuration from the environment and wires storage, the
// lexicon, the vector index, the embedder and the engine.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return newApp(ctx, cfg)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if dir := filepath.Dir(cfg.Storage.DatabasePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	store, err := sqlite.NewStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &app{cfg: cfg, store: store, closers: []io.Closer{store}}

	a.lexicon = lexicon.New(store)
	if cfg.Lexicon.Seed {
		if _, err := a.lexicon.Seed(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	if cfg.Lexicon.CalibrationPath != "" {
		if _, err := a.applyCalibration(ctx, cfg.Lexicon.CalibrationPath); err != nil {
			a.Close()
			return nil, err
		}
	}

	vectors, err := a.openVectorIndex()
	if err != nil {
		a.Close()
		return nil, err
	}

	emb, err := embedding.New(embedding.Config{
		Provider: cfg.Embedding.Provider,
		BaseURL:  cfg.Embedding.URL,
		Model:    cfg.Embedding.Model,
		APIKey:   cfg.Embedding.APIKey,
		Timeout:  cfg.Embedding.Timeout,

		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	a.embedder = emb
	if emb != nil {
		log.Printf("cli: embedding provider %s (%s)", cfg.Embedding.Provider, emb.Model())
	}

	engCfg := engine.DefaultConfig()
	engCfg.TraitWindow = cfg.Engine.TraitWindow
	engCfg.EntropyWindow = cfg.Engine.EntropyWindow

	deps := engine.Dependencies{
		Feelings: store,
		Sampling: store,
		Traits:   store,
		Lexicon:  a.lexicon,
		Vectors:  vectors,
		Embedder: emb,
		Entities: store,
	}

	a.engine, err = engine.New(deps, engCfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openVectorIndex() (storage.VectorIndex, error) {
	switch a.cfg.Storage.VectorBackend {
	case config.VectorBackendPGVector:
		idx, err := postgres.NewVectorIndex(a.cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open pgvector index: %w", err)
		}
		a.closers = append(a.closers, idx)
		log.Println("cli: using pgvector index")
		return idx, nil
	default:
		return sqlite.NewVectorIndex(a.store.GetDB()), nil
	}
}

func (a *app) applyCalibration(ctx context.Context, path string) (int, error) {
	entries, err := lexicon.LoadCalibration(path)
	if err != nil {
		return 0, err
	}
	n, err := a.lexicon.ApplyCalibration(ctx, entries)
	if err != nil {
		return n, err
	}
	log.Printf("cli: applied %d calibration entries from %s", n, path)
	return n, nil
}

// notifyServer forwards engine events to a running server through event
// files in the data directory.
func (a *app) notifyServer() {
	w := notify.NewEventWriter(a.cfg.Storage.DataPath)
	send := func(eventType string, data any) {
		if err := w.Notify(eventType, data); err != nil {
			log.Printf("cli: %v", err)
		}
	}
	a.engine.SetOnFeelingStored(func(f *types.Feeling) { send(server.EventFeelingStored, f) })
	a.engine.SetOnShadow(func(ev *types.ShadowEvent) { send(server.EventShadowDetected, ev) })
	a.engine.SetOnTraitRefreshed(func(s *types.TraitSnapshot) { send(server.EventTraitRefreshed, s) })
	a.engine.SetOnDecay(func(r storage.DecayResult) { send(server.EventDecayCompleted, r) })
}

// Close releases every opened resource in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Printf("cli: close failed: %v", err)
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
