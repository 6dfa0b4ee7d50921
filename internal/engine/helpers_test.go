package engine

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scrypster/resonance/internal/lexicon"
	"github.com/scrypster/resonance/internal/storage/sqlite"
)

// scriptedEmbedder returns fixed vectors for known texts and a bag-of-words
// hash vector for everything else.
type scriptedEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float64
	err     error
	n       int
}

func newScriptedEmbedder() *scriptedEmbedder {
	return &scriptedEmbedder{vectors: make(map[string][]float64)}
}

func (e *scriptedEmbedder) set(text string, v []float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[text] = v
}

func (e *scriptedEmbedder) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

func (e *scriptedEmbedder) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.n
}

func (e *scriptedEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.n++
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return append([]float64(nil), v...), nil
	}
	return bagOfWords(text), nil
}

func (e *scriptedEmbedder) Model() string { return "scripted" }

const bagDimension = 64

func bagOfWords(text string) []float64 {
	v := make([]float64, bagDimension)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'")
		if w == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%bagDimension]++
	}
	return v
}

type testEnv struct {
	engine   *Engine
	store    *sqlite.Store
	lexicon  *lexicon.Lexicon
	embedder *scriptedEmbedder
}

// newTestEnv builds an engine over an in-memory store with a seeded lexicon,
// the SQLite vector index and a scripted embedder.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	lex := lexicon.New(store)
	_, err = lex.Seed(context.Background())
	require.NoError(t, err)

	emb := newScriptedEmbedder()
	eng, err := New(Dependencies{
		Feelings: store,
		Sampling: store,
		Traits:   store,
		Lexicon:  lex,
		Vectors:  sqlite.NewVectorIndex(store.GetDB()),
		Embedder: emb,
		Entities: store,
	}, DefaultConfig())
	require.NoError(t, err)

	return &testEnv{engine: eng, store: store, lexicon: lex, embedder: emb}
}

// newBareEngine builds an engine without embedding or vector index.
func newBareEngine(t *testing.T) (*Engine, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	lex := lexicon.New(store)
	_, err = lex.Seed(context.Background())
	require.NoError(t, err)

	eng, err := New(Dependencies{
		Feelings: store,
		Sampling: store,
		Traits:   store,
		Lexicon:  lex,
	}, DefaultConfig())
	require.NoError(t, err)
	return eng, store
}
