package sqlite

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/scrypster/resonance/internal/storage"
	"github.com/scrypster/resonance/pkg/types"
)

// newTestStore creates an in-memory SQLite store for testing.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

var testClock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func insertFeeling(t *testing.T, s *Store, id, label string, weight types.Weight, strength float64) *types.Feeling {
	t.Helper()
	testClock = testClock.Add(time.Minute)
	f := &types.Feeling{
		ID:        id,
		Text:      "text for " + id,
		Label:     label,
		Weight:    weight,
		Strength:  strength,
		Charge:    types.ChargeFresh,
		CreatedAt: testClock,
	}
	if err := s.Insert(context.Background(), f); err != nil {
		t.Fatalf("Insert(%s) failed: %v", id, err)
	}
	return f
}

func mustGet(t *testing.T, s *Store, id string) *types.Feeling {
	t.Helper()
	f, err := s.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", id, err)
	}
	return f
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestInsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	f := &types.Feeling{
		ID:        "feel:1",
		Text:      "I realized I was angry at my boss",
		Label:     "anger",
		Intensity: types.IntensityStrong,
		Pillar:    types.PillarSelfAwareness,
		Weight:    types.WeightHeavy,
		Tags:      []string{"work"},
		Strength:  0.5,
		Entity:    "boss",
	}
	if err := store.Insert(ctx, f); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	got := mustGet(t, store, "feel:1")
	if got.Label != "anger" || got.Pillar != types.PillarSelfAwareness || got.Weight != types.WeightHeavy {
		t.Errorf("unexpected classification: %+v", got)
	}
	if got.Charge != types.ChargeFresh {
		t.Errorf("Charge = %q, want fresh", got.Charge)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "work" {
		t.Errorf("Tags = %v, want [work]", got.Tags)
	}
	if got.Entity != "boss" {
		t.Errorf("Entity = %q, want boss", got.Entity)
	}
	if got.LastAccessedAt != nil || got.ResolvedAt != nil {
		t.Errorf("expected nil timestamps, got %v %v", got.LastAccessedAt, got.ResolvedAt)
	}
}

func TestInsertValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cases := []*types.Feeling{
		{ID: "", Text: "x", Label: "joy"},
		{ID: "feel:a", Text: "  ", Label: "joy"},
		{ID: "feel:b", Text: "x", Label: ""},
	}
	for _, f := range cases {
		if err := store.Insert(ctx, f); !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("Insert(%+v) error = %v, want ErrInvalidInput", f, err)
		}
	}
}

func TestInsertClampsStrength(t *testing.T) {
	store := newTestStore(t)
	insertFeeling(t, store, "feel:hi", "joy", types.WeightLight, 3)
	insertFeeling(t, store, "feel:lo", "joy", types.WeightLight, 0)

	if got := mustGet(t, store, "feel:hi").Strength; got != types.StrengthCeiling {
		t.Errorf("strength = %v, want ceiling", got)
	}
	if got := mustGet(t, store, "feel:lo").Strength; got != types.StrengthFloor {
		t.Errorf("strength = %v, want floor", got)
	}
}

func TestInsertRequiresExistingPredecessor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	f := &types.Feeling{ID: "feel:child", Text: "x", Label: "joy", PredecessorID: "feel:missing"}
	if err := store.Insert(ctx, f); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Insert() error = %v, want ErrNotFound", err)
	}
}

func TestGetNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get(context.Background(), "feel:nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestDecayAppliesWeightFactors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertFeeling(t, store, "feel:heavy", "grief", types.WeightHeavy, 1.0)
	insertFeeling(t, store, "feel:medium", "joy", types.WeightMedium, 1.0)
	insertFeeling(t, store, "feel:light", "calm", types.WeightLight, 1.0)

	res, err := store.Decay(ctx, storage.DefaultDecayFactors())
	if err != nil {
		t.Fatalf("Decay() failed: %v", err)
	}
	if res.Decayed != 3 {
		t.Errorf("Decayed = %d, want 3", res.Decayed)
	}

	want := map[string]float64{"feel:heavy": 0.98, "feel:medium": 0.95, "feel:light": 0.90}
	for id, w := range want {
		if got := mustGet(t, store, id).Strength; !approx(got, w) {
			t.Errorf("%s strength = %v, want %v", id, got, w)
		}
	}
}

func TestDecayFloorsAndCools(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertFeeling(t, store, "feel:1", "anxiety", types.WeightLight, 0.16)

	res, err := store.Decay(ctx, storage.DefaultDecayFactors())
	if err != nil {
		t.Fatalf("Decay() failed: %v", err)
	}
	if res.Cooled != 1 {
		t.Errorf("Cooled = %d, want 1", res.Cooled)
	}

	got := mustGet(t, store, "feel:1")
	if got.Charge != types.ChargeCool {
		t.Errorf("Charge = %q, want cool", got.Charge)
	}

	for i := 0; i < 100; i++ {
		if _, err := store.Decay(ctx, storage.DefaultDecayFactors()); err != nil {
			t.Fatalf("Decay() failed: %v", err)
		}
	}
	if got := mustGet(t, store, "feel:1").Strength; got != types.StrengthFloor {
		t.Errorf("strength = %v, want floor %v", got, types.StrengthFloor)
	}
}

func TestDecaySkipsMetabolized(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertFeeling(t, store, "feel:done", "grief", types.WeightHeavy, 0.9)
	if _, err := store.Resolve(ctx, "feel:done", storage.Resolution{Note: "made peace"}); err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	res, err := store.Decay(ctx, storage.DefaultDecayFactors())
	if err != nil {
		t.Fatalf("Decay() failed: %v", err)
	}
	if res.Decayed != 0 {
		t.Errorf("Decayed = %d, want 0", res.Decayed)
	}

	got := mustGet(t, store, "feel:done")
	if got.Charge != types.ChargeMetabolized || got.Strength != types.StrengthFloor {
		t.Errorf("metabolized feeling changed: charge=%q strength=%v", got.Charge, got.Strength)
	}
}

func TestDecayRejectsBadFactors(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Decay(context.Background(), storage.DecayFactors{Heavy: 1.5, Medium: 0.9, Light: 0.9})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("Decay() error = %v, want ErrInvalidInput", err)
	}
}

func TestReinforceCapsAndCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertFeeling(t, store, "feel:1", "joy", types.WeightMedium, 0.5)

	if err := store.Reinforce(ctx, "feel:1", 0.15); err != nil {
		t.Fatalf("Reinforce() failed: %v", err)
	}
	got := mustGet(t, store, "feel:1")
	if !approx(got.Strength, 0.65) {
		t.Errorf("strength = %v, want 0.65", got.Strength)
	}
	if got.AccessCount != 1 || got.LastAccessedAt == nil {
		t.Errorf("access not recorded: count=%d last=%v", got.AccessCount, got.LastAccessedAt)
	}

	for i := 0; i < 5; i++ {
		if err := store.Reinforce(ctx, "feel:1", 0.15); err != nil {
			t.Fatalf("Reinforce() failed: %v", err)
		}
	}
	if got := mustGet(t, store, "feel:1").Strength; got != types.StrengthCeiling {
		t.Errorf("strength = %v, want ceiling", got)
	}
}

func TestReinforceNotFound(t *testing.T) {
	store := newTestStore(t)
	if err := store.Reinforce(context.Background(), "feel:nope", 0.05); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Reinforce() error = %v, want ErrNotFound", err)
	}
}

func TestReinforceKeepsMetabolizedPinned(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertFeeling(t, store, "feel:1", "shame", types.WeightMedium, 0.8)
	if _, err := store.Resolve(ctx, "feel:1", storage.Resolution{}); err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if err := store.Reinforce(ctx, "feel:1", 0.15); err != nil {
		t.Fatalf("Reinforce() failed: %v", err)
	}

	got := mustGet(t, store, "feel:1")
	if got.Strength != types.StrengthFloor {
		t.Errorf("strength = %v, want pinned floor", got.Strength)
	}
	if got.AccessCount != 1 {
		t.Errorf("AccessCount = %d, want 1", got.AccessCount)
	}
}

func TestConcurrentReinforceLosesNoUpdates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	insertFeeling(t, store, "feel:1", "joy", types.WeightMedium, 0.05)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Reinforce(ctx, "feel:1", 0.05); err != nil {
				t.Errorf("Reinforce() failed: %v", err)
			}
		}()
	}
	wg.Wait()

	got := mustGet(t, store, "feel:1")
	if got.AccessCount != 10 {
		t.Errorf("AccessCount = %d, want 10", got.AccessCount)
	}
	if !approx(got.Strength, 0.55) {
		t.Errorf("strength = %v, want 0.55", got.Strength)
	}
}

func TestSitAdvancesCharge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	insertFeeling(t, store, "feel:1", "sadness", types.WeightMedium, 0.5)

	want := []types.Charge{types.ChargeWarm, types.ChargeCool, types.ChargeCool}
	for i, w := range want {
		got, err := store.Sit(ctx, "feel:1")
		if err != nil {
			t.Fatalf("Sit() #%d failed: %v", i+1, err)
		}
		if got.Charge != w {
			t.Errorf("after sit %d charge = %q, want %q", i+1, got.Charge, w)
		}
		if got.SitCount != i+1 {
			t.Errorf("after sit %d SitCount = %d", i+1, got.SitCount)
		}
		if got.LastAccessedAt == nil {
			t.Errorf("after sit %d LastAccessedAt not stamped", i+1)
		}
	}
}

func TestSitNeverRewindsDecayCooledCharge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	insertFeeling(t, store, "feel:1", "fear", types.WeightLight, 0.1)

	if _, err := store.Decay(ctx, storage.DefaultDecayFactors()); err != nil {
		t.Fatalf("Decay() failed: %v", err)
	}
	got, err := store.Sit(ctx, "feel:1")
	if err != nil {
		t.Fatalf("Sit() failed: %v", err)
	}
	if got.Charge != types.ChargeCool {
		t.Errorf("Charge = %q, want cool", got.Charge)
	}
}

func TestSitNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Sit(context.Background(), "feel:nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Sit() error = %v, want ErrNotFound", err)
	}
}

func TestResolve(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	insertFeeling(t, store, "feel:hurt", "anger", types.WeightHeavy, 0.9)
	insertFeeling(t, store, "feel:repair", "relief", types.WeightMedium, 0.5)

	got, err := store.Resolve(ctx, "feel:hurt", storage.Resolution{ResolutionID: "feel:repair", Note: "we talked"})
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if got.Charge != types.ChargeMetabolized {
		t.Errorf("Charge = %q, want metabolized", got.Charge)
	}
	if got.ResolutionID != "feel:repair" || got.ResolutionNote != "we talked" || got.ResolvedAt == nil {
		t.Errorf("resolution not recorded: %+v", got)
	}

	_, err = store.Resolve(ctx, "feel:hurt", storage.Resolution{})
	if !errors.Is(err, storage.ErrInvalidTransition) {
		t.Errorf("second Resolve() error = %v, want ErrInvalidTransition", err)
	}
}

func TestResolveErrors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	insertFeeling(t, store, "feel:1", "anger", types.WeightHeavy, 0.9)

	if _, err := store.Resolve(ctx, "feel:nope", storage.Resolution{}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Resolve(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := store.Resolve(ctx, "feel:1", storage.Resolution{ResolutionID: "feel:ghost"}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Resolve(ghost resolution) error = %v, want ErrNotFound", err)
	}
	if _, err := store.Resolve(ctx, "feel:1", storage.Resolution{ResolutionID: "feel:1"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Resolve(self) error = %v, want ErrInvalidInput", err)
	}
}

func TestLineage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	prev := ""
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("feel:%d", i)
		f := &types.Feeling{ID: id, Text: "step", Label: "hope", PredecessorID: prev}
		if err := store.Insert(ctx, f); err != nil {
			t.Fatalf("Insert() failed: %v", err)
		}
		prev = id
	}

	chain, err := store.Lineage(ctx, "feel:2")
	if err != nil {
		t.Fatalf("Lineage() failed: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("len(chain) = %d, want 3", len(chain))
	}
	for i, want := range []string{"feel:2", "feel:1", "feel:0"} {
		if chain[i].ID != want {
			t.Errorf("chain[%d] = %s, want %s", i, chain[i].ID, want)
		}
	}
}

func TestLineageCapped(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	prev := ""
	for i := 0; i < storage.MaxLineage+10; i++ {
		id := fmt.Sprintf("feel:%03d", i)
		if err := store.Insert(ctx, &types.Feeling{ID: id, Text: "x", Label: "joy", PredecessorID: prev}); err != nil {
			t.Fatalf("Insert() failed: %v", err)
		}
		prev = id
	}

	chain, err := store.Lineage(ctx, prev)
	if err != nil {
		t.Fatalf("Lineage() failed: %v", err)
	}
	if len(chain) != storage.MaxLineage {
		t.Errorf("len(chain) = %d, want %d", len(chain), storage.MaxLineage)
	}
}

func TestDBPathFromDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{":memory:", ""},
		{"", ""},
		{"/tmp/resonance.db", "/tmp/resonance.db"},
		{"file:/tmp/resonance.db?_pragma=busy_timeout(5000)", "/tmp/resonance.db"},
		{"file::memory:?cache=shared", ""},
	}
	for _, tt := range tests {
		if got := dbPathFromDSN(tt.dsn); got != tt.want {
			t.Errorf("dbPathFromDSN(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}
