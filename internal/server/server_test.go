package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	"github.com/scrypster/resonance/internal/engine"
	"github.com/scrypster/resonance/internal/lexicon"
	"github.com/scrypster/resonance/internal/server"
	"github.com/scrypster/resonance/internal/storage/sqlite"
	"github.com/scrypster/resonance/pkg/types"
)

// newTestServer builds a server over an in-memory store with a seeded lexicon
// and no embedding provider.
func newTestServer(t *testing.T, opts server.Options) *server.Server {
	t.Helper()
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err, "failed to create in-memory SQLite store")
	t.Cleanup(func() { _ = store.Close() })

	lex := lexicon.New(store)
	_, err = lex.Seed(context.Background())
	require.NoError(t, err)

	eng, err := engine.New(engine.Dependencies{
		Feelings: store,
		Sampling: store,
		Traits:   store,
		Lexicon:  lex,
		Entities: store,
	}, engine.DefaultConfig())
	require.NoError(t, err)

	if opts.Version == "" {
		opts.Version = "test"
	}
	return server.New(eng, opts)
}

func do(t *testing.T, s http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func ingest(t *testing.T, s http.Handler, req engine.IngestRequest) *engine.IngestResult {
	t.Helper()
	w := do(t, s, http.MethodPost, "/api/feelings", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decode[engine.IngestResult](t, w)
	return &res
}

func TestServer_HealthEndpoint(t *testing.T) {
	s := newTestServer(t, server.Options{Version: "1.2.3"})

	w := do(t, s, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := decode[map[string]any](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
}

func TestServer_SecurityHeaders(t *testing.T) {
	s := newTestServer(t, server.Options{})
	w := do(t, s, http.MethodGet, "/api/health", nil)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestServer_IngestAndGet(t *testing.T) {
	s := newTestServer(t, server.Options{})

	res := ingest(t, s, engine.IngestRequest{Text: "I realized I was tired of pretending", Label: "frustration"})
	assert.Equal(t, engine.OutcomeStored, res.Outcome)
	assert.Equal(t, types.PillarSelfAwareness, res.Feeling.Pillar)
	require.NotNil(t, res.Signal)

	w := do(t, s, http.MethodGet, "/api/feelings/"+res.Feeling.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	f := decode[types.Feeling](t, w)
	assert.Equal(t, res.Feeling.ID, f.ID)
	assert.Equal(t, types.ChargeFresh, f.Charge)
}

func TestServer_ErrorMapping(t *testing.T) {
	s := newTestServer(t, server.Options{})

	w := do(t, s, http.MethodGet, "/api/feelings/feel:missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not Found", decode[server.ErrorResponse](t, w).Code)

	w = do(t, s, http.MethodPost, "/api/feelings", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/api/feelings", engine.IngestRequest{Text: "", Label: "joy"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	res := ingest(t, s, engine.IngestRequest{Text: "waiting for results", Label: "anxiety"})
	w = do(t, s, http.MethodPost, "/api/feelings/"+res.Feeling.ID+"/resolve", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, s, http.MethodPost, "/api/feelings/"+res.Feeling.ID+"/resolve", map[string]string{"note": "again"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestServer_SitAndLineage(t *testing.T) {
	s := newTestServer(t, server.Options{})

	parent := ingest(t, s, engine.IngestRequest{Text: "the meeting ran over", Label: "frustration"})
	child := ingest(t, s, engine.IngestRequest{
		Text:          "snapped at my partner later",
		Label:         "guilt",
		PredecessorID: parent.Feeling.ID,
	})

	w := do(t, s, http.MethodPost, "/api/feelings/"+child.Feeling.ID+"/sit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.ChargeWarm, decode[types.Feeling](t, w).Charge)

	w = do(t, s, http.MethodGet, "/api/feelings/"+child.Feeling.ID+"/lineage", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Feelings []types.Feeling `json:"feelings"`
	}](t, w)
	require.Len(t, body.Feelings, 2)
	assert.Equal(t, parent.Feeling.ID, body.Feelings[1].ID)
}

func TestServer_DecayAndSpark(t *testing.T) {
	s := newTestServer(t, server.Options{})
	for _, req := range []engine.IngestRequest{
		{Text: "quiet walk", Label: "calm", Pillar: types.PillarSelfManagement},
		{Text: "long call with my sister", Label: "love", Pillar: types.PillarRelationshipManagement},
		{Text: "new recipe worked", Label: "joy"},
	} {
		ingest(t, s, req)
	}

	w := do(t, s, http.MethodPost, "/api/decay", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"decayed":3`)

	w = do(t, s, http.MethodGet, "/api/spark?count=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[engine.SparkResult](t, w)
	assert.Len(t, res.Picks, 2)
	assert.Equal(t, types.PillarSelfManagement, res.TargetPillar)

	w = do(t, s, http.MethodGet, "/api/spark?count=many", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodGet, "/api/spark?scope=dreams", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodGet, "/api/spark/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[engine.SparkStats](t, w)
	assert.Len(t, stats.LabelCounts, 3)
}

func TestServer_TraitAndShadows(t *testing.T) {
	s := newTestServer(t, server.Options{})

	w := do(t, s, http.MethodGet, "/api/trait", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	ingest(t, s, engine.IngestRequest{Text: "nobody texted back", Label: "loneliness"})

	w = do(t, s, http.MethodPost, "/api/trait/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode[types.TraitSnapshot](t, w)
	assert.Equal(t, "ISFJ", snap.Code)

	w = do(t, s, http.MethodGet, "/api/trait", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, snap.ID, decode[types.TraitSnapshot](t, w).ID)

	res := ingest(t, s, engine.IngestRequest{Text: "furious about the cancelled plans", Label: "anger"})
	require.NotNil(t, res.Shadow)

	w = do(t, s, http.MethodGet, "/api/shadows?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	shadows := decode[struct {
		Shadows []types.ShadowEvent `json:"shadows"`
	}](t, w)
	require.Len(t, shadows.Shadows, 1)
	assert.Equal(t, "anger", shadows.Shadows[0].EmotionLabel)

	w = do(t, s, http.MethodGet, "/api/trait/history?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodGet, "/api/trait/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), snap.ID)
}

func TestServer_EmotionsAndCalibration(t *testing.T) {
	s := newTestServer(t, server.Options{})

	w := do(t, s, http.MethodPut, "/api/emotions/awe", map[string]any{
		"axis_weights": []int{0, -2, 0, -1},
		"shadow_for":   []string{"ISTJ"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	def := decode[types.EmotionDefinition](t, w)
	assert.True(t, def.IsUserDefined)
	assert.Equal(t, types.Axes{0, -2, 0, -1}, def.AxisWeights)

	w = do(t, s, http.MethodPut, "/api/emotions/neutral", map[string]any{"axis_weights": []int{1, 0, 0, 0}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPut, "/api/emotions/awe", map[string]any{"shadow_for": []string{"XXXX"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodGet, "/api/emotions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Emotions []types.EmotionDefinition `json:"emotions"`
	}](t, w)
	assert.Len(t, list.Emotions, len(lexicon.DefaultEmotions())+1)
}

func TestServer_RateLimit(t *testing.T) {
	s := newTestServer(t, server.Options{RateLimit: 0.001, RateBurst: 1})

	w := do(t, s, http.MethodGet, "/api/emotions", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/api/emotions", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Health is outside the limited group.
	w = do(t, s, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_EventsRejectsForeignOrigin(t *testing.T) {
	s := newTestServer(t, server.Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("Origin", "http://evil.com")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")

	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Forbidden")
}

func TestServer_EventsStreamIngest(t *testing.T) {
	s := newTestServer(t, server.Options{})
	go s.Hub().Run()
	t.Cleanup(s.Hub().Stop)

	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/api/events", nil) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	require.NoError(t, err)
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }() //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	require.Eventually(t, func() bool { return s.Hub().ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	res := ingest(t, s, engine.IngestRequest{Text: "the test passed first try", Label: "joy"})

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var ev struct {
		Type string        `json:"type"`
		Data types.Feeling `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, server.EventFeelingStored, ev.Type)
	assert.Equal(t, res.Feeling.ID, ev.Data.ID)
}

func TestServer_ServeShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t, server.Options{})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, listener) }()

	url := "http://" + listener.Addr().String() + "/api/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_EntitiesFeedDetection(t *testing.T) {
	s := newTestServer(t, server.Options{})

	w := do(t, s, http.MethodGet, "/api/entities", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"entities":[]}`, w.Body.String())

	w = do(t, s, http.MethodPost, "/api/entities", map[string]string{"name": " Priya "})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, s, http.MethodPost, "/api/entities", map[string]string{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodGet, "/api/entities", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"entities":["Priya"]}`, w.Body.String())

	res := ingest(t, s, engine.IngestRequest{Text: "lunch with priya was lovely", Label: "joy"})
	assert.Equal(t, "Priya", res.Feeling.Entity)
	assert.Equal(t, []string{"Priya"}, res.Decision.Entities)
}
