package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scrypster/resonance/internal/engine"
	"github.com/scrypster/resonance/internal/storage"
	"github.com/scrypster/resonance/pkg/types"
)

const maxBodyBytes = 1 << 20

// decodeBody decodes a JSON request body into v. An empty body is allowed
// when optional is set.
func decodeBody(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
	}
	if s.scheduler != nil {
		body["decay"] = s.scheduler.Status()
	}
	respondJSON(w, http.StatusOK, body)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req engine.IngestRequest
	if err := decodeBody(r, &req, false); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json", err)
		return
	}

	res, err := s.engine.Ingest(r.Context(), req)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

func (s *Server) handleGetFeeling(w http.ResponseWriter, r *http.Request) {
	f, err := s.engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, f)
}

func (s *Server) handleLineage(w http.ResponseWriter, r *http.Request) {
	chain, err := s.engine.Lineage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"feelings": chain})
}

func (s *Server) handleSit(w http.ResponseWriter, r *http.Request) {
	f, err := s.engine.Sit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, f)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ResolutionID string `json:"resolution_id"`
		Note         string `json:"note"`
	}
	if err := decodeBody(r, &req, true); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json", err)
		return
	}

	f, err := s.engine.Resolve(r.Context(), chi.URLParam(r, "id"), storage.Resolution{
		ResolutionID: req.ResolutionID,
		Note:         req.Note,
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, f)
}

func (s *Server) handleDecay(w http.ResponseWriter, r *http.Request) {
	var (
		res storage.DecayResult
		err error
	)
	if s.scheduler != nil {
		res, err = s.scheduler.RunNow(r.Context())
	} else {
		res, err = s.engine.Decay(r.Context())
	}
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleSpark(w http.ResponseWriter, r *http.Request) {
	count, err := queryInt(r, "count", engine.DefaultSparkCount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid count", err)
		return
	}

	q := r.URL.Query()
	res, err := s.engine.Spark(r.Context(), engine.SparkRequest{
		Count:  count,
		Weight: types.Weight(q.Get("weight")),
		Scope:  types.Scope(q.Get("scope")),
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleSparkStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTrait(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.CurrentTrait(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleTraitRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.RefreshTrait(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleTraitHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid limit", err)
		return
	}
	history, err := s.engine.TraitHistory(r.Context(), limit)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"snapshots": history})
}

func (s *Server) handleShadows(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid limit", err)
		return
	}
	events, err := s.engine.Shadows(r.Context(), limit)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"shadows": events})
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	names, err := s.engine.Entities(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"entities": names})
}

func (s *Server) handleAddEntity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req, false); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json", err)
		return
	}
	if err := s.engine.AddEntity(r.Context(), req.Name); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"name": strings.TrimSpace(req.Name)})
}

func (s *Server) handleEmotions(w http.ResponseWriter, r *http.Request) {
	defs, err := s.engine.Emotions(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"emotions": defs})
}

func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AxisWeights types.Axes `json:"axis_weights"`
		ShadowFor   []string   `json:"shadow_for"`
	}
	if err := decodeBody(r, &req, false); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json", err)
		return
	}

	def, err := s.engine.Calibrate(r.Context(), chi.URLParam(r, "label"), req.AxisWeights, req.ShadowFor)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, def)
}
