package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/pythia/internal/dataset"
	"github.com/MikeSquared-Agency/pythia/internal/hermes"
	"github.com/MikeSquared-Agency/pythia/internal/store"
)

type buildRequest struct {
	InputDir       string `json:"input_dir,omitempty"`
	OutputDir      string `json:"output_dir,omitempty"`
	ShiftDelay     string `json:"shift_delay,omitempty"`
	TrailingWindow string `json:"trailing_window,omitempty"`
	MaxSnapshot    int    `json:"max_snapshot,omitempty"`
}

// createBuild runs a batch dataset build. Builds are small (bounded export
// files), so the handler runs them synchronously and returns the summary.
func (s *Server) createBuild(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := s.buildCfg
	if req.InputDir != "" {
		cfg.InputDir = req.InputDir
	}
	if req.OutputDir != "" {
		cfg.OutputDir = req.OutputDir
	}
	if req.MaxSnapshot > 0 {
		cfg.MaxSnapshot = req.MaxSnapshot
	}
	if req.ShiftDelay != "" {
		d, err := time.ParseDuration(req.ShiftDelay)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid shift_delay")
			return
		}
		cfg.ShiftDelay = d
	}
	if req.TrailingWindow != "" {
		d, err := time.ParseDuration(req.TrailingWindow)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid trailing_window")
			return
		}
		cfg.TrailingWindow = d
	}
	if cfg.InputDir == "" {
		writeError(w, http.StatusBadRequest, "input_dir is required (no PYTHIA_EXPORT_DIR configured)")
		return
	}

	buildID := uuid.New()
	cfg.BuildID = buildID
	builder := dataset.NewBuilder(cfg, s.logger)

	if err := s.store.CreateBuild(r.Context(), buildID); err != nil {
		s.logger.Error("failed to create build record", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create build record")
		return
	}

	summary, err := builder.Build(r.Context())
	if err != nil {
		_ = s.store.FailBuild(r.Context(), buildID, err.Error())
		s.logger.Error("build failed", "build_id", buildID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.store.FinishBuild(r.Context(), summary); err != nil {
		s.logger.Error("failed to record build summary", "build_id", buildID, "error", err)
	}

	if s.bus != nil {
		if err := s.bus.Publish(hermes.SubjectDatasetBuilt, summary); err != nil {
			s.logger.Warn("failed to publish dataset.built", "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, summary)
}

func (s *Server) listBuilds(w http.ResponseWriter, r *http.Request) {
	builds, err := s.store.ListBuilds(r.Context(), 50)
	if err != nil {
		s.logger.Error("failed to list builds", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list builds")
		return
	}
	if builds == nil {
		builds = []store.BuildRecord{}
	}
	writeJSON(w, http.StatusOK, builds)
}

func (s *Server) getBuild(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid build id")
		return
	}
	build, err := s.store.GetBuild(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "build not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get build", "build_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get build")
		return
	}
	writeJSON(w, http.StatusOK, build)
}
