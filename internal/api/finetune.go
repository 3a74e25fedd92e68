package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/pythia/internal/hermes"
	"github.com/MikeSquared-Agency/pythia/internal/store"
)

type fineTuneRequest struct {
	Model string `json:"model,omitempty"`
}

// createFineTune uploads a completed build's dataset and starts a remote
// fine-tuning job over it.
func (s *Server) createFineTune(w http.ResponseWriter, r *http.Request) {
	if s.sink == nil {
		writeError(w, http.StatusServiceUnavailable, "fine-tuning not configured (OPENAI_API_KEY missing)")
		return
	}

	buildID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid build id")
		return
	}

	var req fineTuneRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	model := req.Model
	if model == "" {
		model = s.model
	}

	build, err := s.store.GetBuild(r.Context(), buildID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "build not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get build", "build_id", buildID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get build")
		return
	}
	if build.Status != "complete" {
		writeError(w, http.StatusConflict, "build is not complete")
		return
	}

	fileID, err := s.sink.UploadFile(r.Context(), build.DatasetPath)
	if err != nil {
		s.logger.Error("dataset upload failed", "build_id", buildID, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	providerJob, err := s.sink.CreateFineTune(r.Context(), fileID, model)
	if err != nil {
		s.logger.Error("fine-tune creation failed", "build_id", buildID, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	job := store.FineTuneJob{
		ID:             uuid.New(),
		BuildID:        buildID,
		ProviderFileID: fileID,
		ProviderJobID:  providerJob.ID,
		Model:          model,
		Status:         providerJob.Status,
	}
	if err := s.store.CreateFineTuneJob(r.Context(), job); err != nil {
		s.logger.Error("failed to record finetune job", "error", err)
	}

	if s.bus != nil {
		if err := s.bus.Publish(hermes.SubjectFineTuneCreated, job); err != nil {
			s.logger.Warn("failed to publish finetune.created", "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, job)
}

// getFineTune returns a job, refreshing its status from the provider when
// the sink is configured.
func (s *Server) getFineTune(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := s.store.GetFineTuneJob(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get finetune job", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	if s.sink != nil {
		providerJob, err := s.sink.GetFineTune(r.Context(), job.ProviderJobID)
		if err != nil {
			s.logger.Warn("failed to refresh job status", "job_id", id, "error", err)
		} else if providerJob.Status != job.Status {
			job.Status = providerJob.Status
			if err := s.store.UpdateFineTuneJobStatus(r.Context(), id, job.Status); err != nil {
				s.logger.Warn("failed to persist job status", "job_id", id, "error", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, job)
}

// decodeJSON parses an optional JSON body; an empty body is fine.
func decodeJSON(r *http.Request, out any) error {
	err := json.NewDecoder(r.Body).Decode(out)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return errors.New("invalid JSON body")
}
