package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/pythia/internal/dataset"
	"github.com/MikeSquared-Agency/pythia/internal/hermes"
	"github.com/MikeSquared-Agency/pythia/internal/openai"
	"github.com/MikeSquared-Agency/pythia/internal/processor"
	"github.com/MikeSquared-Agency/pythia/internal/store"
)

type Server struct {
	router *chi.Mux
	port   int

	store    *store.Store
	sink     *openai.Client
	proc     *processor.Processor
	bus      *hermes.Client
	buildCfg dataset.Config
	model    string
	logger   *slog.Logger
}

func NewServer(port int, st *store.Store, sink *openai.Client, proc *processor.Processor, bus *hermes.Client, buildCfg dataset.Config, model string, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		store:    st,
		sink:     sink,
		proc:     proc,
		bus:      bus,
		buildCfg: buildCfg,
		model:    model,
		logger:   logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/pythia/status", s.status)
	router.Post("/api/v1/pythia/builds", s.createBuild)
	router.Get("/api/v1/pythia/builds", s.listBuilds)
	router.Get("/api/v1/pythia/builds/{id}", s.getBuild)
	router.Post("/api/v1/pythia/builds/{id}/finetune", s.createFineTune)
	router.Get("/api/v1/pythia/jobs/{id}", s.getFineTune)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"agent":  "pythia",
		"status": "ready",
	}
	if s.proc != nil {
		resp["live"] = s.proc.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
