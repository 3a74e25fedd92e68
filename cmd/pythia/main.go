package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/pythia/internal/api"
	"github.com/MikeSquared-Agency/pythia/internal/config"
	"github.com/MikeSquared-Agency/pythia/internal/dataset"
	"github.com/MikeSquared-Agency/pythia/internal/hermes"
	"github.com/MikeSquared-Agency/pythia/internal/openai"
	"github.com/MikeSquared-Agency/pythia/internal/processor"
	"github.com/MikeSquared-Agency/pythia/internal/store"
	"github.com/MikeSquared-Agency/pythia/internal/window"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("pythia starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	// Fine-tuning sink (optional — pythia can build datasets without it)
	var sink *openai.Client
	if cfg.OpenAIAPIKey != "" {
		sink = openai.NewClient(cfg.OpenAIAPIKey)
		slog.Info("fine-tuning sink ready", "base_model", cfg.BaseModel)
	} else {
		slog.Warn("OPENAI_API_KEY not set — dataset builds only, no fine-tune submission")
	}

	// NATS/Hermes
	bus, err := hermes.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer bus.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Live aggregation — one shared aggregator fed by Chronicle messages.
	agg := window.New(window.Config{
		ShiftDelay:     cfg.ShiftDelay,
		TrailingWindow: cfg.TrailingWindow,
		MaxSnapshot:    cfg.MaxSnapshot,
	})
	proc := processor.New(agg, bus, slog.Default())

	if err := bus.Subscribe(hermes.SubjectMessageStored, proc.HandleMessageStored); err != nil {
		slog.Error("failed to subscribe to message events", "error", err)
		os.Exit(1)
	}

	// HTTP API
	buildCfg := dataset.Config{
		InputDir:       cfg.ExportDir,
		OutputDir:      cfg.OutputDir,
		ShiftDelay:     cfg.ShiftDelay,
		TrailingWindow: cfg.TrailingWindow,
		MaxSnapshot:    cfg.MaxSnapshot,
	}
	srv := api.NewServer(cfg.Port, db, sink, proc, bus, buildCfg, cfg.BaseModel, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Announce registration
	if err := bus.Publish("swarm.agent.pythia.registered", map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      cfg.Port,
	}); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	slog.Info("pythia ready",
		"port", cfg.Port,
		"shift_delay", cfg.ShiftDelay,
		"trailing_window", cfg.TrailingWindow,
		"max_snapshot", cfg.MaxSnapshot,
	)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("pythia stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
