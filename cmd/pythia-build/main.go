package main

/*
pythia-build runs one batch dataset build without the service, database, or
bus: chat export files in, examples.jsonl + vocabulary.json out.

Usage:
  pythia-build -input exports/ -output data/ [-shift 1s] [-window 1s] [-max-snapshot 20]

With -submit, the dataset is uploaded and a fine-tuning job is created
(requires OPENAI_API_KEY).
*/

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/pythia/internal/dataset"
	"github.com/MikeSquared-Agency/pythia/internal/openai"
	"github.com/MikeSquared-Agency/pythia/internal/window"
)

func main() {
	inputDir := flag.String("input", "", "directory of chat export files (.jsonl, .csv)")
	outputDir := flag.String("output", "./data", "output directory for dataset files")
	shift := flag.Duration("shift", window.DefaultShiftDelay, "shift delay: snapshot is taken this long before each event")
	trailing := flag.Duration("window", window.DefaultTrailingWindow, "trailing window for engagement attribution")
	maxSnapshot := flag.Int("max-snapshot", window.DefaultMaxSnapshot, "maximum events per prompt snapshot")
	submit := flag.Bool("submit", false, "upload the dataset and create a fine-tuning job")
	model := flag.String("model", "gpt-4.1-mini", "base model for fine-tuning (with -submit)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	setupLogging(*logLevel)

	if *inputDir == "" {
		fmt.Fprintln(os.Stderr, "error: -input is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	builder := dataset.NewBuilder(dataset.Config{
		InputDir:       *inputDir,
		OutputDir:      *outputDir,
		ShiftDelay:     *shift,
		TrailingWindow: *trailing,
		MaxSnapshot:    *maxSnapshot,
	}, slog.Default())

	summary, err := builder.Build(ctx)
	if err != nil {
		slog.Error("build failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("\n=== Build Summary ===\n")
	fmt.Printf("Files read:       %d\n", summary.Files)
	fmt.Printf("Records:          %d (%d malformed, skipped)\n", summary.Records, summary.Malformed)
	fmt.Printf("Events:           %d across %d entities\n", summary.Events, summary.Entities)
	fmt.Printf("Examples:         %d\n", summary.Examples)
	fmt.Printf("Label vocabulary: %d users\n", summary.Users)
	fmt.Printf("Dataset:          %s\n", summary.DatasetPath)
	fmt.Printf("Vocabulary:       %s\n", summary.VocabularyPath)
	fmt.Printf("Duration:         %s\n", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))

	if !*submit {
		return
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		slog.Error("OPENAI_API_KEY is required with -submit")
		os.Exit(1)
	}

	sink := openai.NewClient(apiKey)
	fileID, err := sink.UploadFile(ctx, summary.DatasetPath)
	if err != nil {
		slog.Error("upload failed", "error", err)
		os.Exit(1)
	}
	slog.Info("dataset uploaded", "file_id", fileID)

	job, err := sink.CreateFineTune(ctx, fileID, *model)
	if err != nil {
		slog.Error("fine-tune creation failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("\nFine-tuning job created: %s (status: %s, model: %s)\n", job.ID, job.Status, job.Model)
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
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
