// Package dataset orchestrates the batch pipeline: export files in,
// examples.jsonl and vocabulary.json out.
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/pythia/internal/encode"
	"github.com/MikeSquared-Agency/pythia/internal/export"
	"github.com/MikeSquared-Agency/pythia/internal/normalize"
	"github.com/MikeSquared-Agency/pythia/internal/window"
)

const (
	ExamplesFile   = "examples.jsonl"
	VocabularyFile = "vocabulary.json"
)

// Config holds one build's parameters.
type Config struct {
	InputDir       string
	OutputDir      string
	ShiftDelay     time.Duration
	TrailingWindow time.Duration
	MaxSnapshot    int

	// BuildID tags the summary; random when zero. The service sets it so
	// the summary matches the build row created before the run.
	BuildID uuid.UUID
}

// BuildSummary records what a build did. Persisted by the service store and
// printed by the CLI.
type BuildSummary struct {
	ID             uuid.UUID `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Files          int       `json:"files"`
	Records        int       `json:"records"`
	Malformed      int       `json:"malformed"`
	Events         int       `json:"events"`
	Entities       int       `json:"entities"`
	Examples       int       `json:"examples"`
	Users          int       `json:"users"`
	DatasetPath    string    `json:"dataset_path"`
	VocabularyPath string    `json:"vocabulary_path"`
}

// Builder runs batch dataset builds.
type Builder struct {
	cfg    Config
	logger *slog.Logger
}

func NewBuilder(cfg Config, logger *slog.Logger) *Builder {
	return &Builder{cfg: cfg, logger: logger}
}

// Build executes the full pipeline. Re-running over the same input with the
// same parameters produces byte-identical output files.
func (b *Builder) Build(ctx context.Context) (*BuildSummary, error) {
	id := b.cfg.BuildID
	if id == uuid.Nil {
		id = uuid.New()
	}
	summary := &BuildSummary{
		ID:        id,
		StartedAt: time.Now().UTC(),
	}

	files, err := export.DiscoverFiles(b.cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no export files under %s", b.cfg.InputDir)
	}
	sort.Strings(files)
	summary.Files = len(files)

	b.logger.Info("build started",
		"build_id", summary.ID,
		"files", len(files),
		"shift_delay", b.cfg.ShiftDelay,
		"trailing_window", b.cfg.TrailingWindow,
		"max_snapshot", b.cfg.MaxSnapshot,
	)

	// Normalize everything first; the aggregator needs per-entity timestamp
	// order and export files carry no ordering guarantee.
	var events []normalize.Event
	var seq int64
	for _, path := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		records, unparsable, err := export.ReadFile(path)
		if err != nil {
			b.logger.Warn("failed to read export file", "path", path, "error", err)
			continue
		}
		summary.Malformed += unparsable

		for _, rec := range records {
			summary.Records++
			ev, err := normalize.Normalize(rec, seq)
			if err != nil {
				summary.Malformed++
				b.logger.Warn("skipping malformed record", "error", err)
				continue
			}
			seq++
			events = append(events, ev)
		}
	}
	summary.Events = len(events)

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		return events[i].Seq < events[j].Seq
	})

	agg := window.New(window.Config{
		ShiftDelay:     b.cfg.ShiftDelay,
		TrailingWindow: b.cfg.TrailingWindow,
		MaxSnapshot:    b.cfg.MaxSnapshot,
	})

	var emissions []window.Emission
	for _, ev := range events {
		if em, ok := agg.Append(ev); ok {
			emissions = append(emissions, em)
		}
	}
	summary.Entities = agg.Entities()

	examples, vocab, err := encode.EncodeAll(emissions)
	if err != nil {
		return nil, fmt.Errorf("encode examples: %w", err)
	}
	summary.Examples = len(examples)
	summary.Users = vocab.Len()

	if err := os.MkdirAll(b.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	summary.DatasetPath = filepath.Join(b.cfg.OutputDir, ExamplesFile)
	summary.VocabularyPath = filepath.Join(b.cfg.OutputDir, VocabularyFile)

	if err := writeExamples(summary.DatasetPath, examples); err != nil {
		return nil, err
	}
	if err := writeVocabulary(summary.VocabularyPath, vocab); err != nil {
		return nil, err
	}

	summary.FinishedAt = time.Now().UTC()
	b.logger.Info("build complete",
		"build_id", summary.ID,
		"events", summary.Events,
		"entities", summary.Entities,
		"examples", summary.Examples,
		"users", summary.Users,
		"malformed", summary.Malformed,
		"duration", summary.FinishedAt.Sub(summary.StartedAt),
	)

	return summary, nil
}

func writeExamples(path string, examples []encode.Example) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	for _, ex := range examples {
		if err := enc.Encode(ex); err != nil {
			return fmt.Errorf("write example: %w", err)
		}
	}
	return f.Close()
}

func writeVocabulary(path string, vocab *encode.Vocabulary) error {
	data, err := json.MarshalIndent(vocab.Users(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal vocabulary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// LoadVocabulary reads a persisted vocabulary file back into memory.
func LoadVocabulary(path string) (*encode.Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var users []string
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	return encode.NewVocabulary(users), nil
}
