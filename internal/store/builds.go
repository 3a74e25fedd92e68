package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/pythia/internal/dataset"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// BuildRecord mirrors the builds table.
type BuildRecord struct {
	ID             uuid.UUID  `json:"id"`
	Status         string     `json:"status"` // running, complete, failed
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Files          int        `json:"files"`
	Records        int        `json:"records"`
	Malformed      int        `json:"malformed"`
	Events         int        `json:"events"`
	Entities       int        `json:"entities"`
	Examples       int        `json:"examples"`
	Users          int        `json:"users"`
	DatasetPath    string     `json:"dataset_path"`
	VocabularyPath string     `json:"vocabulary_path"`
	Error          string     `json:"error,omitempty"`
}

// CreateBuild inserts a new build row in the running state.
func (s *Store) CreateBuild(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO builds (id, status, started_at)
		VALUES ($1, 'running', now())`,
		id,
	)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	return nil
}

// FinishBuild records a successful build's summary.
func (s *Store) FinishBuild(ctx context.Context, sum *dataset.BuildSummary) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE builds
		SET status = 'complete', finished_at = $1, files = $2, records = $3,
		    malformed = $4, events = $5, entities = $6, examples = $7,
		    users = $8, dataset_path = $9, vocabulary_path = $10
		WHERE id = $11`,
		sum.FinishedAt, sum.Files, sum.Records, sum.Malformed, sum.Events,
		sum.Entities, sum.Examples, sum.Users, sum.DatasetPath, sum.VocabularyPath,
		sum.ID,
	)
	if err != nil {
		return fmt.Errorf("update build: %w", err)
	}
	return nil
}

// FailBuild marks a build as failed with its error message.
func (s *Store) FailBuild(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE builds SET status = 'failed', finished_at = now(), error = $1
		WHERE id = $2`,
		errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("fail build: %w", err)
	}
	return nil
}

// GetBuild fetches one build by ID.
func (s *Store) GetBuild(ctx context.Context, id uuid.UUID) (*BuildRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, status, started_at, finished_at, files, records, malformed,
		       events, entities, examples, users,
		       COALESCE(dataset_path, ''), COALESCE(vocabulary_path, ''), COALESCE(error, '')
		FROM builds WHERE id = $1`,
		id,
	)
	var b BuildRecord
	err := row.Scan(&b.ID, &b.Status, &b.StartedAt, &b.FinishedAt, &b.Files,
		&b.Records, &b.Malformed, &b.Events, &b.Entities, &b.Examples, &b.Users,
		&b.DatasetPath, &b.VocabularyPath, &b.Error)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get build: %w", err)
	}
	return &b, nil
}

// ListBuilds returns the most recent builds, newest first.
func (s *Store) ListBuilds(ctx context.Context, limit int) ([]BuildRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, status, started_at, finished_at, files, records, malformed,
		       events, entities, examples, users,
		       COALESCE(dataset_path, ''), COALESCE(vocabulary_path, ''), COALESCE(error, '')
		FROM builds ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	defer rows.Close()

	var builds []BuildRecord
	for rows.Next() {
		var b BuildRecord
		if err := rows.Scan(&b.ID, &b.Status, &b.StartedAt, &b.FinishedAt, &b.Files,
			&b.Records, &b.Malformed, &b.Events, &b.Entities, &b.Examples, &b.Users,
			&b.DatasetPath, &b.VocabularyPath, &b.Error); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}
