package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// FineTuneJob mirrors the finetune_jobs table: one row per submission to the
// remote fine-tuning service.
type FineTuneJob struct {
	ID             uuid.UUID `json:"id"`
	BuildID        uuid.UUID `json:"build_id"`
	ProviderFileID string    `json:"provider_file_id"`
	ProviderJobID  string    `json:"provider_job_id"`
	Model          string    `json:"model"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreateFineTuneJob records a newly submitted fine-tuning job.
func (s *Store) CreateFineTuneJob(ctx context.Context, job FineTuneJob) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO finetune_jobs (id, build_id, provider_file_id, provider_job_id, model, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())`,
		job.ID, job.BuildID, job.ProviderFileID, job.ProviderJobID, job.Model, job.Status,
	)
	if err != nil {
		return fmt.Errorf("insert finetune job: %w", err)
	}
	return nil
}

// UpdateFineTuneJobStatus refreshes a job's status from the provider.
func (s *Store) UpdateFineTuneJobStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE finetune_jobs SET status = $1, updated_at = now() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update finetune job: %w", err)
	}
	return nil
}

// GetFineTuneJob fetches one job by ID.
func (s *Store) GetFineTuneJob(ctx context.Context, id uuid.UUID) (*FineTuneJob, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, build_id, provider_file_id, provider_job_id, model, status, created_at, updated_at
		FROM finetune_jobs WHERE id = $1`,
		id,
	)
	var j FineTuneJob
	err := row.Scan(&j.ID, &j.BuildID, &j.ProviderFileID, &j.ProviderJobID, &j.Model, &j.Status, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get finetune job: %w", err)
	}
	return &j, nil
}
