package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/price-oracle/internal/models"
)

// JobRepository handles backfill job persistence
type JobRepository struct {
	db *PostgresDB
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *PostgresDB) *JobRepository {
	return &JobRepository{db: db}
}

// Create persists a new backfill job record
func (r *JobRepository) Create(ctx context.Context, job *models.BackfillJob) error {
	query := `
		INSERT INTO backfill_jobs (job_id, token, network, status, creation_date, total_days, processed_days, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		job.JobID,
		job.Token,
		job.Network,
		job.Status,
		job.CreationDate,
		job.TotalDays,
		job.ProcessedDays,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create backfill job: %w", err)
	}

	return nil
}

// GetByID retrieves a backfill job by id, or nil when none exists
func (r *JobRepository) GetByID(ctx context.Context, jobID string) (*models.BackfillJob, error) {
	query := `
		SELECT job_id, token, network, status, creation_date, total_days, processed_days,
		       error, started_at, completed_at, created_at
		FROM backfill_jobs
		WHERE job_id = $1
	`

	var job models.BackfillJob
	err := r.db.Pool().QueryRow(ctx, query, jobID).Scan(
		&job.JobID,
		&job.Token,
		&job.Network,
		&job.Status,
		&job.CreationDate,
		&job.TotalDays,
		&job.ProcessedDays,
		&job.Error,
		&job.StartedAt,
		&job.CompletedAt,
		&job.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get backfill job: %w", err)
	}

	return &job, nil
}

// Update applies the non-nil fields of update and returns the updated job,
// or nil when the jobID is unknown
func (r *JobRepository) Update(ctx context.Context, jobID string, update *models.JobUpdate) (*models.BackfillJob, error) {
	setClauses := []string{}
	args := []interface{}{}
	argIdx := 1

	addSet := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if update.Status != nil {
		addSet("status", *update.Status)
	}
	if update.TotalDays != nil {
		addSet("total_days", *update.TotalDays)
	}
	if update.ProcessedDays != nil {
		addSet("processed_days", *update.ProcessedDays)
	}
	if update.Error != nil {
		addSet("error", *update.Error)
	}
	if update.StartedAt != nil {
		addSet("started_at", *update.StartedAt)
	}
	if update.CompletedAt != nil {
		addSet("completed_at", *update.CompletedAt)
	}

	if len(setClauses) == 0 {
		return r.GetByID(ctx, jobID)
	}

	query := fmt.Sprintf(`
		UPDATE backfill_jobs
		SET %s
		WHERE job_id = $%d
		RETURNING job_id, token, network, status, creation_date, total_days, processed_days,
		          error, started_at, completed_at, created_at
	`, strings.Join(setClauses, ", "), argIdx)
	args = append(args, jobID)

	var job models.BackfillJob
	err := r.db.Pool().QueryRow(ctx, query, args...).Scan(
		&job.JobID,
		&job.Token,
		&job.Network,
		&job.Status,
		&job.CreationDate,
		&job.TotalDays,
		&job.ProcessedDays,
		&job.Error,
		&job.StartedAt,
		&job.CompletedAt,
		&job.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update backfill job: %w", err)
	}

	return &job, nil
}
