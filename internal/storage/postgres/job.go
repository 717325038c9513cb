package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"engagement_tracker/internal/domain"
)

const jobColumns = `
	id, tenant_id, tracked_account_id, status, period_start, period_end,
	estimated_requests, actual_requests, posts_fetched, error_message,
	locked_at, started_at, completed_at, created_at, updated_at`

type JobStore struct {
	db *sqlx.DB
}

func NewJobStore(db *sqlx.DB) *JobStore {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, job *domain.FetchJob) error {
	if job.Status == "" {
		job.Status = domain.JobQueued
	}
	query := `
		INSERT INTO fetch_jobs (
			id, tenant_id, tracked_account_id, status, period_start, period_end, estimated_requests
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		job.ID,
		job.TenantID,
		job.AccountID,
		job.Status,
		job.PeriodStart,
		job.PeriodEnd,
		job.EstimatedRequests,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("create job for account %s: %w", job.AccountID, ErrActiveJobExists)
	}
	return err
}

func (s *JobStore) GetByID(ctx context.Context, jobID uuid.UUID) (*domain.FetchJob, error) {
	var job domain.FetchJob
	query := `SELECT ` + jobColumns + ` FROM fetch_jobs WHERE id = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &job, query, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fetch job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListEligible returns unlocked jobs in the given statuses, oldest first.
func (s *JobStore) ListEligible(ctx context.Context, statuses []domain.JobStatus, limit int) ([]domain.FetchJob, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}

	query := `
		SELECT ` + jobColumns + `
		FROM fetch_jobs
		WHERE status = ANY($1) AND locked_at IS NULL
		ORDER BY created_at ASC
		LIMIT $2`

	var jobs []domain.FetchJob
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &jobs, query, pq.Array(names), limit)
	return jobs, err
}

// Claim moves an unlocked eligible job to running in a single conditional
// write. It reports false when another cycle got there first. Terminal jobs
// never match.
func (s *JobStore) Claim(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error) {
	names := make([]string, len(domain.EligibleStatuses))
	for i, st := range domain.EligibleStatuses {
		names[i] = string(st)
	}

	query := `
		UPDATE fetch_jobs
		SET status = $2, locked_at = $3, started_at = $3, updated_at = NOW()
		WHERE id = $1 AND locked_at IS NULL AND status = ANY($4)`

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, jobID, domain.JobRunning, now, pq.Array(names))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Finish writes the executor's final state and releases the lock.
func (s *JobStore) Finish(ctx context.Context, job *domain.FetchJob) error {
	query := `
		UPDATE fetch_jobs
		SET status = $2,
			actual_requests = $3,
			posts_fetched = $4,
			error_message = $5,
			completed_at = $6,
			locked_at = NULL,
			updated_at = NOW()
		WHERE id = $1`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		job.ID,
		job.Status,
		job.ActualRequests,
		job.PostsFetched,
		job.ErrorMessage,
		job.CompletedAt,
	)
	return err
}

// ReclaimStale returns running jobs locked before lockedBefore to the queue.
func (s *JobStore) ReclaimStale(ctx context.Context, lockedBefore time.Time) (int64, error) {
	query := `
		UPDATE fetch_jobs
		SET status = $1,
			locked_at = NULL,
			error_message = 'lock expired, job requeued',
			updated_at = NOW()
		WHERE status = $2 AND locked_at < $3`

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, domain.JobQueued, domain.JobRunning, lockedBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
