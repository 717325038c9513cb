package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"engagement_tracker/internal/domain"
)

type CallLogStore struct {
	db *sqlx.DB
}

func NewCallLogStore(db *sqlx.DB) *CallLogStore {
	return &CallLogStore{db: db}
}

func (s *CallLogStore) Insert(ctx context.Context, entry *domain.APICallLog) error {
	query := `
		INSERT INTO api_call_logs (
			id, tenant_id, fetch_job_id, endpoint, method, status_code,
			estimated_units, response_time_ms, error_message, created_at
		) VALUES (
			:id, :tenant_id, :fetch_job_id, :endpoint, :method, :status_code,
			:estimated_units, :response_time_ms, :error_message, :created_at
		)`

	_, err := sqlx.NamedExecContext(ctx, GetExecutor(ctx, s.db), query, entry)
	return err
}

// List returns a tenant's calls in [from, to], oldest first. Nil bounds are
// open.
func (s *CallLogStore) List(ctx context.Context, tenantID uuid.UUID, from, to *time.Time) ([]domain.APICallLog, error) {
	query := `
		SELECT id, tenant_id, fetch_job_id, endpoint, method, status_code,
			estimated_units, response_time_ms, error_message, created_at
		FROM api_call_logs
		WHERE tenant_id = $1
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at <= $3)
		ORDER BY created_at ASC`

	var logs []domain.APICallLog
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &logs, query, tenantID, from, to)
	return logs, err
}
