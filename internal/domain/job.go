package domain

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobQueued      JobStatus = "queued"
	JobRunning     JobStatus = "running"
	JobCompleted   JobStatus = "completed"
	JobFailed      JobStatus = "failed"
	JobRateLimited JobStatus = "rate_limited"
	JobCancelled   JobStatus = "cancelled"
)

// Terminal reports whether the job will never be picked up again.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// EligibleStatuses are the statuses a scheduling cycle may claim from.
var EligibleStatuses = []JobStatus{JobQueued, JobRateLimited}

type FetchJob struct {
	ID                uuid.UUID  `db:"id"`
	TenantID          uuid.UUID  `db:"tenant_id"`
	AccountID         uuid.UUID  `db:"tracked_account_id"`
	Status            JobStatus  `db:"status"`
	PeriodStart       *time.Time `db:"period_start"`
	PeriodEnd         *time.Time `db:"period_end"`
	EstimatedRequests *int       `db:"estimated_requests"`
	ActualRequests    int        `db:"actual_requests"`
	PostsFetched      int        `db:"posts_fetched"`
	ErrorMessage      *string    `db:"error_message"`
	LockedAt          *time.Time `db:"locked_at"`
	StartedAt         *time.Time `db:"started_at"`
	CompletedAt       *time.Time `db:"completed_at"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// JobOutcome summarises one executed job for the trigger response and events.
type JobOutcome struct {
	JobID          uuid.UUID `json:"job_id"`
	TenantID       uuid.UUID `json:"tenant_id"`
	AccountID      uuid.UUID `json:"account_id"`
	Status         JobStatus `json:"status"`
	PostsFetched   int       `json:"posts_fetched"`
	ActualRequests int       `json:"actual_requests"`
	Skipped        bool      `json:"skipped,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// APICallLog is one row per upstream HTTP call.
type APICallLog struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	TenantID       uuid.UUID  `db:"tenant_id" json:"tenant_id"`
	JobID          *uuid.UUID `db:"fetch_job_id" json:"fetch_job_id,omitempty"`
	Endpoint       string     `db:"endpoint" json:"endpoint"`
	Method         string     `db:"method" json:"method"`
	StatusCode     int        `db:"status_code" json:"status_code"`
	EstimatedUnits int        `db:"estimated_units" json:"estimated_units"`
	ResponseTimeMs int64      `db:"response_time_ms" json:"response_time_ms"`
	ErrorMessage   *string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}
