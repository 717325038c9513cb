package scheduler

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"github.com/google/uuid"

	"engagement_tracker/internal/domain"
)

type JobStore interface {
	ListEligible(ctx context.Context, statuses []domain.JobStatus, limit int) ([]domain.FetchJob, error)
	Claim(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error)
	ReclaimStale(ctx context.Context, lockedBefore time.Time) (int64, error)
}

type Executor interface {
	Execute(ctx context.Context, job *domain.FetchJob) domain.JobOutcome
}

type Publisher interface {
	Publish(ctx context.Context, outcome domain.JobOutcome) error
}
