package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"engagement_tracker/internal/config"
	"engagement_tracker/internal/domain"
)

type Scheduler struct {
	jobs      JobStore
	executor  Executor
	publisher Publisher
	cfg       config.SchedulerConfig
	now       func() time.Time
	logger    *slog.Logger

	// serialises cycles started from the cron trigger and the HTTP trigger
	mu sync.Mutex
}

// NewScheduler builds a scheduler. publisher may be nil when job events are
// disabled.
func NewScheduler(
	jobs JobStore,
	executor Executor,
	publisher Publisher,
	cfg config.SchedulerConfig,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		jobs:      jobs,
		executor:  executor,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger.With("component", "scheduler"),
	}
}

// RunCycle claims up to maxJobs eligible jobs, at most one per tenant, and
// executes them one after another. maxJobs <= 0 uses the configured default.
func (s *Scheduler) RunCycle(ctx context.Context, maxJobs int) ([]domain.JobOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if maxJobs <= 0 {
		maxJobs = s.cfg.MaxJobs
	}
	logger := s.logger.With("cycle_id", uuid.New())

	if s.cfg.LockTimeout > 0 {
		reclaimed, err := s.jobs.ReclaimStale(ctx, s.now().UTC().Add(-s.cfg.LockTimeout))
		if err != nil {
			return nil, fmt.Errorf("reclaim stale jobs: %w", err)
		}
		if reclaimed > 0 {
			logger.Warn("reclaimed stale jobs", "count", reclaimed)
		}
	}

	candidates, err := s.jobs.ListEligible(ctx, domain.EligibleStatuses, maxJobs)
	if err != nil {
		return nil, fmt.Errorf("list eligible jobs: %w", err)
	}

	logger.Info("starting cycle", "candidates", len(candidates))

	// One job per tenant per cycle. A tenant whose oldest candidate cannot be
	// claimed falls through to its next candidate.
	served := make(map[uuid.UUID]struct{}, len(candidates))
	outcomes := make([]domain.JobOutcome, 0, len(candidates))
	for i := range candidates {
		job := &candidates[i]
		if _, ok := served[job.TenantID]; ok {
			continue
		}

		now := s.now().UTC()
		claimed, err := s.jobs.Claim(ctx, job.ID, now)
		if err != nil {
			logger.Error("failed to claim job", "job_id", job.ID, "error", err)
			outcomes = append(outcomes, skippedOutcome(job, err))
			continue
		}
		if !claimed {
			logger.Info("job already claimed", "job_id", job.ID)
			continue
		}
		served[job.TenantID] = struct{}{}
		logger.Info("claimed job", "job_id", job.ID, "tenant_id", job.TenantID)
		job.Status = domain.JobRunning
		job.LockedAt = &now
		job.StartedAt = &now

		outcome := s.execute(ctx, job)
		outcomes = append(outcomes, outcome)
		s.publish(ctx, logger, outcome)
	}

	logger.Info("cycle finished", "processed", len(outcomes))
	return outcomes, nil
}

// skippedOutcome reports a job that was left untouched because its claim
// failed. The job keeps its status and stays eligible for the next cycle.
func skippedOutcome(job *domain.FetchJob, err error) domain.JobOutcome {
	return domain.JobOutcome{
		JobID:     job.ID,
		TenantID:  job.TenantID,
		AccountID: job.AccountID,
		Status:    job.Status,
		Skipped:   true,
		Error:     fmt.Sprintf("claim job: %v", err),
	}
}

func (s *Scheduler) execute(ctx context.Context, job *domain.FetchJob) domain.JobOutcome {
	if s.cfg.JobTimeout <= 0 {
		return s.executor.Execute(ctx, job)
	}
	jobCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()
	return s.executor.Execute(jobCtx, job)
}

func (s *Scheduler) publish(ctx context.Context, logger *slog.Logger, outcome domain.JobOutcome) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, outcome); err != nil {
		logger.Warn("failed to publish job event", "job_id", outcome.JobID, "error", err)
	}
}
