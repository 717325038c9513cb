package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"engagement_tracker/internal/config"
	"engagement_tracker/internal/domain"
	"engagement_tracker/internal/scheduler/mocks"
)

type SchedulerTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	jobs      *mocks.MockJobStore
	executor  *mocks.MockExecutor
	publisher *mocks.MockPublisher

	scheduler *Scheduler
	cfg       config.SchedulerConfig
	now       time.Time
}

func (s *SchedulerTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.jobs = mocks.NewMockJobStore(s.ctrl)
	s.executor = mocks.NewMockExecutor(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)

	s.cfg = config.SchedulerConfig{
		MaxJobs:     5,
		LockTimeout: 30 * time.Minute,
		JobTimeout:  time.Minute,
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.scheduler = NewScheduler(s.jobs, s.executor, s.publisher, s.cfg, logger)
	s.now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	s.scheduler.now = func() time.Time { return s.now }
}

func (s *SchedulerTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestSchedulerTestSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func newJob(tenantID uuid.UUID) domain.FetchJob {
	return domain.FetchJob{
		ID:        uuid.New(),
		TenantID:  tenantID,
		AccountID: uuid.New(),
		Status:    domain.JobQueued,
	}
}

// executeAs returns a DoAndReturn func that answers each job with the given
// status and records execution order.
func (s *SchedulerTestSuite) executeAs(status domain.JobStatus, order *[]uuid.UUID) func(context.Context, *domain.FetchJob) domain.JobOutcome {
	return func(_ context.Context, job *domain.FetchJob) domain.JobOutcome {
		s.Equal(domain.JobRunning, job.Status)
		s.Equal(&s.now, job.LockedAt)
		*order = append(*order, job.ID)
		return domain.JobOutcome{JobID: job.ID, TenantID: job.TenantID, Status: status}
	}
}

func (s *SchedulerTestSuite) expectReclaim() {
	s.jobs.EXPECT().ReclaimStale(gomock.Any(), s.now.Add(-30*time.Minute)).Return(int64(0), nil)
}

func (s *SchedulerTestSuite) TestRunCycle_OneJobPerTenant() {
	ctx := context.Background()
	tenantA, tenantB := uuid.New(), uuid.New()
	jobs := []domain.FetchJob{newJob(tenantA), newJob(tenantA), newJob(tenantB)}

	s.expectReclaim()
	s.jobs.EXPECT().ListEligible(gomock.Any(), domain.EligibleStatuses, 3).Return(jobs, nil)
	s.jobs.EXPECT().Claim(gomock.Any(), jobs[0].ID, s.now).Return(true, nil)
	s.jobs.EXPECT().Claim(gomock.Any(), jobs[2].ID, s.now).Return(true, nil)

	var order []uuid.UUID
	s.executor.EXPECT().Execute(gomock.Any(), gomock.Any()).
		DoAndReturn(s.executeAs(domain.JobCompleted, &order)).Times(2)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	outcomes, err := s.scheduler.RunCycle(ctx, 3)

	s.Require().NoError(err)
	s.Len(outcomes, 2)
	s.Equal([]uuid.UUID{jobs[0].ID, jobs[2].ID}, order)
}

func (s *SchedulerTestSuite) TestRunCycle_SkipsLostClaim() {
	ctx := context.Background()
	jobs := []domain.FetchJob{newJob(uuid.New()), newJob(uuid.New())}

	s.expectReclaim()
	s.jobs.EXPECT().ListEligible(gomock.Any(), domain.EligibleStatuses, 5).Return(jobs, nil)
	s.jobs.EXPECT().Claim(gomock.Any(), jobs[0].ID, s.now).Return(false, nil)
	s.jobs.EXPECT().Claim(gomock.Any(), jobs[1].ID, s.now).Return(true, nil)

	var order []uuid.UUID
	s.executor.EXPECT().Execute(gomock.Any(), gomock.Any()).
		DoAndReturn(s.executeAs(domain.JobCompleted, &order))
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	outcomes, err := s.scheduler.RunCycle(ctx, 0)

	s.Require().NoError(err)
	s.Require().Len(outcomes, 1)
	s.Equal(jobs[1].ID, outcomes[0].JobID)
}

func (s *SchedulerTestSuite) TestRunCycle_FailedJobDoesNotStopOthers() {
	ctx := context.Background()
	jobs := []domain.FetchJob{newJob(uuid.New()), newJob(uuid.New()), newJob(uuid.New())}

	s.expectReclaim()
	s.jobs.EXPECT().ListEligible(gomock.Any(), domain.EligibleStatuses, 5).Return(jobs, nil)
	s.jobs.EXPECT().Claim(gomock.Any(), jobs[0].ID, s.now).Return(true, nil)
	s.jobs.EXPECT().Claim(gomock.Any(), jobs[1].ID, s.now).Return(false, errors.New("deadlock"))
	s.jobs.EXPECT().Claim(gomock.Any(), jobs[2].ID, s.now).Return(true, nil)

	var order []uuid.UUID
	gomock.InOrder(
		s.executor.EXPECT().Execute(gomock.Any(), gomock.Any()).
			DoAndReturn(s.executeAs(domain.JobFailed, &order)),
		s.executor.EXPECT().Execute(gomock.Any(), gomock.Any()).
			DoAndReturn(s.executeAs(domain.JobRateLimited, &order)),
	)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down")).Times(2)

	outcomes, err := s.scheduler.RunCycle(ctx, 5)

	s.Require().NoError(err)
	s.Require().Len(outcomes, 3)
	s.Equal(domain.JobFailed, outcomes[0].Status)
	s.Equal(jobs[1].ID, outcomes[1].JobID)
	s.True(outcomes[1].Skipped)
	s.Equal(domain.JobQueued, outcomes[1].Status)
	s.Contains(outcomes[1].Error, "deadlock")
	s.Equal(domain.JobRateLimited, outcomes[2].Status)
	s.Equal([]uuid.UUID{jobs[0].ID, jobs[2].ID}, order)
}

func (s *SchedulerTestSuite) TestRunCycle_FailedClaimFallsThroughToTenantsNextJob() {
	ctx := context.Background()
	tenant := uuid.New()
	limited := newJob(tenant)
	limited.Status = domain.JobRateLimited
	queued := newJob(tenant)
	queued.AccountID = limited.AccountID
	jobs := []domain.FetchJob{limited, queued}

	for cycle := 0; cycle < 2; cycle++ {
		s.expectReclaim()
		s.jobs.EXPECT().ListEligible(gomock.Any(), domain.EligibleStatuses, 5).Return(jobs, nil)
		s.jobs.EXPECT().Claim(gomock.Any(), limited.ID, s.now).
			Return(false, errors.New(`duplicate key value violates unique constraint "idx_fetch_jobs_one_active"`))
		s.jobs.EXPECT().Claim(gomock.Any(), queued.ID, s.now).Return(true, nil)

		var order []uuid.UUID
		s.executor.EXPECT().Execute(gomock.Any(), gomock.Any()).
			DoAndReturn(s.executeAs(domain.JobCompleted, &order))
		s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

		outcomes, err := s.scheduler.RunCycle(ctx, 5)

		s.Require().NoError(err)
		s.Require().Len(outcomes, 2)
		s.True(outcomes[0].Skipped)
		s.Equal(limited.ID, outcomes[0].JobID)
		s.Equal(queued.ID, outcomes[1].JobID)
		s.Equal(domain.JobCompleted, outcomes[1].Status)
		s.Equal([]uuid.UUID{queued.ID}, order)
	}
}

func (s *SchedulerTestSuite) TestRunCycle_LostClaimFallsThroughToTenantsNextJob() {
	ctx := context.Background()
	tenant := uuid.New()
	jobs := []domain.FetchJob{newJob(tenant), newJob(tenant), newJob(tenant)}

	s.expectReclaim()
	s.jobs.EXPECT().ListEligible(gomock.Any(), domain.EligibleStatuses, 5).Return(jobs, nil)
	s.jobs.EXPECT().Claim(gomock.Any(), jobs[0].ID, s.now).Return(false, nil)
	s.jobs.EXPECT().Claim(gomock.Any(), jobs[1].ID, s.now).Return(true, nil)

	var order []uuid.UUID
	s.executor.EXPECT().Execute(gomock.Any(), gomock.Any()).
		DoAndReturn(s.executeAs(domain.JobCompleted, &order))
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	outcomes, err := s.scheduler.RunCycle(ctx, 0)

	s.Require().NoError(err)
	s.Require().Len(outcomes, 1)
	s.Equal([]uuid.UUID{jobs[1].ID}, order)
}

func (s *SchedulerTestSuite) TestRunCycle_NoEligibleJobs() {
	ctx := context.Background()

	s.jobs.EXPECT().ReclaimStale(gomock.Any(), gomock.Any()).Return(int64(2), nil)
	s.jobs.EXPECT().ListEligible(gomock.Any(), domain.EligibleStatuses, 5).Return(nil, nil)

	outcomes, err := s.scheduler.RunCycle(ctx, 5)

	s.Require().NoError(err)
	s.Empty(outcomes)
}

func (s *SchedulerTestSuite) TestRunCycle_ListError() {
	ctx := context.Background()

	s.expectReclaim()
	s.jobs.EXPECT().ListEligible(gomock.Any(), domain.EligibleStatuses, 5).Return(nil, errors.New("connection reset"))

	_, err := s.scheduler.RunCycle(ctx, 5)

	s.Error(err)
	s.Contains(err.Error(), "list eligible jobs")
}

func (s *SchedulerTestSuite) TestRunCycle_WithoutPublisher() {
	ctx := context.Background()
	s.scheduler.publisher = nil
	jobs := []domain.FetchJob{newJob(uuid.New())}

	s.expectReclaim()
	s.jobs.EXPECT().ListEligible(gomock.Any(), domain.EligibleStatuses, 5).Return(jobs, nil)
	s.jobs.EXPECT().Claim(gomock.Any(), jobs[0].ID, s.now).Return(true, nil)

	var order []uuid.UUID
	s.executor.EXPECT().Execute(gomock.Any(), gomock.Any()).
		DoAndReturn(s.executeAs(domain.JobCompleted, &order))

	outcomes, err := s.scheduler.RunCycle(ctx, 5)

	s.Require().NoError(err)
	s.Len(outcomes, 1)
}

func (s *SchedulerTestSuite) TestTrigger_RejectsBadExpression() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	trigger := NewTrigger(s.scheduler, "not a cron expression", time.Minute, logger)

	err := trigger.Start(context.Background())

	s.Error(err)
	s.Contains(err.Error(), "parse cron expression")
}
