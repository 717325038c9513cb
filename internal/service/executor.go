package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"engagement_tracker/internal/calllog"
	"engagement_tracker/internal/classify"
	"engagement_tracker/internal/domain"
	"engagement_tracker/internal/xapi"
)

const (
	finishTimeout      = 10 * time.Second
	interruptedMessage = "job interrupted, requeued"
)

type Executor struct {
	client      Client
	credentials CredentialResolver
	calls       CallRecorder
	accounts    AccountStore
	snapshots   SnapshotStore
	posts       PostStore
	jobs        JobStore
	txManager   TransactionManager
	pageSize    int
	now         func() time.Time
	logger      *slog.Logger
}

func NewExecutor(
	client Client,
	credentials CredentialResolver,
	calls CallRecorder,
	accounts AccountStore,
	snapshots SnapshotStore,
	posts PostStore,
	jobs JobStore,
	txManager TransactionManager,
	pageSize int,
	logger *slog.Logger,
) *Executor {
	if pageSize <= 0 {
		pageSize = xapi.DefaultPageSize
	}
	return &Executor{
		client:      client,
		credentials: credentials,
		calls:       calls,
		accounts:    accounts,
		snapshots:   snapshots,
		posts:       posts,
		jobs:        jobs,
		txManager:   txManager,
		pageSize:    pageSize,
		now:         time.Now,
		logger:      logger.With("component", "executor"),
	}
}

// Execute runs one claimed job to a final status and persists it. It never
// returns an error: every failure is folded into the job row and the outcome.
func (e *Executor) Execute(ctx context.Context, job *domain.FetchJob) (outcome domain.JobOutcome) {
	logger := e.logger.With(
		"job_id", job.ID,
		"tenant_id", job.TenantID,
		"account_id", job.AccountID,
	)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", "panic", r)
			outcome = e.finish(ctx, logger, job, fmt.Errorf("panic: %v", r))
		}
	}()

	logger.Info("starting job")
	err := e.run(ctx, logger, job)
	return e.finish(ctx, logger, job, err)
}

func (e *Executor) run(ctx context.Context, logger *slog.Logger, job *domain.FetchJob) error {
	token, err := e.credentials.Resolve(ctx, job.TenantID)
	if err != nil {
		return &CredentialError{Err: err}
	}

	account, err := e.accounts.GetByID(ctx, job.TenantID, job.AccountID)
	if err != nil {
		return fmt.Errorf("get tracked account: %w", err)
	}
	logger = logger.With("platform_user_id", account.PlatformUserID)

	if err := e.refreshAccount(ctx, logger, job, account, token); err != nil {
		return err
	}

	return e.fetchPosts(ctx, logger, job, account, token)
}

// refreshAccount looks the account up upstream and records a follower
// snapshot. Only a 429 or a transport failure stops the job; any other
// failure leaves the previous follower count in place.
func (e *Executor) refreshAccount(
	ctx context.Context,
	logger *slog.Logger,
	job *domain.FetchJob,
	account *domain.TrackedAccount,
	token string,
) error {
	start := time.Now()
	resp, err := e.client.GetUser(ctx, token, account.PlatformUserID)
	job.ActualRequests++
	if err != nil {
		call := calllog.Call{
			Endpoint: xapi.EndpointUser,
			Latency:  time.Since(start),
			Error:    err.Error(),
		}
		if resp != nil {
			call.Status = resp.Status
		}
		e.calls.Record(ctx, job, call)
		return fmt.Errorf("lookup user: %w", err)
	}
	e.calls.Record(ctx, job, calllog.Call{
		Endpoint: xapi.EndpointUser,
		Status:   resp.Status,
		Latency:  time.Since(start),
		Error:    resp.ErrorMessage(),
	})

	switch {
	case resp.Status == http.StatusTooManyRequests:
		return &RateLimitError{Endpoint: xapi.EndpointUser}
	case resp.Status != http.StatusOK || resp.Data == nil || resp.Data.PublicMetrics == nil:
		logger.Warn("user lookup failed, continuing without snapshot",
			"status", resp.Status,
			"error", resp.ErrorMessage(),
		)
		return nil
	}

	m := resp.Data.PublicMetrics
	snapshot := &domain.AccountSnapshot{
		ID:             uuid.New(),
		TenantID:       job.TenantID,
		AccountID:      account.ID,
		FollowersCount: m.FollowersCount,
		FollowingCount: m.FollowingCount,
		PostCount:      m.TweetCount,
		ListedCount:    m.ListedCount,
		SnapshotAt:     e.now().UTC(),
	}

	err = e.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := e.snapshots.Insert(ctx, snapshot); err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		if err := e.accounts.UpdateFollowers(ctx, account.ID, m.FollowersCount); err != nil {
			return fmt.Errorf("update followers: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	account.FollowersCount = m.FollowersCount
	return nil
}

func (e *Executor) fetchPosts(
	ctx context.Context,
	logger *slog.Logger,
	job *domain.FetchJob,
	account *domain.TrackedAccount,
	token string,
) error {
	var sinceID string
	if account.CursorSinceID != nil {
		sinceID = *account.CursorSinceID
	}

	var (
		paginationToken string
		newest          string
		page            int
	)
	for {
		page++
		query := xapi.PostsQuery{
			SinceID:         sinceID,
			PaginationToken: paginationToken,
			MaxResults:      e.pageSize,
			StartTime:       job.PeriodStart,
			EndTime:         job.PeriodEnd,
		}

		start := time.Now()
		resp, err := e.client.GetUserPosts(ctx, token, account.PlatformUserID, query)
		job.ActualRequests++
		if err != nil {
			call := calllog.Call{
				Endpoint: xapi.EndpointUserPosts,
				Latency:  time.Since(start),
				Error:    err.Error(),
			}
			if resp != nil {
				call.Status = resp.Status
			}
			e.calls.Record(ctx, job, call)
			return fmt.Errorf("fetch posts page %d: %w", page, err)
		}
		e.calls.Record(ctx, job, calllog.Call{
			Endpoint: xapi.EndpointUserPosts,
			Status:   resp.Status,
			Latency:  time.Since(start),
			Error:    resp.ErrorMessage(),
		})

		switch {
		case resp.Status == http.StatusTooManyRequests:
			return &RateLimitError{Endpoint: xapi.EndpointUserPosts}
		case resp.Status != http.StatusOK:
			return &UpstreamError{
				Endpoint: xapi.EndpointUserPosts,
				Status:   resp.Status,
				Message:  resp.ErrorMessage(),
			}
		}

		stored, pageNewest, err := e.storePage(ctx, logger, job, resp)
		if err != nil {
			return fmt.Errorf("store posts page %d: %w", page, err)
		}
		job.PostsFetched += stored
		newest = maxID(newest, pageNewest, resp.NewestID())

		logger.Debug("stored page",
			"page", page,
			"posts", stored,
			"total", job.PostsFetched,
		)

		paginationToken = resp.NextToken()
		if paginationToken == "" {
			break
		}
	}

	if newest != "" && (sinceID == "" || compareIDs(newest, sinceID) > 0) {
		if err := e.accounts.AdvanceCursor(ctx, account.ID, newest); err != nil {
			return fmt.Errorf("advance cursor: %w", err)
		}
		logger.Info("advanced cursor", "since_id", newest)
	}
	return nil
}

// storePage upserts every post of a page in one transaction. Posts with an
// unparseable timestamp are skipped but still count towards the cursor.
func (e *Executor) storePage(
	ctx context.Context,
	logger *slog.Logger,
	job *domain.FetchJob,
	resp *xapi.PostsResponse,
) (int, string, error) {
	lookup := resp.MediaLookup()

	var newest string
	posts := make([]*domain.Post, 0, len(resp.Data))
	for _, p := range resp.Data {
		newest = maxID(newest, p.ID)

		postedAt, err := time.Parse(time.RFC3339, p.CreatedAt)
		if err != nil {
			logger.Warn("skipping post with invalid created_at",
				"post_id", p.ID,
				"created_at", p.CreatedAt,
			)
			continue
		}
		posts = append(posts, buildPost(job, p, postedAt, lookup))
	}

	if len(posts) == 0 {
		return 0, newest, nil
	}

	err := e.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		for _, post := range posts {
			if err := e.posts.Upsert(ctx, post); err != nil {
				return fmt.Errorf("upsert post %s: %w", post.PlatformPostID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, newest, err
	}
	return len(posts), newest, nil
}

func buildPost(job *domain.FetchJob, p xapi.Post, postedAt time.Time, lookup map[string]string) *domain.Post {
	tags := p.Tags()
	post := &domain.Post{
		ID:             uuid.New(),
		TenantID:       job.TenantID,
		AccountID:      job.AccountID,
		PlatformPostID: p.ID,
		Text:           p.Text,
		PostedAt:       postedAt.UTC(),
		MediaType:      classify.MediaType(p.MediaKeys(), lookup),
		Hashtags:       tags,
		Theme:          classify.Theme(p.Text, tags),
		AppealFrame:    classify.AppealFrame(p.Text, tags),
		RawJSON:        []byte(p.Raw),
	}
	if m := p.PublicMetrics; m != nil {
		post.LikesCount = m.LikeCount
		post.RepliesCount = m.ReplyCount
		post.RepostsCount = m.RetweetCount
		post.QuotesCount = m.QuoteCount
		post.ImpressionsCount = m.ImpressionCount
	}
	return post
}

// finish maps the run result onto the job row. The write uses a detached
// context so a job that hit its deadline still releases its lock.
func (e *Executor) finish(ctx context.Context, logger *slog.Logger, job *domain.FetchJob, runErr error) domain.JobOutcome {
	var (
		rateLimit  *RateLimitError
		credential *CredentialError
		upstream   *UpstreamError
	)

	job.LockedAt = nil
	job.ErrorMessage = nil
	job.CompletedAt = nil

	switch {
	case runErr == nil:
		job.Status = domain.JobCompleted
		logger.Info("job completed",
			"posts_fetched", job.PostsFetched,
			"actual_requests", job.ActualRequests,
		)
	case errors.As(runErr, &rateLimit):
		job.Status = domain.JobRateLimited
		logger.Warn("job rate limited",
			"endpoint", rateLimit.Endpoint,
			"posts_fetched", job.PostsFetched,
		)
	case errors.Is(runErr, context.Canceled):
		// The caller went away; nothing is wrong with the job itself.
		job.Status = domain.JobQueued
		msg := interruptedMessage
		job.ErrorMessage = &msg
		logger.Warn("job interrupted, requeued",
			"posts_fetched", job.PostsFetched,
			"error", runErr,
		)
	default:
		job.Status = domain.JobFailed
		msg := runErr.Error()
		switch {
		case errors.As(runErr, &credential):
			msg = credential.Error()
		case errors.As(runErr, &upstream):
			msg = upstream.Error()
		}
		job.ErrorMessage = &msg
		logger.Error("job failed", "error", runErr)
	}

	if job.Status.Terminal() {
		now := e.now().UTC()
		job.CompletedAt = &now
	}

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	if err := e.jobs.Finish(finishCtx, job); err != nil {
		logger.Error("failed to persist job result", "status", job.Status, "error", err)
	}

	outcome := domain.JobOutcome{
		JobID:          job.ID,
		TenantID:       job.TenantID,
		AccountID:      job.AccountID,
		Status:         job.Status,
		PostsFetched:   job.PostsFetched,
		ActualRequests: job.ActualRequests,
	}
	if job.ErrorMessage != nil {
		outcome.Error = *job.ErrorMessage
	}
	return outcome
}
