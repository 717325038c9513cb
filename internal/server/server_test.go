package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engagement_tracker/internal/analytics"
	"engagement_tracker/internal/config"
	"engagement_tracker/internal/domain"
)

type fakeRunner struct {
	outcomes []domain.JobOutcome
	err      error
	calls    int
	maxJobs  int
	ctxErr   error
}

func (f *fakeRunner) RunCycle(ctx context.Context, maxJobs int) ([]domain.JobOutcome, error) {
	f.calls++
	f.maxJobs = maxJobs
	f.ctxErr = ctx.Err()
	return f.outcomes, f.err
}

type fakeAnalytics struct {
	filter   domain.PostFilter
	limit    int
	auditTo  *time.Time
	auditErr error
}

func (f *fakeAnalytics) Summary(_ context.Context, filter domain.PostFilter) (*analytics.EngagementSummary, error) {
	f.filter = filter
	return &analytics.EngagementSummary{TotalPosts: 3, ERStats: analytics.ERStats{Avg: 0.0123}}, nil
}

func (f *fakeAnalytics) Creative(_ context.Context, filter domain.PostFilter, limit int) (*analytics.CreativeSummary, error) {
	f.filter = filter
	f.limit = limit
	return &analytics.CreativeSummary{TotalPosts: 3}, nil
}

func (f *fakeAnalytics) Audit(_ context.Context, _ uuid.UUID, _ *time.Time, to *time.Time) (*analytics.AuditSummary, error) {
	f.auditTo = to
	if f.auditErr != nil {
		return nil, f.auditErr
	}
	return &analytics.AuditSummary{TotalCalls: 7, RateLimitCount: 1}, nil
}

func newTestServer(runner *fakeRunner, a *fakeAnalytics) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.ServerConfig{Addr: ":0", CronSecret: "s3cret"}
	return NewServer(cfg, runner, a, 5, logger).Handler()
}

func TestRunJobs_RejectsBadSecret(t *testing.T) {
	runner := &fakeRunner{}
	h := newTestServer(runner, &fakeAnalytics{})

	for _, secret := range []string{"", "wrong", "s3cret-but-longer"} {
		req := httptest.NewRequest(http.MethodPost, "/api/cron/run-jobs", nil)
		if secret != "" {
			req.Header.Set(headerCronSecret, secret)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
	}
	assert.Zero(t, runner.calls)
}

func TestRunJobs_ReturnsOutcomes(t *testing.T) {
	jobID := uuid.New()
	runner := &fakeRunner{outcomes: []domain.JobOutcome{
		{JobID: jobID, Status: domain.JobCompleted, PostsFetched: 12, ActualRequests: 2},
		{JobID: uuid.New(), Status: domain.JobQueued, Skipped: true, Error: "claim job: deadlock"},
	}}
	h := newTestServer(runner, &fakeAnalytics{})

	req := httptest.NewRequest(http.MethodPost, "/api/cron/run-jobs", nil)
	req.Header.Set(headerCronSecret, "s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, runner.maxJobs)

	var body runJobsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Processed)
	require.Len(t, body.Results, 2)
	assert.True(t, body.Results[1].Skipped)
	assert.Equal(t, jobID, body.Results[0].JobID)
	assert.Equal(t, domain.JobCompleted, body.Results[0].Status)
}

func TestRunJobs_CycleSurvivesCallerHangup(t *testing.T) {
	runner := &fakeRunner{}
	h := newTestServer(runner, &fakeAnalytics{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/cron/run-jobs", nil).WithContext(ctx)
	req.Header.Set(headerCronSecret, "s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, runner.calls)
	assert.NoError(t, runner.ctxErr)
}

func TestRunJobs_CycleError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("db down")}
	h := newTestServer(runner, &fakeAnalytics{})

	req := httptest.NewRequest(http.MethodPost, "/api/cron/run-jobs", nil)
	req.Header.Set(headerCronSecret, "s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestRunJobs_MethodNotAllowed(t *testing.T) {
	h := newTestServer(&fakeRunner{}, &fakeAnalytics{})

	req := httptest.NewRequest(http.MethodGet, "/api/cron/run-jobs", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAnalytics_RequiresTenant(t *testing.T) {
	h := newTestServer(&fakeRunner{}, &fakeAnalytics{})

	for _, path := range []string{"/api/analytics", "/api/analytics/creative", "/api/audit"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestAnalytics_ParsesFilter(t *testing.T) {
	a := &fakeAnalytics{}
	h := newTestServer(&fakeRunner{}, a)
	tenantID, accountID := uuid.New(), uuid.New()

	req := httptest.NewRequest(http.MethodGet,
		"/api/analytics?account_id="+accountID.String()+"&date_from=2024-03-01&date_to=2024-03-31", nil)
	req.Header.Set(headerTenantID, tenantID.String())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tenantID, a.filter.TenantID)
	require.NotNil(t, a.filter.AccountID)
	assert.Equal(t, accountID, *a.filter.AccountID)
	require.NotNil(t, a.filter.From)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *a.filter.From)
	require.NotNil(t, a.filter.To)
	assert.Equal(t, time.Date(2024, 3, 31, 23, 59, 59, 999999999, time.UTC), *a.filter.To)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body["total_posts"])
}

func TestAnalytics_BadInput(t *testing.T) {
	h := newTestServer(&fakeRunner{}, &fakeAnalytics{})
	tenantID := uuid.New().String()

	for _, path := range []string{
		"/api/analytics?account_id=nope",
		"/api/analytics?date_from=03/01/2024",
		"/api/analytics/creative?limit=-1",
		"/api/audit?date_to=tomorrow",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(headerTenantID, tenantID)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestCreative_PassesLimit(t *testing.T) {
	a := &fakeAnalytics{}
	h := newTestServer(&fakeRunner{}, a)

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/creative?limit=3", nil)
	req.Header.Set(headerTenantID, uuid.New().String())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, a.limit)
}

func TestAudit_RFC3339Bound(t *testing.T) {
	a := &fakeAnalytics{}
	h := newTestServer(&fakeRunner{}, a)

	req := httptest.NewRequest(http.MethodGet, "/api/audit?date_to=2024-03-05T12:00:00Z", nil)
	req.Header.Set(headerTenantID, uuid.New().String())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, a.auditTo)
	assert.Equal(t, time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC), a.auditTo.UTC())

	var body analytics.AuditSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 7, body.TotalCalls)
}

func TestHealth(t *testing.T) {
	h := newTestServer(&fakeRunner{}, &fakeAnalytics{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
