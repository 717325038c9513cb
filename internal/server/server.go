// Package server exposes the scheduling trigger and the analytics read
// endpoints over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"engagement_tracker/internal/analytics"
	"engagement_tracker/internal/config"
	"engagement_tracker/internal/domain"
)

const (
	headerCronSecret = "X-Cron-Secret"
	headerTenantID   = "X-Tenant-ID"
)

type CycleRunner interface {
	RunCycle(ctx context.Context, maxJobs int) ([]domain.JobOutcome, error)
}

type Analytics interface {
	Summary(ctx context.Context, filter domain.PostFilter) (*analytics.EngagementSummary, error)
	Creative(ctx context.Context, filter domain.PostFilter, limit int) (*analytics.CreativeSummary, error)
	Audit(ctx context.Context, tenantID uuid.UUID, from, to *time.Time) (*analytics.AuditSummary, error)
}

type Server struct {
	cfg       config.ServerConfig
	scheduler CycleRunner
	analytics Analytics
	maxJobs   int
	server    *http.Server
	logger    *slog.Logger
}

func NewServer(
	cfg config.ServerConfig,
	scheduler CycleRunner,
	analytics Analytics,
	maxJobs int,
	logger *slog.Logger,
) *Server {
	s := &Server{
		cfg:       cfg,
		scheduler: scheduler,
		analytics: analytics,
		maxJobs:   maxJobs,
		logger:    logger.With("component", "server"),
	}

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the routed handler, for use without a listener in tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/cron/run-jobs", s.handleRunJobs)
	mux.HandleFunc("GET /api/analytics", s.handleSummary)
	mux.HandleFunc("GET /api/analytics/creative", s.handleCreative)
	mux.HandleFunc("GET /api/audit", s.handleAudit)
	return mux
}

func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.cfg.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// runJobsResponse lists every executed job plus jobs skipped on a failed
// claim; Processed counts only the executed ones.
type runJobsResponse struct {
	Processed int                 `json:"processed"`
	Results   []domain.JobOutcome `json:"results"`
}

func (s *Server) handleRunJobs(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get(headerCronSecret)
	if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.CronSecret)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// A cycle outlives the request: the cron caller may time out or hang up
	// while jobs are still running.
	outcomes, err := s.scheduler.RunCycle(context.WithoutCancel(r.Context()), s.maxJobs)
	if err != nil {
		s.logger.Error("run cycle failed", "error", err)
		writeError(w, http.StatusInternalServerError, "run cycle failed")
		return
	}

	processed := 0
	for _, o := range outcomes {
		if !o.Skipped {
			processed++
		}
	}
	writeJSON(w, http.StatusOK, runJobsResponse{
		Processed: processed,
		Results:   outcomes,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.postFilter(w, r)
	if !ok {
		return
	}

	summary, err := s.analytics.Summary(r.Context(), filter)
	if err != nil {
		s.logger.Error("engagement summary failed", "tenant_id", filter.TenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute analytics")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCreative(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.postFilter(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = l
	}

	summary, err := s.analytics.Creative(r.Context(), filter, limit)
	if err != nil {
		s.logger.Error("creative summary failed", "tenant_id", filter.TenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute creative analytics")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.analytics.Audit(r.Context(), tenantID, from, to)
	if err != nil {
		s.logger.Error("audit failed", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute audit")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) postFilter(w http.ResponseWriter, r *http.Request) (domain.PostFilter, bool) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return domain.PostFilter{}, false
	}
	filter := domain.PostFilter{TenantID: tenantID}

	if v := r.URL.Query().Get("account_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid account_id")
			return domain.PostFilter{}, false
		}
		filter.AccountID = &id
	}

	from, to, err := dateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return domain.PostFilter{}, false
	}
	filter.From, filter.To = from, to
	return filter, true
}

// tenant reads the tenant id set by the authenticating proxy.
func tenant(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.Header.Get(headerTenantID))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, false
	}
	return id, true
}

func dateRange(r *http.Request) (*time.Time, *time.Time, error) {
	q := r.URL.Query()
	from, err := parseDate(q.Get("date_from"), false)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid date_from: %w", err)
	}
	to, err := parseDate(q.Get("date_to"), true)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid date_to: %w", err)
	}
	return from, to, nil
}

// parseDate accepts RFC3339 or YYYY-MM-DD. A bare date used as an upper
// bound covers the whole day.
func parseDate(v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
