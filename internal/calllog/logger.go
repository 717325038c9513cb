// Package calllog records the outcome of every upstream call.
package calllog

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"engagement_tracker/internal/domain"
)

// DefaultUnits is the estimated cost of one upstream request.
const DefaultUnits = 1

type Store interface {
	Insert(ctx context.Context, entry *domain.APICallLog) error
}

// Call describes one finished upstream request.
type Call struct {
	Endpoint string
	Method   string
	Status   int
	Latency  time.Duration
	Error    string
}

type Logger struct {
	store  Store
	units  map[string]int
	now    func() time.Time
	logger *slog.Logger
}

// New builds a call logger. units overrides the per-endpoint cost; endpoints
// not listed cost DefaultUnits.
func New(store Store, units map[string]int, logger *slog.Logger) *Logger {
	return &Logger{
		store:  store,
		units:  units,
		now:    time.Now,
		logger: logger.With("component", "calllog"),
	}
}

// Record persists a call. Failures are logged and swallowed: losing an audit
// row must not fail the job that made the call.
func (l *Logger) Record(ctx context.Context, job *domain.FetchJob, call Call) {
	method := call.Method
	if method == "" {
		method = http.MethodGet
	}
	jobID := job.ID

	entry := &domain.APICallLog{
		ID:             uuid.New(),
		TenantID:       job.TenantID,
		JobID:          &jobID,
		Endpoint:       call.Endpoint,
		Method:         method,
		StatusCode:     call.Status,
		EstimatedUnits: l.unitsFor(call.Endpoint),
		ResponseTimeMs: call.Latency.Milliseconds(),
		CreatedAt:      l.now().UTC(),
	}
	if call.Error != "" {
		msg := call.Error
		entry.ErrorMessage = &msg
	}

	if err := l.store.Insert(ctx, entry); err != nil {
		l.logger.Warn("failed to record api call",
			"job_id", job.ID,
			"endpoint", call.Endpoint,
			"status", call.Status,
			"error", err,
		)
	}
}

func (l *Logger) unitsFor(endpoint string) int {
	if u, ok := l.units[endpoint]; ok {
		return u
	}
	return DefaultUnits
}
