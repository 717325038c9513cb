package calllog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engagement_tracker/internal/domain"
)

type recordingStore struct {
	entries []*domain.APICallLog
	err     error
}

func (r *recordingStore) Insert(_ context.Context, entry *domain.APICallLog) error {
	r.entries = append(r.entries, entry)
	return r.err
}

func TestRecord(t *testing.T) {
	store := &recordingStore{}
	l := New(store, map[string]int{"/2/users/:id/tweets": 2}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	fixed := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	job := &domain.FetchJob{ID: uuid.New(), TenantID: uuid.New()}

	l.Record(context.Background(), job, Call{Endpoint: "/2/users/:id", Status: 200, Latency: 120 * time.Millisecond})
	l.Record(context.Background(), job, Call{Endpoint: "/2/users/:id/tweets", Status: 429, Latency: time.Second, Error: "Rate limited"})

	require.Len(t, store.entries, 2)

	first := store.entries[0]
	assert.Equal(t, job.TenantID, first.TenantID)
	require.NotNil(t, first.JobID)
	assert.Equal(t, job.ID, *first.JobID)
	assert.Equal(t, "GET", first.Method)
	assert.Equal(t, 1, first.EstimatedUnits)
	assert.Equal(t, int64(120), first.ResponseTimeMs)
	assert.Nil(t, first.ErrorMessage)
	assert.Equal(t, fixed, first.CreatedAt)

	second := store.entries[1]
	assert.Equal(t, 429, second.StatusCode)
	assert.Equal(t, 2, second.EstimatedUnits)
	require.NotNil(t, second.ErrorMessage)
	assert.Equal(t, "Rate limited", *second.ErrorMessage)
}

func TestRecord_StoreErrorIsSwallowed(t *testing.T) {
	store := &recordingStore{err: errors.New("insert failed")}
	l := New(store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.NotPanics(t, func() {
		l.Record(context.Background(), &domain.FetchJob{ID: uuid.New()}, Call{Endpoint: "/2/users/:id", Status: 500})
	})
	assert.Len(t, store.entries, 1)
}
