package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/google/uuid"

	"engagement_tracker/internal/calllog"
	"engagement_tracker/internal/domain"
	"engagement_tracker/internal/xapi"
)

type Client interface {
	GetUser(ctx context.Context, token, userID string) (*xapi.UserResponse, error)
	GetUserPosts(ctx context.Context, token, userID string, q xapi.PostsQuery) (*xapi.PostsResponse, error)
}

type CredentialResolver interface {
	Resolve(ctx context.Context, tenantID uuid.UUID) (string, error)
}

type CallRecorder interface {
	Record(ctx context.Context, job *domain.FetchJob, call calllog.Call)
}

type AccountStore interface {
	GetByID(ctx context.Context, tenantID, accountID uuid.UUID) (*domain.TrackedAccount, error)
	UpdateFollowers(ctx context.Context, accountID uuid.UUID, followers int64) error
	AdvanceCursor(ctx context.Context, accountID uuid.UUID, sinceID string) error
}

type SnapshotStore interface {
	Insert(ctx context.Context, snapshot *domain.AccountSnapshot) error
}

type PostStore interface {
	Upsert(ctx context.Context, post *domain.Post) error
}

type JobStore interface {
	Finish(ctx context.Context, job *domain.FetchJob) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
