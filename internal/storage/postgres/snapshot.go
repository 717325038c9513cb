package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"engagement_tracker/internal/domain"
)

type SnapshotStore struct {
	db *sqlx.DB
}

func NewSnapshotStore(db *sqlx.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) Insert(ctx context.Context, snapshot *domain.AccountSnapshot) error {
	query := `
		INSERT INTO account_snapshots (
			id, tenant_id, tracked_account_id, followers_count, following_count,
			tweet_count, listed_count, snapshot_at
		) VALUES (
			:id, :tenant_id, :tracked_account_id, :followers_count, :following_count,
			:tweet_count, :listed_count, :snapshot_at
		)`

	_, err := sqlx.NamedExecContext(ctx, GetExecutor(ctx, s.db), query, snapshot)
	return err
}
