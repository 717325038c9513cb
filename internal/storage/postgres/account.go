package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"engagement_tracker/internal/domain"
)

type AccountStore struct {
	db *sqlx.DB
}

func NewAccountStore(db *sqlx.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, account *domain.TrackedAccount) error {
	query := `
		INSERT INTO tracked_accounts (id, tenant_id, x_user_id, username, followers_count, cursor_since_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	return GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		account.ID,
		account.TenantID,
		account.PlatformUserID,
		account.Username,
		account.FollowersCount,
		account.CursorSinceID,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
}

func (s *AccountStore) GetByID(ctx context.Context, tenantID, accountID uuid.UUID) (*domain.TrackedAccount, error) {
	var account domain.TrackedAccount
	query := `
		SELECT id, tenant_id, x_user_id, username, followers_count, cursor_since_id, created_at, updated_at
		FROM tracked_accounts
		WHERE id = $1 AND tenant_id = $2`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &account, query, accountID, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tracked account %s: %w", accountID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *AccountStore) UpdateFollowers(ctx context.Context, accountID uuid.UUID, followers int64) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE tracked_accounts SET followers_count = $2, updated_at = NOW() WHERE id = $1`,
		accountID, followers,
	)
	return err
}

// AdvanceCursor moves cursor_since_id forward. Ids are compared as unsigned
// decimal strings, so a smaller id never overwrites a larger one.
func (s *AccountStore) AdvanceCursor(ctx context.Context, accountID uuid.UUID, sinceID string) error {
	query := `
		UPDATE tracked_accounts
		SET cursor_since_id = $2, updated_at = NOW()
		WHERE id = $1
		  AND (
			cursor_since_id IS NULL
			OR length(cursor_since_id) < length($2)
			OR (length(cursor_since_id) = length($2) AND cursor_since_id < $2)
		  )`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, accountID, sinceID)
	return err
}
