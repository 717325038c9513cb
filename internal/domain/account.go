package domain

import (
	"time"

	"github.com/google/uuid"
)

type TrackedAccount struct {
	ID             uuid.UUID `db:"id"`
	TenantID       uuid.UUID `db:"tenant_id"`
	PlatformUserID string    `db:"x_user_id"`
	Username       string    `db:"username"`
	FollowersCount int64     `db:"followers_count"`
	CursorSinceID  *string   `db:"cursor_since_id"` // highest fully-ingested post id
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// AccountSnapshot is one point of the append-only follower time series.
type AccountSnapshot struct {
	ID             uuid.UUID `db:"id"`
	TenantID       uuid.UUID `db:"tenant_id"`
	AccountID      uuid.UUID `db:"tracked_account_id"`
	FollowersCount int64     `db:"followers_count"`
	FollowingCount int64     `db:"following_count"`
	PostCount      int64     `db:"tweet_count"`
	ListedCount    int64     `db:"listed_count"`
	SnapshotAt     time.Time `db:"snapshot_at"`
}

type ConnectionStatus string

const (
	ConnectionOK          ConnectionStatus = "ok"
	ConnectionInvalid     ConnectionStatus = "invalid"
	ConnectionRateLimited ConnectionStatus = "rate_limited"
	ConnectionUntested    ConnectionStatus = "untested"
)

// Connection holds a tenant's encrypted upstream bearer token.
type Connection struct {
	ID             uuid.UUID        `db:"id"`
	TenantID       uuid.UUID        `db:"tenant_id"`
	EncryptedToken string           `db:"encrypted_bearer_token"`
	Status         ConnectionStatus `db:"status"`
}
