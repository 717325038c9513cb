package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"engagement_tracker/internal/domain"
)

type ConnectionStore struct {
	db *sqlx.DB
}

func NewConnectionStore(db *sqlx.DB) *ConnectionStore {
	return &ConnectionStore{db: db}
}

func (s *ConnectionStore) Upsert(ctx context.Context, conn *domain.Connection) error {
	query := `
		INSERT INTO x_connections (id, tenant_id, encrypted_bearer_token, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id) DO UPDATE SET
			encrypted_bearer_token = EXCLUDED.encrypted_bearer_token,
			status = EXCLUDED.status,
			updated_at = NOW()`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		conn.ID, conn.TenantID, conn.EncryptedToken, conn.Status,
	)
	return err
}

// GetByTenant returns nil, nil when the tenant has no connection.
func (s *ConnectionStore) GetByTenant(ctx context.Context, tenantID uuid.UUID) (*domain.Connection, error) {
	var conn domain.Connection
	query := `
		SELECT id, tenant_id, encrypted_bearer_token, status
		FROM x_connections
		WHERE tenant_id = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &conn, query, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}
