package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"engagement_tracker/internal/domain"
)

var (
	ErrNotFound = errors.New("connection not found")
	ErrInvalid  = errors.New("connection marked invalid")
	ErrDecrypt  = errors.New("token could not be decrypted")
)

type ConnectionStore interface {
	// GetByTenant returns nil without error when the tenant has no connection.
	GetByTenant(ctx context.Context, tenantID uuid.UUID) (*domain.Connection, error)
}

type Resolver struct {
	connections ConnectionStore
	cipher      *Cipher
}

func NewResolver(connections ConnectionStore, cipher *Cipher) *Resolver {
	return &Resolver{connections: connections, cipher: cipher}
}

// Resolve returns the tenant's plaintext bearer token. The token must not
// outlive the job that requested it.
func (r *Resolver) Resolve(ctx context.Context, tenantID uuid.UUID) (string, error) {
	conn, err := r.connections.GetByTenant(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("get connection: %w", err)
	}
	if conn == nil {
		return "", ErrNotFound
	}
	if conn.Status == domain.ConnectionInvalid {
		return "", ErrInvalid
	}

	token, err := r.cipher.Decrypt(conn.EncryptedToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return token, nil
}
