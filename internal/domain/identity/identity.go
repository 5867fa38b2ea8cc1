// Package identity models UserIdentity, the link between a User and a
// provider-scoped external account.
package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Identity is unique per (ProviderID, ProviderUserID); a User may hold
// several, and must always hold at least one (enforced by the auth
// service's unlink path, not here).
type Identity struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	ProviderID     uuid.UUID
	ProviderUserID string
	CreatedAt      time.Time
}

type Repository interface {
	GetByProvider(ctx context.Context, providerID uuid.UUID, providerUserID string) (Identity, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Identity, error)
	Create(ctx context.Context, i Identity) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}
