package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/logtide/internal/domain/identity"
	"github.com/iota-uz/logtide/pkg/composables"
	"github.com/iota-uz/logtide/pkg/repo"
)

var ErrIdentityNotFound = errors.New("identity not found")

type PgIdentityRepository struct{}

func NewIdentityRepository() identity.Repository {
	return &PgIdentityRepository{}
}

const identityColumns = "id, user_id, provider_id, provider_user_id, created_at"

func scanIdentity(row pgx.Row) (identity.Identity, error) {
	var i identity.Identity
	if err := row.Scan(&i.ID, &i.UserID, &i.ProviderID, &i.ProviderUserID, &i.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.Identity{}, ErrIdentityNotFound
		}
		return identity.Identity{}, err
	}
	return i, nil
}

func (r *PgIdentityRepository) GetByProvider(ctx context.Context, providerID uuid.UUID, providerUserID string) (identity.Identity, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return identity.Identity{}, err
	}
	return scanIdentity(q.QueryRow(ctx, `
		SELECT `+identityColumns+` FROM user_identities WHERE provider_id = $1 AND provider_user_id = $2
	`, providerID, providerUserID))
}

func (r *PgIdentityRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]identity.Identity, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `SELECT `+identityColumns+` FROM user_identities WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []identity.Identity
	for rows.Next() {
		i, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *PgIdentityRepository) Create(ctx context.Context, i identity.Identity) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, repo.Insert("user_identities",
		[]string{"id", "user_id", "provider_id", "provider_user_id", "created_at"}),
		i.ID, i.UserID, i.ProviderID, i.ProviderUserID, i.CreatedAt)
	return err
}

func (r *PgIdentityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, "DELETE FROM user_identities WHERE id = $1", id)
	return err
}

func (r *PgIdentityRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	err = q.QueryRow(ctx, "SELECT count(*) FROM user_identities WHERE user_id = $1", userID).Scan(&count)
	return count, err
}
