package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/logtide/internal/domain/authprovider"
	"github.com/iota-uz/logtide/pkg/composables"
	"github.com/iota-uz/logtide/pkg/repo"
)

var ErrAuthProviderNotFound = errors.New("auth provider not found")

type PgAuthProviderRepository struct{}

func NewAuthProviderRepository() authprovider.Repository {
	return &PgAuthProviderRepository{}
}

func scanAuthProvider(row pgx.Row) (authprovider.AuthProvider, error) {
	var (
		id                         uuid.UUID
		kind, slug, displayName    string
		enabled, isDefault         bool
		displayOrder               int
		configRaw                  []byte
	)
	if err := row.Scan(&id, &kind, &slug, &displayName, &enabled, &isDefault, &displayOrder, &configRaw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAuthProviderNotFound
		}
		return nil, err
	}
	var config map[string]any
	if len(configRaw) > 0 {
		if err := json.Unmarshal(configRaw, &config); err != nil {
			return nil, err
		}
	}
	return authprovider.New(authprovider.Kind(kind), slug, displayName, config,
		authprovider.WithID(id), authprovider.WithEnabled(enabled),
		authprovider.WithDefault(isDefault), authprovider.WithDisplayOrder(displayOrder))
}

const authProviderColumns = "id, kind, slug, display_name, enabled, is_default, display_order, config"

func (r *PgAuthProviderRepository) GetByID(ctx context.Context, id uuid.UUID) (authprovider.AuthProvider, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	return scanAuthProvider(q.QueryRow(ctx, "SELECT "+authProviderColumns+" FROM auth_providers WHERE id = $1", id))
}

func (r *PgAuthProviderRepository) GetBySlug(ctx context.Context, slug string) (authprovider.AuthProvider, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	return scanAuthProvider(q.QueryRow(ctx, "SELECT "+authProviderColumns+" FROM auth_providers WHERE slug = $1", slug))
}

func (r *PgAuthProviderRepository) List(ctx context.Context) ([]authprovider.AuthProvider, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, "SELECT "+authProviderColumns+" FROM auth_providers ORDER BY display_order, created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []authprovider.AuthProvider
	for rows.Next() {
		p, err := scanAuthProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PgAuthProviderRepository) Create(ctx context.Context, p authprovider.AuthProvider) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	configRaw, err := json.Marshal(p.Config())
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, repo.Insert("auth_providers",
		[]string{"id", "kind", "slug", "display_name", "enabled", "is_default", "display_order", "config"}),
		p.ID(), string(p.Kind()), p.Slug(), p.DisplayName(), p.Enabled(), p.IsDefault(), p.DisplayOrder(), configRaw)
	return err
}

func (r *PgAuthProviderRepository) Update(ctx context.Context, p authprovider.AuthProvider) error {
	if p.Kind() == authprovider.KindLocal && !p.Enabled() {
		return authprovider.ErrLocalImmutable
	}
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	configRaw, err := json.Marshal(p.Config())
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, repo.Update("auth_providers",
		[]string{"display_name", "enabled", "is_default", "display_order", "config"}, "id = $6"),
		p.DisplayName(), p.Enabled(), p.IsDefault(), p.DisplayOrder(), configRaw, p.ID())
	return err
}

func (r *PgAuthProviderRepository) Reorder(ctx context.Context, order map[uuid.UUID]int) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	for id, pos := range order {
		if _, err := q.Exec(ctx, "UPDATE auth_providers SET display_order = $1 WHERE id = $2", pos, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *PgAuthProviderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	var kind string
	if err := q.QueryRow(ctx, "SELECT kind FROM auth_providers WHERE id = $1", id).Scan(&kind); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAuthProviderNotFound
		}
		return err
	}
	if authprovider.Kind(kind) == authprovider.KindLocal {
		return authprovider.ErrLocalImmutable
	}
	linked, err := r.LinkedUserCount(ctx, id)
	if err != nil {
		return err
	}
	if linked > 0 {
		return authprovider.ErrHasLinkedUsers
	}
	_, err = q.Exec(ctx, "DELETE FROM auth_providers WHERE id = $1", id)
	return err
}

func (r *PgAuthProviderRepository) LinkedUserCount(ctx context.Context, providerID uuid.UUID) (int64, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	err = q.QueryRow(ctx, "SELECT count(*) FROM user_identities WHERE provider_id = $1", providerID).Scan(&count)
	return count, err
}

func (r *PgAuthProviderRepository) CreatedAt(ctx context.Context, id uuid.UUID) (time.Time, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return time.Time{}, err
	}
	var createdAt time.Time
	err = q.QueryRow(ctx, "SELECT created_at FROM auth_providers WHERE id = $1", id).Scan(&createdAt)
	return createdAt, err
}
