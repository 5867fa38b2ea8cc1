package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/google/uuid"

	"github.com/iota-uz/logtide/internal/domain/organization"
	"github.com/iota-uz/logtide/pkg/composables"
	"github.com/iota-uz/logtide/pkg/repo"
)

var ErrOrganizationNotFound = errors.New("organization not found")

type PgOrganizationRepository struct{}

func NewOrganizationRepository() organization.Repository {
	return &PgOrganizationRepository{}
}

func (r *PgOrganizationRepository) queryOne(ctx context.Context, where string, args ...any) (organization.Organization, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	row := q.QueryRow(ctx, `
		SELECT id, name, slug, owner_id, created_at FROM organizations WHERE `+where+`
	`, args...)
	return scanOrganization(row)
}

func scanOrganization(row pgx.Row) (organization.Organization, error) {
	var (
		id        uuid.UUID
		name      string
		slug      string
		ownerID   uuid.UUID
		createdAt time.Time
	)
	if err := row.Scan(&id, &name, &slug, &ownerID, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrganizationNotFound
		}
		return nil, err
	}
	return organization.New(name, slug, ownerID,
		organization.WithID(id),
		organization.WithCreatedAt(createdAt),
	), nil
}

func (r *PgOrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (organization.Organization, error) {
	return r.queryOne(ctx, "id = $1", id)
}

func (r *PgOrganizationRepository) GetBySlug(ctx context.Context, slug string) (organization.Organization, error) {
	return r.queryOne(ctx, "slug = $1", slug)
}

func (r *PgOrganizationRepository) GetPaginated(ctx context.Context, params *organization.FindParams) ([]organization.Organization, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	where, args := []string{"1 = 1"}, []any{}
	if len(params.IDs) > 0 {
		args = append(args, params.IDs)
		where = append(where, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	if params.Slug != "" {
		args = append(args, params.Slug)
		where = append(where, fmt.Sprintf("slug = $%d", len(args)))
	}

	rows, err := q.Query(ctx, `
		SELECT id, name, slug, owner_id, created_at FROM organizations
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC
		`+repo.FormatLimitOffset(params.Limit, params.Offset)+`
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []organization.Organization
	for rows.Next() {
		var (
			id        uuid.UUID
			name      string
			slug      string
			ownerID   uuid.UUID
			createdAt time.Time
		)
		if err := rows.Scan(&id, &name, &slug, &ownerID, &createdAt); err != nil {
			return nil, err
		}
		out = append(out, organization.New(name, slug, ownerID,
			organization.WithID(id),
			organization.WithCreatedAt(createdAt),
		))
	}
	return out, rows.Err()
}

func (r *PgOrganizationRepository) Count(ctx context.Context, params *organization.FindParams) (int64, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return 0, err
	}
	where, args := []string{"1 = 1"}, []any{}
	if params.Slug != "" {
		args = append(args, params.Slug)
		where = append(where, fmt.Sprintf("slug = $%d", len(args)))
	}
	var count int64
	err = q.QueryRow(ctx, "SELECT count(*) FROM organizations WHERE "+strings.Join(where, " AND "), args...).Scan(&count)
	return count, err
}

// Create inserts the organization and its owner membership row atomically:
// it joins the transaction attached via composables.WithTx, or opens its own
// when ctx carries none.
func (r *PgOrganizationRepository) Create(ctx context.Context, org organization.Organization) error {
	if _, inTx := composables.UsePoolTx(ctx); !inTx {
		pool, err := composables.UsePool(ctx)
		if err != nil {
			return err
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()
		if err := r.Create(composables.WithTx(ctx, tx), org); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, repo.Insert("organizations", []string{"id", "name", "slug", "owner_id", "created_at"}),
		org.ID(), org.Name(), org.Slug(), org.OwnerID(), org.CreatedAt())
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, repo.Insert("organization_members", []string{"organization_id", "user_id", "role"}),
		org.ID(), org.OwnerID(), organization.RoleOwner)
	return err
}

func (r *PgOrganizationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, "DELETE FROM organizations WHERE id = $1", id)
	return err
}

func (r *PgOrganizationRepository) AddMember(ctx context.Context, m organization.Member) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO organization_members (organization_id, user_id, role) VALUES ($1, $2, $3)
		ON CONFLICT (organization_id, user_id) DO UPDATE SET role = excluded.role
	`, m.OrganizationID, m.UserID, m.Role)
	return err
}

func (r *PgOrganizationRepository) RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, "DELETE FROM organization_members WHERE organization_id = $1 AND user_id = $2", orgID, userID)
	return err
}

func (r *PgOrganizationRepository) Members(ctx context.Context, orgID uuid.UUID) ([]organization.Member, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `
		SELECT organization_id, user_id, role, created_at FROM organization_members
		WHERE organization_id = $1 ORDER BY created_at
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []organization.Member
	for rows.Next() {
		var m organization.Member
		if err := rows.Scan(&m.OrganizationID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PgOrganizationRepository) IsMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	err = q.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM organization_members WHERE organization_id = $1 AND user_id = $2)
	`, orgID, userID).Scan(&exists)
	return exists, err
}

func (r *PgOrganizationRepository) ProjectCount(ctx context.Context, orgID uuid.UUID) (int64, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	err = q.QueryRow(ctx, "SELECT count(*) FROM projects WHERE organization_id = $1", orgID).Scan(&count)
	return count, err
}
