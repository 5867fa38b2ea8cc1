package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/logtide/internal/domain/project"
	"github.com/iota-uz/logtide/pkg/composables"
	"github.com/iota-uz/logtide/pkg/repo"
)

var ErrProjectNotFound = errors.New("project not found")

type PgProjectRepository struct{}

func NewProjectRepository() project.Repository {
	return &PgProjectRepository{}
}

func scanProject(row pgx.Row) (project.Project, error) {
	var (
		id, orgID uuid.UUID
		name      string
		createdAt time.Time
	)
	if err := row.Scan(&id, &orgID, &name, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return project.New(orgID, name, project.WithID(id), project.WithCreatedAt(createdAt)), nil
}

func (r *PgProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (project.Project, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	return scanProject(q.QueryRow(ctx, "SELECT id, organization_id, name, created_at FROM projects WHERE id = $1", id))
}

func (r *PgProjectRepository) GetPaginated(ctx context.Context, params *project.FindParams) ([]project.Project, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	where, args := []string{"1 = 1"}, []any{}
	if params.OrganizationID != uuid.Nil {
		args = append(args, params.OrganizationID)
		where = append(where, fmt.Sprintf("organization_id = $%d", len(args)))
	}
	if len(params.IDs) > 0 {
		args = append(args, params.IDs)
		where = append(where, fmt.Sprintf("id = ANY($%d)", len(args)))
	}

	rows, err := q.Query(ctx, `
		SELECT id, organization_id, name, created_at FROM projects
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC
		`+repo.FormatLimitOffset(params.Limit, params.Offset)+`
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []project.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PgProjectRepository) Count(ctx context.Context, params *project.FindParams) (int64, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return 0, err
	}
	where, args := []string{"1 = 1"}, []any{}
	if params.OrganizationID != uuid.Nil {
		args = append(args, params.OrganizationID)
		where = append(where, fmt.Sprintf("organization_id = $%d", len(args)))
	}
	var count int64
	err = q.QueryRow(ctx, "SELECT count(*) FROM projects WHERE "+strings.Join(where, " AND "), args...).Scan(&count)
	return count, err
}

func (r *PgProjectRepository) Create(ctx context.Context, p project.Project) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, repo.Insert("projects", []string{"id", "organization_id", "name", "created_at"}),
		p.ID(), p.OrganizationID(), p.Name(), p.CreatedAt())
	return err
}

func (r *PgProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, "DELETE FROM projects WHERE id = $1", id)
	return err
}
