// Package project models the Project aggregate: the unit that owns API
// keys, logs, spans, traces, alerts, and sigma rules.
package project

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Option func(*project)

func WithID(id uuid.UUID) Option       { return func(p *project) { p.id = id } }
func WithCreatedAt(t time.Time) Option { return func(p *project) { p.createdAt = t } }

type Project interface {
	ID() uuid.UUID
	OrganizationID() uuid.UUID
	Name() string
	CreatedAt() time.Time
}

func New(organizationID uuid.UUID, name string, opts ...Option) Project {
	p := &project{
		id:             uuid.New(),
		organizationID: organizationID,
		name:           name,
		createdAt:      time.Now(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type project struct {
	id             uuid.UUID
	organizationID uuid.UUID
	name           string
	createdAt      time.Time
}

func (p *project) ID() uuid.UUID             { return p.id }
func (p *project) OrganizationID() uuid.UUID { return p.organizationID }
func (p *project) Name() string              { return p.name }
func (p *project) CreatedAt() time.Time      { return p.createdAt }

type FindParams struct {
	OrganizationID uuid.UUID
	IDs            []uuid.UUID
	Limit          int
	Offset         int
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Project, error)
	GetPaginated(ctx context.Context, params *FindParams) ([]Project, error)
	Count(ctx context.Context, params *FindParams) (int64, error)
	Create(ctx context.Context, p Project) error
	Delete(ctx context.Context, id uuid.UUID) error
}
