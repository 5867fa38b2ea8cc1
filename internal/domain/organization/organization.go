// Package organization models the tenant-owning Organization aggregate.
package organization

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Option configures an Organization at construction time.
type Option func(*organization)

func WithID(id uuid.UUID) Option {
	return func(o *organization) { o.id = id }
}

func WithCreatedAt(t time.Time) Option {
	return func(o *organization) { o.createdAt = t }
}

// Organization owns projects and has exactly one owner, who is implicitly
// a member.
type Organization interface {
	ID() uuid.UUID
	Name() string
	Slug() string
	OwnerID() uuid.UUID
	CreatedAt() time.Time
}

// New constructs an Organization; slug must already satisfy the
// `^[a-z0-9-]+$`-style URL-safe, unique constraint enforced by the
// repository layer.
func New(name, slug string, ownerID uuid.UUID, opts ...Option) Organization {
	o := &organization{
		id:        uuid.New(),
		name:      name,
		slug:      slug,
		ownerID:   ownerID,
		createdAt: time.Now(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type organization struct {
	id        uuid.UUID
	name      string
	slug      string
	ownerID   uuid.UUID
	createdAt time.Time
}

func (o *organization) ID() uuid.UUID        { return o.id }
func (o *organization) Name() string         { return o.name }
func (o *organization) Slug() string         { return o.slug }
func (o *organization) OwnerID() uuid.UUID   { return o.ownerID }
func (o *organization) CreatedAt() time.Time { return o.createdAt }

// Role is an OrganizationMember's role within an organization.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// Member is the (user, organization, role) join row.
type Member struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	Role           Role
	CreatedAt      time.Time
}

// FindParams filters the organization listing.
type FindParams struct {
	IDs    []uuid.UUID
	Slug   string
	Limit  int
	Offset int
}

// Repository is the persistence port for Organization, including its
// membership join table.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Organization, error)
	GetBySlug(ctx context.Context, slug string) (Organization, error)
	GetPaginated(ctx context.Context, params *FindParams) ([]Organization, error)
	Count(ctx context.Context, params *FindParams) (int64, error)

	// Create inserts the organization and its owner membership row in one
	// transaction.
	Create(ctx context.Context, org Organization) error
	Delete(ctx context.Context, id uuid.UUID) error

	AddMember(ctx context.Context, m Member) error
	RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error
	Members(ctx context.Context, orgID uuid.UUID) ([]Member, error)
	IsMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error)

	// ProjectCount reports how many projects the organization owns, used
	// to enforce "deleted only when empty of projects".
	ProjectCount(ctx context.Context, orgID uuid.UUID) (int64, error)
}
