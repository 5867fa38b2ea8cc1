// Package user models the User aggregate shared by every auth provider.
package user

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Option configures a User at construction time.
type Option func(*user)

func WithID(id uuid.UUID) Option             { return func(u *user) { u.id = id } }
func WithPasswordHash(hash string) Option    { return func(u *user) { u.passwordHash = &hash } }
func WithAdmin(admin bool) Option            { return func(u *user) { u.isAdmin = admin } }
func WithDisabled(disabled bool) Option      { return func(u *user) { u.disabled = disabled } }
func WithCreatedAt(t time.Time) Option       { return func(u *user) { u.createdAt = t } }
func WithLastLoginAt(t time.Time) Option     { return func(u *user) { u.lastLoginAt = &t } }

// User is a platform account. Password hash is optional; SSO-only users
// never receive one.
type User interface {
	ID() uuid.UUID
	Email() string
	DisplayName() string
	PasswordHash() (string, bool)
	IsAdmin() bool
	Disabled() bool
	CreatedAt() time.Time
	LastLoginAt() (time.Time, bool)
}

// Normalize lowercases and trims an email for storage/lookup
// (TEST.User@EXAMPLE.COM  -> test.user@example.com).
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// New constructs a User with the email already normalized by the caller
// (Normalize is applied before this is called, never inside it,
// so repositories reading back from storage don't re-normalize silently).
func New(email, displayName string, opts ...Option) User {
	u := &user{
		id:          uuid.New(),
		email:       email,
		displayName: displayName,
		createdAt:   time.Now(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

type user struct {
	id           uuid.UUID
	email        string
	displayName  string
	passwordHash *string
	isAdmin      bool
	disabled     bool
	createdAt    time.Time
	lastLoginAt  *time.Time
}

func (u *user) ID() uuid.UUID       { return u.id }
func (u *user) Email() string       { return u.email }
func (u *user) DisplayName() string { return u.displayName }
func (u *user) IsAdmin() bool       { return u.isAdmin }
func (u *user) Disabled() bool      { return u.disabled }
func (u *user) CreatedAt() time.Time { return u.createdAt }

func (u *user) PasswordHash() (string, bool) {
	if u.passwordHash == nil {
		return "", false
	}
	return *u.passwordHash, true
}

func (u *user) LastLoginAt() (time.Time, bool) {
	if u.lastLoginAt == nil {
		return time.Time{}, false
	}
	return *u.lastLoginAt, true
}

// FindParams filters the user listing.
type FindParams struct {
	IDs    []uuid.UUID
	Email  string
	Limit  int
	Offset int
}

// Repository is the persistence port for User.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetByEmail(ctx context.Context, normalizedEmail string) (User, error)
	GetPaginated(ctx context.Context, params *FindParams) ([]User, error)
	Count(ctx context.Context, params *FindParams) (int64, error)

	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, u User) error

	// UpdateLastLogin stamps last_login_at = now() for the user.
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error

	// ClearPasswordHash is used when unlinking the local identity.
	ClearPasswordHash(ctx context.Context, id uuid.UUID) error

	Delete(ctx context.Context, id uuid.UUID) error
}
