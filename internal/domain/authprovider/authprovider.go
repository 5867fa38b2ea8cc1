// Package authprovider models pluggable authentication provider
// configuration: a closed set of kinds, each validated against its own typed configuration struct rather than an
// untyped map.
package authprovider

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Kind enumerates the supported provider variants.
type Kind string

const (
	KindLocal Kind = "local"
	KindOIDC  Kind = "oidc"
	KindLDAP  Kind = "ldap"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]{2,50}$`)

// ValidSlug reports whether slug satisfies the provider slug invariant.
func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

// OIDCConfig is the typed configuration for a KindOIDC provider.
type OIDCConfig struct {
	IssuerURL          string   `json:"issuerUrl"`
	ClientID           string   `json:"clientId"`
	ClientSecret       string   `json:"clientSecret"`
	Scopes             []string `json:"scopes"`
	EmailClaim         string   `json:"emailClaim"`
	NameClaim          string   `json:"nameClaim"`
	AllowAutoRegister  bool     `json:"allowAutoRegister"`
}

// Defaults fills in the standard scope and claim fallbacks.
func (c *OIDCConfig) Defaults() {
	if len(c.Scopes) == 0 {
		c.Scopes = []string{"openid", "email", "profile"}
	}
	if c.EmailClaim == "" {
		c.EmailClaim = "email"
	}
	if c.NameClaim == "" {
		c.NameClaim = "name"
	}
}

// Mask returns a copy with the client secret redacted, for the admin API
// response.
func (c OIDCConfig) Mask() OIDCConfig {
	if c.ClientSecret != "" {
		c.ClientSecret = "••••••••"
	}
	return c
}

// LDAPConfig is the typed configuration for a KindLDAP provider.
type LDAPConfig struct {
	URL               string `json:"url"`
	BindDN            string `json:"bindDn"`
	BindPassword      string `json:"bindPassword"`
	BaseDN            string `json:"baseDn"`
	// SearchFilter must contain the {{username}} placeholder.
	SearchFilter      string `json:"searchFilter"`
	AllowAutoRegister bool   `json:"allowAutoRegister"`
}

func (c LDAPConfig) Mask() LDAPConfig {
	if c.BindPassword != "" {
		c.BindPassword = "••••••••"
	}
	return c
}

// LocalConfig is the configuration for the always-present local provider;
// its only setting is whether first-time logins may auto-register.
type LocalConfig struct {
	AllowAutoRegister bool `json:"allowAutoRegister"`
}

var (
	ErrLDAPFilterMissingPlaceholder = errors.New("authprovider: ldap search filter must contain {{username}}")
	ErrLDAPURLScheme                = errors.New("authprovider: ldap url must begin with ldap:// or ldaps://")
)

// Validate checks an OIDCConfig for obvious misconfiguration.
func (c OIDCConfig) Validate() error {
	if c.IssuerURL == "" {
		return errors.New("authprovider: oidc issuerUrl is required")
	}
	if c.ClientID == "" {
		return errors.New("authprovider: oidc clientId is required")
	}
	return nil
}

// Validate checks an LDAPConfig for obvious misconfiguration.
func (c LDAPConfig) Validate() error {
	if len(c.URL) < 7 || (c.URL[:7] != "ldap://" && (len(c.URL) < 8 || c.URL[:8] != "ldaps://")) {
		return ErrLDAPURLScheme
	}
	if !regexp.MustCompile(`\{\{\s*username\s*}}`).MatchString(c.SearchFilter) {
		return ErrLDAPFilterMissingPlaceholder
	}
	return nil
}

type Option func(*authProvider)

func WithID(id uuid.UUID) Option             { return func(p *authProvider) { p.id = id } }
func WithEnabled(enabled bool) Option        { return func(p *authProvider) { p.enabled = enabled } }
func WithDefault(isDefault bool) Option      { return func(p *authProvider) { p.isDefault = isDefault } }
func WithDisplayOrder(order int) Option      { return func(p *authProvider) { p.displayOrder = order } }

// AuthProvider is a configured authentication provider instance.
type AuthProvider interface {
	ID() uuid.UUID
	Kind() Kind
	Slug() string
	DisplayName() string
	Enabled() bool
	IsDefault() bool
	DisplayOrder() int
	// Config returns the raw opaque configuration; callers type-assert or
	// re-decode into OIDCConfig/LDAPConfig/LocalConfig per Kind().
	Config() map[string]any
}

func New(kind Kind, slug, displayName string, config map[string]any, opts ...Option) (AuthProvider, error) {
	if !ValidSlug(slug) {
		return nil, errors.New("authprovider: invalid slug")
	}
	p := &authProvider{
		id:          uuid.New(),
		kind:        kind,
		slug:        slug,
		displayName: displayName,
		config:      config,
		enabled:     true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

type authProvider struct {
	id           uuid.UUID
	kind         Kind
	slug         string
	displayName  string
	enabled      bool
	isDefault    bool
	displayOrder int
	config       map[string]any
}

func (p *authProvider) ID() uuid.UUID        { return p.id }
func (p *authProvider) Kind() Kind           { return p.kind }
func (p *authProvider) Slug() string         { return p.slug }
func (p *authProvider) DisplayName() string  { return p.displayName }
func (p *authProvider) Enabled() bool        { return p.enabled }
func (p *authProvider) IsDefault() bool      { return p.isDefault }
func (p *authProvider) DisplayOrder() int    { return p.displayOrder }
func (p *authProvider) Config() map[string]any { return p.config }

var (
	ErrLocalImmutable = errors.New("authprovider: the local provider cannot be disabled or deleted")
	ErrHasLinkedUsers = errors.New("authprovider: cannot delete a provider with linked users")
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (AuthProvider, error)
	GetBySlug(ctx context.Context, slug string) (AuthProvider, error)
	// List returns providers ordered by displayOrder, matching the public
	// /api/v1/auth/providers contract.
	List(ctx context.Context) ([]AuthProvider, error)
	Create(ctx context.Context, p AuthProvider) error
	Update(ctx context.Context, p AuthProvider) error
	// Reorder writes new display orders without a transaction;
	// ordering is cosmetic, not a safety invariant.
	Reorder(ctx context.Context, order map[uuid.UUID]int) error
	Delete(ctx context.Context, id uuid.UUID) error
	// LinkedUserCount is consulted before Delete to enforce
	// ErrHasLinkedUsers.
	LinkedUserCount(ctx context.Context, providerID uuid.UUID) (int64, error)
	CreatedAt(ctx context.Context, id uuid.UUID) (time.Time, error)
}
