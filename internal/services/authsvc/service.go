package authsvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/logtide/internal/domain/authprovider"
	"github.com/iota-uz/logtide/internal/domain/identity"
	"github.com/iota-uz/logtide/internal/domain/session"
	"github.com/iota-uz/logtide/internal/domain/systemsetting"
	"github.com/iota-uz/logtide/internal/domain/user"
	"github.com/iota-uz/logtide/internal/services/settings"
)

var (
	ErrProviderNotFound     = errors.New("authsvc: provider not found or disabled")
	ErrProviderDisabled     = errors.New("authsvc: provider is disabled")
	ErrAutoRegisterDisabled = errors.New("authsvc: auto-registration is disabled for this provider")
	ErrSignupDisabled       = errors.New("authsvc: signup disabled")
	ErrLastIdentity         = errors.New("authsvc: cannot unlink the only remaining identity")
	ErrIdentityTaken        = errors.New("authsvc: identity already linked to another user")
	ErrSessionNotFound      = errors.New("authsvc: session not found or expired")
	ErrAuthFreeNoDefault    = settings.ErrNoDefaultUser
)

// Factory builds a live Provider from a stored AuthProvider's kind and
// configuration; it's a function rather than a method on a struct so the
// service can be constructed with it supplied by the wiring layer, which
// alone knows the LDAP/OIDC dependencies (state store, KV mirror, TLS
// policy) a Provider needs.
type Factory func(ctx context.Context, p authprovider.AuthProvider) (Provider, error)

// Service orchestrates provider lookup, identity linking, session issuance
// and the auth-free bootstrap path.
type Service struct {
	providers    authprovider.Repository
	identities   identity.Repository
	users        user.Repository
	sessions     session.Repository
	settings     *settings.Service
	buildFactory Factory
	logger       *logrus.Entry
}

func New(
	providers authprovider.Repository,
	identities identity.Repository,
	users user.Repository,
	sessions session.Repository,
	settingsSvc *settings.Service,
	factory Factory,
	logger *logrus.Entry,
) *Service {
	return &Service{
		providers:    providers,
		identities:   identities,
		users:        users,
		sessions:     sessions,
		settings:     settingsSvc,
		buildFactory: factory,
		logger:       logger,
	}
}

func (s *Service) resolveProvider(ctx context.Context, slug string) (authprovider.AuthProvider, Provider, error) {
	p, err := s.providers.GetBySlug(ctx, slug)
	if err != nil {
		return nil, nil, ErrProviderNotFound
	}
	if !p.Enabled() {
		return nil, nil, ErrProviderDisabled
	}
	impl, err := s.buildFactory(ctx, p)
	if err != nil {
		return nil, nil, fmt.Errorf("authsvc: build provider %s: %w", slug, err)
	}
	return p, impl, nil
}

// ListProviders returns the enabled providers ordered for the public
// login page.
func (s *Service) ListProviders(ctx context.Context) ([]authprovider.AuthProvider, error) {
	all, err := s.providers.List(ctx)
	if err != nil {
		return nil, err
	}
	enabled := make([]authprovider.AuthProvider, 0, len(all))
	for _, p := range all {
		if p.Enabled() {
			enabled = append(enabled, p)
		}
	}
	return enabled, nil
}

// Login runs the direct-credential path for local/LDAP providers,
// producing a Session on success. The boolean reports whether the login
// auto-provisioned a new user.
func (s *Service) Login(ctx context.Context, slug string, creds Credentials, ip, userAgent string) (session.Session, bool, error) {
	p, impl, err := s.resolveProvider(ctx, slug)
	if err != nil {
		return nil, false, err
	}
	result, err := impl.Authenticate(ctx, creds)
	if err != nil {
		return nil, false, err
	}
	if !result.Success {
		return nil, false, authError(result)
	}
	u, isNew, err := s.findOrCreateUser(ctx, p, result)
	if err != nil {
		return nil, false, err
	}
	sess, err := s.issueSession(ctx, u, ip, userAgent)
	return sess, isNew, err
}

// BeginRedirect starts a redirect-flow login.
func (s *Service) BeginRedirect(ctx context.Context, slug, redirectURI string) (authURL string, err error) {
	_, impl, err := s.resolveProvider(ctx, slug)
	if err != nil {
		return "", err
	}
	if !impl.SupportsRedirect() {
		return "", fmt.Errorf("authsvc: provider %s does not support redirect", slug)
	}
	url, _, err := impl.GetAuthorizationUrl(ctx, redirectURI)
	return url, err
}

// CompleteRedirect finishes a redirect-flow login. The boolean reports
// whether the callback auto-provisioned a new user.
func (s *Service) CompleteRedirect(ctx context.Context, slug string, data CallbackData, ip, userAgent string) (session.Session, bool, error) {
	p, impl, err := s.resolveProvider(ctx, slug)
	if err != nil {
		return nil, false, err
	}
	result, err := impl.HandleCallback(ctx, data)
	if err != nil {
		return nil, false, err
	}
	if !result.Success {
		return nil, false, authError(result)
	}
	u, isNew, err := s.findOrCreateUser(ctx, p, result)
	if err != nil {
		return nil, false, err
	}
	sess, err := s.issueSession(ctx, u, ip, userAgent)
	return sess, isNew, err
}

// findOrCreateUser resolves an authenticated external identity to a User:
//  1. An Identity already links (providerID, providerUserID) to a User: use it.
//  2. No Identity, but a User exists with the normalized email: link it.
//  3. Neither exists: provision a new User and Identity, if the provider
//     allows auto-registration.
func (s *Service) findOrCreateUser(ctx context.Context, p authprovider.AuthProvider, result AuthenticationResult) (user.User, bool, error) {
	if existing, err := s.identities.GetByProvider(ctx, p.ID(), result.ProviderUserID); err == nil {
		u, err := s.users.GetByID(ctx, existing.UserID)
		if err != nil {
			return nil, false, err
		}
		if u.Disabled() {
			return nil, false, authError(AuthenticationResult{ErrorCode: ErrCodeUserDisabled, Error: "account disabled"})
		}
		return u, false, nil
	}

	email := user.Normalize(result.Email)
	if u, err := s.users.GetByEmail(ctx, email); err == nil {
		if u.Disabled() {
			return nil, false, authError(AuthenticationResult{ErrorCode: ErrCodeUserDisabled, Error: "account disabled"})
		}
		if err := s.identities.Create(ctx, identity.Identity{
			ID:             uuid.New(),
			UserID:         u.ID(),
			ProviderID:     p.ID(),
			ProviderUserID: result.ProviderUserID,
			CreatedAt:      time.Now(),
		}); err != nil {
			return nil, false, fmt.Errorf("authsvc: link identity: %w", err)
		}
		return u, false, nil
	}

	allowAutoRegister, err := s.providerAllowsAutoRegister(p)
	if err != nil {
		return nil, false, err
	}
	if !allowAutoRegister {
		return nil, false, ErrAutoRegisterDisabled
	}
	if signupEnabled, err := s.settings.SignupEnabled(ctx); err == nil && !signupEnabled {
		return nil, false, ErrSignupDisabled
	}

	newUser := user.New(email, result.Name)
	created, err := s.users.Create(ctx, newUser)
	if err != nil {
		return nil, false, fmt.Errorf("authsvc: create user: %w", err)
	}
	if err := s.identities.Create(ctx, identity.Identity{
		ID:             uuid.New(),
		UserID:         created.ID(),
		ProviderID:     p.ID(),
		ProviderUserID: result.ProviderUserID,
		CreatedAt:      time.Now(),
	}); err != nil {
		return nil, false, fmt.Errorf("authsvc: link identity: %w", err)
	}
	return created, true, nil
}

func (s *Service) providerAllowsAutoRegister(p authprovider.AuthProvider) (bool, error) {
	switch p.Kind() {
	case authprovider.KindLocal:
		var cfg authprovider.LocalConfig
		if err := decodeConfig(p.Config(), &cfg); err != nil {
			return false, err
		}
		return cfg.AllowAutoRegister, nil
	case authprovider.KindLDAP:
		var cfg authprovider.LDAPConfig
		if err := decodeConfig(p.Config(), &cfg); err != nil {
			return false, err
		}
		return cfg.AllowAutoRegister, nil
	case authprovider.KindOIDC:
		var cfg authprovider.OIDCConfig
		if err := decodeConfig(p.Config(), &cfg); err != nil {
			return false, err
		}
		return cfg.AllowAutoRegister, nil
	default:
		return false, fmt.Errorf("authsvc: unknown provider kind %s", p.Kind())
	}
}

func (s *Service) issueSession(ctx context.Context, u user.User, ip, userAgent string) (session.Session, error) {
	if u.Disabled() {
		return nil, authError(AuthenticationResult{ErrorCode: ErrCodeUserDisabled, Error: "account disabled"})
	}
	sess, err := session.New(u.ID(), session.WithIP(ip), session.WithUserAgent(userAgent))
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("authsvc: create session: %w", err)
	}
	if err := s.users.UpdateLastLogin(ctx, u.ID()); err != nil && s.logger != nil {
		s.logger.WithError(err).WithField("user_id", u.ID()).Warn("failed to stamp last login")
	}
	return sess, nil
}

// ValidateSession resolves a bearer token to its User, rejecting expired
// sessions.
func (s *Service) ValidateSession(ctx context.Context, token string) (user.User, error) {
	sess, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	if sess.IsExpired(time.Now()) {
		_ = s.sessions.Delete(ctx, token)
		return nil, ErrSessionNotFound
	}
	u, err := s.users.GetByID(ctx, sess.UserID())
	if err != nil {
		return nil, err
	}
	if u.Disabled() {
		return nil, ErrSessionNotFound
	}
	return u, nil
}

// Logout deletes the session identified by token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// LinkIdentity authenticates credentials against slug's provider and
// attaches the resulting identity to userID, rejecting when that
// (provider, providerUserID) pair is already claimed by a different user.
func (s *Service) LinkIdentity(ctx context.Context, userID uuid.UUID, slug string, creds Credentials) error {
	p, impl, err := s.resolveProvider(ctx, slug)
	if err != nil {
		return err
	}
	result, err := impl.Authenticate(ctx, creds)
	if err != nil {
		return err
	}
	if !result.Success {
		return authError(result)
	}
	if existing, err := s.identities.GetByProvider(ctx, p.ID(), result.ProviderUserID); err == nil {
		if existing.UserID != userID {
			return ErrIdentityTaken
		}
		return nil
	}
	return s.identities.Create(ctx, identity.Identity{
		ID:             uuid.New(),
		UserID:         userID,
		ProviderID:     p.ID(),
		ProviderUserID: result.ProviderUserID,
		CreatedAt:      time.Now(),
	})
}

// UnlinkIdentity removes one of a user's identities, refusing to remove
// the last one.
// Unlinking the local identity additionally clears the user's password
// hash, since it is meaningless without that identity.
func (s *Service) UnlinkIdentity(ctx context.Context, userID uuid.UUID, identityID uuid.UUID) error {
	count, err := s.identities.CountByUser(ctx, userID)
	if err != nil {
		return err
	}
	if count <= 1 {
		return ErrLastIdentity
	}
	identities, err := s.identities.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	var target *identity.Identity
	for i := range identities {
		if identities[i].ID == identityID {
			target = &identities[i]
			break
		}
	}
	if err := s.identities.Delete(ctx, identityID); err != nil {
		return err
	}
	if target == nil {
		return nil
	}
	p, err := s.providers.GetByID(ctx, target.ProviderID)
	if err != nil || p == nil {
		return nil
	}
	if p.Kind() == authprovider.KindLocal {
		if err := s.users.ClearPasswordHash(ctx, userID); err != nil && s.logger != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("failed to clear password hash on local identity unlink")
		}
	}
	return nil
}

// ResolveAuthFreeUser returns the bootstrap default user when
// auth.mode=none.
func (s *Service) ResolveAuthFreeUser(ctx context.Context) (user.User, error) {
	mode, err := s.settings.AuthMode(ctx)
	if err != nil {
		return nil, err
	}
	if mode != systemsetting.AuthModeNone {
		return nil, fmt.Errorf("authsvc: auth-free mode is not enabled")
	}
	return s.settings.GetDefaultUser(ctx)
}

func authError(r AuthenticationResult) error {
	return fmt.Errorf("authsvc: %s: %s", r.ErrorCode, r.Error)
}
