package authsvc_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/logtide/internal/domain/authprovider"
	"github.com/iota-uz/logtide/internal/domain/identity"
	"github.com/iota-uz/logtide/internal/domain/session"
	"github.com/iota-uz/logtide/internal/domain/systemsetting"
	"github.com/iota-uz/logtide/internal/domain/user"
	"github.com/iota-uz/logtide/internal/infrastructure/cache"
	"github.com/iota-uz/logtide/internal/services/authsvc"
	"github.com/iota-uz/logtide/internal/services/settings"
)

// memUserRepo is a full in-memory user.Repository, unlike local_test.go's
// email-only fake, so the provisioning paths can read back what they wrote.
type memUserRepo struct {
	users map[uuid.UUID]user.User
}

func newMemUserRepo(users ...user.User) *memUserRepo {
	m := &memUserRepo{users: map[uuid.UUID]user.User{}}
	for _, u := range users {
		m.users[u.ID()] = u
	}
	return m
}

func (m *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (user.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, assert.AnError
	}
	return u, nil
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	for _, u := range m.users {
		if u.Email() == email {
			return u, nil
		}
	}
	return nil, assert.AnError
}

func (m *memUserRepo) GetPaginated(context.Context, *user.FindParams) ([]user.User, error) {
	return nil, nil
}
func (m *memUserRepo) Count(context.Context, *user.FindParams) (int64, error) { return 0, nil }

func (m *memUserRepo) Create(_ context.Context, u user.User) (user.User, error) {
	m.users[u.ID()] = u
	return u, nil
}

func (m *memUserRepo) Update(context.Context, user.User) error { return nil }

func (m *memUserRepo) UpdateLastLogin(context.Context, uuid.UUID) error { return nil }

func (m *memUserRepo) ClearPasswordHash(_ context.Context, id uuid.UUID) error {
	u, ok := m.users[id]
	if !ok {
		return assert.AnError
	}
	m.users[id] = user.New(u.Email(), u.DisplayName(), user.WithID(u.ID()))
	return nil
}

func (m *memUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.users, id)
	return nil
}

type memIdentityRepo struct {
	rows map[uuid.UUID]identity.Identity
}

func newMemIdentityRepo(rows ...identity.Identity) *memIdentityRepo {
	m := &memIdentityRepo{rows: map[uuid.UUID]identity.Identity{}}
	for _, i := range rows {
		m.rows[i.ID] = i
	}
	return m
}

func (m *memIdentityRepo) GetByProvider(_ context.Context, providerID uuid.UUID, providerUserID string) (identity.Identity, error) {
	for _, i := range m.rows {
		if i.ProviderID == providerID && i.ProviderUserID == providerUserID {
			return i, nil
		}
	}
	return identity.Identity{}, assert.AnError
}

func (m *memIdentityRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]identity.Identity, error) {
	var out []identity.Identity
	for _, i := range m.rows {
		if i.UserID == userID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (m *memIdentityRepo) Create(_ context.Context, i identity.Identity) error {
	m.rows[i.ID] = i
	return nil
}

func (m *memIdentityRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.rows, id)
	return nil
}

func (m *memIdentityRepo) CountByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	for _, i := range m.rows {
		if i.UserID == userID {
			n++
		}
	}
	return n, nil
}

type memSessionRepo struct {
	rows map[string]session.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{rows: map[string]session.Session{}}
}

func (m *memSessionRepo) GetByToken(_ context.Context, token string) (session.Session, error) {
	s, ok := m.rows[token]
	if !ok {
		return nil, assert.AnError
	}
	return s, nil
}

func (m *memSessionRepo) Create(_ context.Context, s session.Session) error {
	m.rows[s.Token()] = s
	return nil
}

func (m *memSessionRepo) Delete(_ context.Context, token string) error {
	delete(m.rows, token)
	return nil
}

func (m *memSessionRepo) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }

type memProviderRepo struct {
	bySlug map[string]authprovider.AuthProvider
}

func newMemProviderRepo(providers ...authprovider.AuthProvider) *memProviderRepo {
	m := &memProviderRepo{bySlug: map[string]authprovider.AuthProvider{}}
	for _, p := range providers {
		m.bySlug[p.Slug()] = p
	}
	return m
}

func (m *memProviderRepo) GetByID(_ context.Context, id uuid.UUID) (authprovider.AuthProvider, error) {
	for _, p := range m.bySlug {
		if p.ID() == id {
			return p, nil
		}
	}
	return nil, assert.AnError
}

func (m *memProviderRepo) GetBySlug(_ context.Context, slug string) (authprovider.AuthProvider, error) {
	p, ok := m.bySlug[slug]
	if !ok {
		return nil, assert.AnError
	}
	return p, nil
}

func (m *memProviderRepo) List(context.Context) ([]authprovider.AuthProvider, error) {
	var out []authprovider.AuthProvider
	for _, p := range m.bySlug {
		out = append(out, p)
	}
	return out, nil
}

func (m *memProviderRepo) Create(_ context.Context, p authprovider.AuthProvider) error {
	m.bySlug[p.Slug()] = p
	return nil
}

func (m *memProviderRepo) Update(context.Context, authprovider.AuthProvider) error { return nil }

func (m *memProviderRepo) Reorder(context.Context, map[uuid.UUID]int) error { return nil }

func (m *memProviderRepo) Delete(context.Context, uuid.UUID) error { return nil }

func (m *memProviderRepo) LinkedUserCount(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}
func (m *memProviderRepo) CreatedAt(context.Context, uuid.UUID) (time.Time, error) {
	return time.Time{}, nil
}

// stubProvider always authenticates successfully as the configured
// external identity.
type stubProvider struct {
	providerUserID string
	email          string
	name           string
}

func (s stubProvider) Authenticate(context.Context, authsvc.Credentials) (authsvc.AuthenticationResult, error) {
	return authsvc.AuthenticationResult{
		Success:        true,
		ProviderUserID: s.providerUserID,
		Email:          s.email,
		Name:           s.name,
	}, nil
}

func (s stubProvider) SupportsRedirect() bool { return false }

func (s stubProvider) GetAuthorizationUrl(context.Context, string) (string, string, error) {
	return "", "", assert.AnError
}

func (s stubProvider) HandleCallback(context.Context, authsvc.CallbackData) (authsvc.AuthenticationResult, error) {
	return authsvc.AuthenticationResult{}, assert.AnError
}

func (s stubProvider) ValidateConfig() error { return nil }

func (s stubProvider) TestConnection(context.Context) error { return nil }

func (s stubProvider) AllowAutoRegister() bool { return true }

type memSettingRepo struct {
	rows map[systemsetting.Key]systemsetting.Setting
}

func (m *memSettingRepo) Get(_ context.Context, key systemsetting.Key) (systemsetting.Setting, error) {
	s, ok := m.rows[key]
	if !ok {
		return systemsetting.Setting{}, assert.AnError
	}
	return s, nil
}

func (m *memSettingRepo) GetAll(context.Context) ([]systemsetting.Setting, error) { return nil, nil }

func (m *memSettingRepo) Set(_ context.Context, key systemsetting.Key, value json.RawMessage, _ *string) error {
	if m.rows == nil {
		m.rows = map[systemsetting.Key]systemsetting.Setting{}
	}
	m.rows[key] = systemsetting.Setting{Key: key, Value: value}
	return nil
}

func (m *memSettingRepo) Delete(_ context.Context, key systemsetting.Key) error {
	delete(m.rows, key)
	return nil
}

type serviceFixture struct {
	svc        *authsvc.Service
	users      *memUserRepo
	identities *memIdentityRepo
	providers  *memProviderRepo
	settings   *settings.Service
}

func newServiceFixture(t *testing.T, impl authsvc.Provider, providers *memProviderRepo, users *memUserRepo, identities *memIdentityRepo) *serviceFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	cacheClient, err := cache.NewClient(context.Background(), mr.Addr())
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	entry := logrus.NewEntry(logger)

	settingsSvc := settings.New(&memSettingRepo{}, cacheClient, users, entry)
	factory := func(context.Context, authprovider.AuthProvider) (authsvc.Provider, error) {
		return impl, nil
	}
	svc := authsvc.New(providers, identities, users, newMemSessionRepo(), settingsSvc, factory, entry)
	return &serviceFixture{svc: svc, users: users, identities: identities, providers: providers, settings: settingsSvc}
}

func newTestProvider(t *testing.T, kind authprovider.Kind, slug string) authprovider.AuthProvider {
	t.Helper()
	p, err := authprovider.New(kind, slug, slug, map[string]any{"allowAutoRegister": true}, authprovider.WithEnabled(true))
	require.NoError(t, err)
	return p
}

func TestLoginLinksExternalIdentityToExistingUserByEmail(t *testing.T) {
	existing := user.New("jane@example.com", "Jane")
	provider := newTestProvider(t, authprovider.KindLDAP, "corp-ldap")
	f := newServiceFixture(t,
		stubProvider{providerUserID: "uid=jane", email: "Jane@Example.COM "},
		newMemProviderRepo(provider),
		newMemUserRepo(existing),
		newMemIdentityRepo(),
	)

	sess, isNew, err := f.svc.Login(context.Background(), "corp-ldap", authsvc.Credentials{Username: "jane", Password: "pw"}, "", "")
	require.NoError(t, err)
	assert.False(t, isNew, "linking to an existing user is not a signup")
	assert.Equal(t, existing.ID(), sess.UserID(), "login should resolve to the existing user via normalized email")

	ids, err := f.identities.ListByUser(context.Background(), existing.ID())
	require.NoError(t, err)
	assert.Len(t, ids, 1, "a new identity row should link the external account")
	assert.Equal(t, "uid=jane", ids[0].ProviderUserID)
}

func TestLoginSecondTimeReusesLinkedIdentity(t *testing.T) {
	existing := user.New("jane@example.com", "Jane")
	provider := newTestProvider(t, authprovider.KindLDAP, "corp-ldap")
	f := newServiceFixture(t,
		stubProvider{providerUserID: "uid=jane", email: "jane@example.com"},
		newMemProviderRepo(provider),
		newMemUserRepo(existing),
		newMemIdentityRepo(),
	)

	_, _, err := f.svc.Login(context.Background(), "corp-ldap", authsvc.Credentials{}, "", "")
	require.NoError(t, err)
	_, _, err = f.svc.Login(context.Background(), "corp-ldap", authsvc.Credentials{}, "", "")
	require.NoError(t, err)

	count, err := f.identities.CountByUser(context.Background(), existing.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "repeat logins must not duplicate the identity link")
}

func TestLoginAutoRegisterRejectedWhenSignupDisabled(t *testing.T) {
	provider := newTestProvider(t, authprovider.KindOIDC, "sso")
	f := newServiceFixture(t,
		stubProvider{providerUserID: "sub-1", email: "new@example.com"},
		newMemProviderRepo(provider),
		newMemUserRepo(),
		newMemIdentityRepo(),
	)
	require.NoError(t, f.settings.Set(context.Background(), systemsetting.KeySignupEnabled, false, nil))

	_, _, err := f.svc.Login(context.Background(), "sso", authsvc.Credentials{}, "", "")
	require.ErrorIs(t, err, authsvc.ErrSignupDisabled)
}

func TestUnlinkIdentityRejectsLastIdentity(t *testing.T) {
	u := user.New("jane@example.com", "Jane")
	provider := newTestProvider(t, authprovider.KindLocal, "local")
	only := identity.Identity{ID: uuid.New(), UserID: u.ID(), ProviderID: provider.ID(), ProviderUserID: u.Email()}
	f := newServiceFixture(t, stubProvider{}, newMemProviderRepo(provider), newMemUserRepo(u), newMemIdentityRepo(only))

	err := f.svc.UnlinkIdentity(context.Background(), u.ID(), only.ID)
	require.ErrorIs(t, err, authsvc.ErrLastIdentity)
}

func TestUnlinkLocalIdentityClearsPasswordHash(t *testing.T) {
	u := user.New("jane@example.com", "Jane", user.WithPasswordHash("bcrypt-hash"))
	local := newTestProvider(t, authprovider.KindLocal, "local")
	sso := newTestProvider(t, authprovider.KindOIDC, "sso")
	localID := identity.Identity{ID: uuid.New(), UserID: u.ID(), ProviderID: local.ID(), ProviderUserID: u.Email()}
	ssoID := identity.Identity{ID: uuid.New(), UserID: u.ID(), ProviderID: sso.ID(), ProviderUserID: "sub-1"}
	users := newMemUserRepo(u)
	f := newServiceFixture(t, stubProvider{}, newMemProviderRepo(local, sso), users, newMemIdentityRepo(localID, ssoID))

	require.NoError(t, f.svc.UnlinkIdentity(context.Background(), u.ID(), localID.ID))

	count, err := f.identities.CountByUser(context.Background(), u.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := users.GetByID(context.Background(), u.ID())
	require.NoError(t, err)
	_, hasHash := got.PasswordHash()
	assert.False(t, hasHash, "unlinking the local identity must clear the password hash")
}

func TestLinkIdentityRejectsIdentityOwnedByAnotherUser(t *testing.T) {
	owner := user.New("owner@example.com", "Owner")
	claimer := user.New("claimer@example.com", "Claimer")
	provider := newTestProvider(t, authprovider.KindLDAP, "corp-ldap")
	taken := identity.Identity{ID: uuid.New(), UserID: owner.ID(), ProviderID: provider.ID(), ProviderUserID: "uid=shared"}
	f := newServiceFixture(t,
		stubProvider{providerUserID: "uid=shared", email: "owner@example.com"},
		newMemProviderRepo(provider),
		newMemUserRepo(owner, claimer),
		newMemIdentityRepo(taken),
	)

	err := f.svc.LinkIdentity(context.Background(), claimer.ID(), "corp-ldap", authsvc.Credentials{})
	require.ErrorIs(t, err, authsvc.ErrIdentityTaken)
}
