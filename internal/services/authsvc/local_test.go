package authsvc_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/logtide/internal/domain/authprovider"
	"github.com/iota-uz/logtide/internal/domain/user"
	"github.com/iota-uz/logtide/internal/services/authsvc"
)

type fakeUserRepo struct {
	byEmail map[string]user.User
}

func (f *fakeUserRepo) GetByID(context.Context, uuid.UUID) (user.User, error) { return nil, assert.AnError }
func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, assert.AnError
	}
	return u, nil
}
func (f *fakeUserRepo) GetPaginated(context.Context, *user.FindParams) ([]user.User, error) {
	return nil, nil
}
func (f *fakeUserRepo) Count(context.Context, *user.FindParams) (int64, error)  { return 0, nil }
func (f *fakeUserRepo) Create(_ context.Context, u user.User) (user.User, error) { return u, nil }
func (f *fakeUserRepo) Update(context.Context, user.User) error                  { return nil }
func (f *fakeUserRepo) UpdateLastLogin(context.Context, uuid.UUID) error          { return nil }
func (f *fakeUserRepo) ClearPasswordHash(context.Context, uuid.UUID) error        { return nil }
func (f *fakeUserRepo) Delete(context.Context, uuid.UUID) error                   { return nil }

func TestLocalProviderAuthenticateSuccess(t *testing.T) {
	hash, err := authsvc.HashPassword("correct-horse")
	require.NoError(t, err)

	u := user.New("test.user@example.com", "Test User", user.WithPasswordHash(hash))
	repo := &fakeUserRepo{byEmail: map[string]user.User{"test.user@example.com": u}}
	provider := authsvc.NewLocalProvider(authprovider.LocalConfig{AllowAutoRegister: true}, repo)

	result, err := provider.Authenticate(context.Background(), authsvc.Credentials{
		Username: "TEST.User@Example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "test.user@example.com", result.Email)
}

func TestLocalProviderAuthenticateWrongPassword(t *testing.T) {
	hash, err := authsvc.HashPassword("correct-horse")
	require.NoError(t, err)

	u := user.New("test.user@example.com", "Test User", user.WithPasswordHash(hash))
	repo := &fakeUserRepo{byEmail: map[string]user.User{"test.user@example.com": u}}
	provider := authsvc.NewLocalProvider(authprovider.LocalConfig{}, repo)

	result, err := provider.Authenticate(context.Background(), authsvc.Credentials{
		Username: "test.user@example.com",
		Password: "wrong",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, authsvc.ErrCodeInvalidCredentials, result.ErrorCode)
}

func TestLocalProviderAuthenticateDisabledUser(t *testing.T) {
	hash, err := authsvc.HashPassword("correct-horse")
	require.NoError(t, err)

	u := user.New("test.user@example.com", "Test User", user.WithPasswordHash(hash), user.WithDisabled(true))
	repo := &fakeUserRepo{byEmail: map[string]user.User{"test.user@example.com": u}}
	provider := authsvc.NewLocalProvider(authprovider.LocalConfig{}, repo)

	result, err := provider.Authenticate(context.Background(), authsvc.Credentials{
		Username: "test.user@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, authsvc.ErrCodeUserDisabled, result.ErrorCode)
}

func TestLocalProviderSSOOnlyAccount(t *testing.T) {
	u := user.New("test.user@example.com", "Test User")
	repo := &fakeUserRepo{byEmail: map[string]user.User{"test.user@example.com": u}}
	provider := authsvc.NewLocalProvider(authprovider.LocalConfig{}, repo)

	result, err := provider.Authenticate(context.Background(), authsvc.Credentials{
		Username: "test.user@example.com",
		Password: "whatever",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, authsvc.ErrCodeSSOOnly, result.ErrorCode)
}

func TestLocalProviderUnknownUser(t *testing.T) {
	repo := &fakeUserRepo{byEmail: map[string]user.User{}}
	provider := authsvc.NewLocalProvider(authprovider.LocalConfig{}, repo)

	result, err := provider.Authenticate(context.Background(), authsvc.Credentials{
		Username: "nobody@example.com",
		Password: "whatever",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, authsvc.ErrCodeInvalidCredentials, result.ErrorCode)
}
