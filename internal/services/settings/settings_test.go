package settings_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/logtide/internal/domain/systemsetting"
	"github.com/iota-uz/logtide/internal/domain/user"
	"github.com/iota-uz/logtide/internal/infrastructure/cache"
	"github.com/iota-uz/logtide/internal/services/settings"
)

type fakeSettingRepo struct {
	rows map[systemsetting.Key]systemsetting.Setting
}

func newFakeSettingRepo() *fakeSettingRepo {
	return &fakeSettingRepo{rows: map[systemsetting.Key]systemsetting.Setting{}}
}

func (f *fakeSettingRepo) Get(_ context.Context, key systemsetting.Key) (systemsetting.Setting, error) {
	s, ok := f.rows[key]
	if !ok {
		return systemsetting.Setting{}, assert.AnError
	}
	return s, nil
}

func (f *fakeSettingRepo) GetAll(context.Context) ([]systemsetting.Setting, error) {
	var out []systemsetting.Setting
	for _, s := range f.rows {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSettingRepo) Set(_ context.Context, key systemsetting.Key, value json.RawMessage, updatedBy *string) error {
	f.rows[key] = systemsetting.Setting{Key: key, Value: value, UpdatedBy: updatedBy, UpdatedAt: time.Now()}
	return nil
}

func (f *fakeSettingRepo) Delete(_ context.Context, key systemsetting.Key) error {
	delete(f.rows, key)
	return nil
}

func newTestCache(t *testing.T) *cache.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewClient(context.Background(), mr.Addr())
	require.NoError(t, err)
	return c
}

func TestSetRejectsUnknownKey(t *testing.T) {
	svc := settings.New(newFakeSettingRepo(), newTestCache(t), nil, nil)
	err := svc.Set(context.Background(), systemsetting.Key("not.a.key"), true, nil)
	assert.ErrorIs(t, err, settings.ErrUnknownKey)
}

func TestSetThenGetRoundTrips(t *testing.T) {
	svc := settings.New(newFakeSettingRepo(), newTestCache(t), nil, nil)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, systemsetting.KeySignupEnabled, false, nil))
	v, err := svc.Get(ctx, systemsetting.KeySignupEnabled)
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestGetFallsBackToDefaultWhenUnset(t *testing.T) {
	svc := settings.New(newFakeSettingRepo(), newTestCache(t), nil, nil)
	v, err := svc.Get(context.Background(), systemsetting.KeySignupEnabled)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestDeleteRevertsToDefault(t *testing.T) {
	svc := settings.New(newFakeSettingRepo(), newTestCache(t), nil, nil)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, systemsetting.KeySignupEnabled, false, nil))
	require.NoError(t, svc.Delete(ctx, systemsetting.KeySignupEnabled))

	v, err := svc.Get(ctx, systemsetting.KeySignupEnabled)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestGetDefaultUserMissingSetting(t *testing.T) {
	svc := settings.New(newFakeSettingRepo(), newTestCache(t), nil, nil)
	_, err := svc.GetDefaultUser(context.Background())
	assert.ErrorIs(t, err, settings.ErrNoDefaultUser)
}

func TestSetManySkipsNilValues(t *testing.T) {
	repo := newFakeSettingRepo()
	svc := settings.New(repo, newTestCache(t), nil, nil)
	err := svc.SetMany(context.Background(), map[systemsetting.Key]any{
		systemsetting.KeySignupEnabled: false,
		systemsetting.KeyAuthMode:      nil,
	}, nil)
	require.NoError(t, err)
	_, ok := repo.rows[systemsetting.KeyAuthMode]
	assert.False(t, ok)
	_, ok = repo.rows[systemsetting.KeySignupEnabled]
	assert.True(t, ok)
}

var _ user.Repository = (*fakeUserRepo)(nil)

type fakeUserRepo struct{}

func (fakeUserRepo) GetByID(context.Context, uuid.UUID) (user.User, error)        { return nil, assert.AnError }
func (fakeUserRepo) GetByEmail(context.Context, string) (user.User, error)        { return nil, assert.AnError }
func (fakeUserRepo) GetPaginated(context.Context, *user.FindParams) ([]user.User, error) {
	return nil, nil
}
func (fakeUserRepo) Count(context.Context, *user.FindParams) (int64, error)  { return 0, nil }
func (fakeUserRepo) Create(_ context.Context, u user.User) (user.User, error) { return u, nil }
func (fakeUserRepo) Update(context.Context, user.User) error                  { return nil }
func (fakeUserRepo) UpdateLastLogin(context.Context, uuid.UUID) error          { return nil }
func (fakeUserRepo) ClearPasswordHash(context.Context, uuid.UUID) error        { return nil }
func (fakeUserRepo) Delete(context.Context, uuid.UUID) error                   { return nil }
