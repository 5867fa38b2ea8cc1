package composables

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/logtide/internal/domain/apikey"
	"github.com/iota-uz/logtide/internal/domain/user"
)

func TestUseUserMissing(t *testing.T) {
	_, err := UseUser(context.Background())
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestWithUserThenUseUser(t *testing.T) {
	u := user.New("a@example.com", "A")
	ctx := WithUser(context.Background(), u)

	got, err := UseUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestWithAPIKeyThenUseAPIKey(t *testing.T) {
	ac := apikey.AuthContext{ApiKeyID: uuid.New(), ProjectID: uuid.New(), OrganizationID: uuid.New()}
	ctx := WithAPIKey(context.Background(), ac)

	got, ok := UseAPIKey(ctx)
	require.True(t, ok)
	assert.Equal(t, ac, got)
}

func TestUseOrganizationIDMissing(t *testing.T) {
	_, ok := UseOrganizationID(context.Background())
	assert.False(t, ok)
}
