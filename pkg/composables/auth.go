package composables

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/iota-uz/logtide/internal/domain/apikey"
	"github.com/iota-uz/logtide/internal/domain/user"
)

const (
	userCtxKey   ctxKey = "user"
	apiKeyCtxKey ctxKey = "apiKey"
	orgIDCtxKey  ctxKey = "organizationID"
)

// ErrNoUser is returned by UseUser when the request context carries no
// authenticated session.
var ErrNoUser = errors.New("composables: no authenticated user in context")

// WithUser attaches the session-authenticated user to ctx.
func WithUser(ctx context.Context, u user.User) context.Context {
	return context.WithValue(ctx, userCtxKey, u)
}

// UseUser retrieves the user attached by WithUser.
func UseUser(ctx context.Context) (user.User, error) {
	u, ok := ctx.Value(userCtxKey).(user.User)
	if !ok || u == nil {
		return nil, ErrNoUser
	}
	return u, nil
}

// WithAPIKey attaches the ApiKey context resolved by the ingestion
// authentication step so downstream pipeline stages know which
// project/organization to write to.
func WithAPIKey(ctx context.Context, ac apikey.AuthContext) context.Context {
	return context.WithValue(ctx, apiKeyCtxKey, ac)
}

// UseAPIKey retrieves the ApiKey auth context attached by WithAPIKey.
func UseAPIKey(ctx context.Context) (apikey.AuthContext, bool) {
	ac, ok := ctx.Value(apiKeyCtxKey).(apikey.AuthContext)
	return ac, ok
}

// WithOrganizationID attaches the active organization scope, e.g. from a
// route parameter already authorized against the caller's memberships.
func WithOrganizationID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, orgIDCtxKey, id)
}

// UseOrganizationID retrieves the organization scope attached by
// WithOrganizationID.
func UseOrganizationID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(orgIDCtxKey).(uuid.UUID)
	return id, ok
}
