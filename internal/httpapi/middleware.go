package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/iota-uz/logtide/internal/domain/apikey"
	"github.com/iota-uz/logtide/internal/domain/systemsetting"
	"github.com/iota-uz/logtide/pkg/composables"
)

// poolMiddleware attaches the pgx pool to every request's context so
// repositories can resolve it via composables.UsePool without taking it as
// an explicit constructor dependency.
func (a *App) poolMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := composables.WithPool(r.Context(), a.Pool)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts a session token from the Authorization header
// (WebSocket/standard API clients) or the `token` query parameter, which
// SSE clients must use because EventSource cannot set headers.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimPrefix(auth, "Bearer ")
		}
		return auth
	}
	return r.URL.Query().Get("token")
}

// sessionAuth resolves the caller to a user, honoring auth-free mode:
// when auth.mode=none, every request is served as the bootstrap default
// user with no token required.
func (a *App) sessionAuth(w http.ResponseWriter, r *http.Request) (ctxUser, bool) {
	ctx := r.Context()
	mode, err := a.Settings.AuthMode(ctx)
	if err == nil && mode == systemsetting.AuthModeNone {
		u, err := a.Settings.GetDefaultUser(ctx)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "auth-free mode is enabled but no default user is configured")
			return ctxUser{}, false
		}
		return ctxUser{id: u.ID(), isAdmin: u.IsAdmin()}, true
	}

	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing session token")
		return ctxUser{}, false
	}
	u, err := a.Auth.ValidateSession(ctx, token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired session")
		return ctxUser{}, false
	}
	return ctxUser{id: u.ID(), isAdmin: u.IsAdmin()}, true
}

type ctxUser struct {
	id      uuid.UUID
	isAdmin bool
}

// requireSession is a handler decorator that authenticates the caller and
// passes the resolved user to next.
func (a *App) requireSession(next func(http.ResponseWriter, *http.Request, ctxUser)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := a.sessionAuth(w, r)
		if !ok {
			return
		}
		next(w, r, u)
	}
}

// requireAdmin additionally rejects non-admin callers with 403.
func (a *App) requireAdmin(next func(http.ResponseWriter, *http.Request, ctxUser)) http.HandlerFunc {
	return a.requireSession(func(w http.ResponseWriter, r *http.Request, u ctxUser) {
		if !u.isAdmin {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next(w, r, u)
	})
}

// requireOrgMember authenticates the caller and rejects callers who are not
// members of organizationID with 403.
func (a *App) requireOrgMember(organizationID uuid.UUID, w http.ResponseWriter, r *http.Request) (ctxUser, bool) {
	u, ok := a.sessionAuth(w, r)
	if !ok {
		return ctxUser{}, false
	}
	member, err := a.Organizations.IsMember(r.Context(), organizationID, u.id)
	if err != nil || !member {
		writeError(w, http.StatusForbidden, "not a member of this organization")
		return ctxUser{}, false
	}
	return u, true
}

// requireProjectMember authenticates the caller and verifies they belong
// to the organization owning projectID.
func (a *App) requireProjectMember(projectID uuid.UUID, w http.ResponseWriter, r *http.Request) (ctxUser, bool) {
	return a.requireProjectsMember([]uuid.UUID{projectID}, w, r)
}

// requireProjectsMember is the multi-project variant used by the logs
// search; the caller must be a member of every owning organization.
func (a *App) requireProjectsMember(projectIDs []uuid.UUID, w http.ResponseWriter, r *http.Request) (ctxUser, bool) {
	u, ok := a.sessionAuth(w, r)
	if !ok {
		return ctxUser{}, false
	}
	ctx := r.Context()
	for _, projectID := range projectIDs {
		orgID, err := a.projectOrgID(ctx, projectID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown project")
			return ctxUser{}, false
		}
		member, err := a.Organizations.IsMember(ctx, orgID, u.id)
		if err != nil || !member {
			writeError(w, http.StatusForbidden, "not a member of this organization")
			return ctxUser{}, false
		}
	}
	return u, true
}

// apiKeyAuth resolves the X-API-Key header to its AuthContext for the
// OTLP ingestion endpoints.
func (a *App) apiKeyAuth(w http.ResponseWriter, r *http.Request) (apikey.AuthContext, bool) {
	plaintext := r.Header.Get("X-API-Key")
	if plaintext == "" {
		writeError(w, http.StatusUnauthorized, "missing X-API-Key header")
		return apikey.AuthContext{}, false
	}
	authCtx, err := a.Ingestion.Authenticate(r.Context(), plaintext)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or revoked api key")
		return apikey.AuthContext{}, false
	}
	return authCtx, true
}
