// Package httpapi mounts the platform HTTP surface: OTLP ingestion,
// session/provider auth, admin settings and auth-provider CRUD, the logs
// query engine, and the live-tail WebSocket/SSE endpoints. The framework
// doing the actual route dispatch (gorilla/mux) is an external collaborator;
// this package owns only the handlers and the wiring between them
// and the services in internal/services.
package httpapi

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/logtide/internal/config"
	"github.com/iota-uz/logtide/internal/domain/alertrule"
	"github.com/iota-uz/logtide/internal/domain/apikey"
	"github.com/iota-uz/logtide/internal/domain/authprovider"
	"github.com/iota-uz/logtide/internal/domain/identity"
	"github.com/iota-uz/logtide/internal/domain/notification"
	"github.com/iota-uz/logtide/internal/domain/organization"
	"github.com/iota-uz/logtide/internal/domain/project"
	"github.com/iota-uz/logtide/internal/domain/user"
	"github.com/iota-uz/logtide/internal/services/authsvc"
	"github.com/iota-uz/logtide/internal/services/ingestion"
	"github.com/iota-uz/logtide/internal/services/livetail"
	"github.com/iota-uz/logtide/internal/services/query"
	"github.com/iota-uz/logtide/internal/services/settings"
)

// App bundles every dependency a handler needs. It is constructed once in
// cmd/server and passed by reference; nothing here is a
// package-level singleton.
type App struct {
	Config *config.Configuration
	Logger *logrus.Entry

	// Pool is attached to every request's context so repositories (which
	// take no explicit pool dependency, per pkg/composables) can reach it.
	Pool *pgxpool.Pool

	// Redis backs the login/authorize rate limiter so the limit is shared
	// across every server instance, not tracked per-process.
	Redis *redis.Client

	Ingestion *ingestion.Service
	Query     *query.Service
	Auth      *authsvc.Service
	Settings  *settings.Service
	LiveTail  *livetail.Hub

	Organizations organization.Repository
	Projects      project.Repository
	Providers     authprovider.Repository
	ApiKeys       apikey.Repository
	Users         user.Repository
	Identities    identity.Repository
	AlertRules    alertrule.Repository
	Notifications notification.Repository

	// ProviderFactory builds a live Provider from a stored AuthProvider,
	// reused here so the admin "test connection" route can exercise the
	// same construction path authsvc.Service uses at login time.
	ProviderFactory authsvc.Factory

	Metrics *Metrics
}

// projectOrgID resolves a project to its owning organization, used by
// handlers that only have a projectID in scope (e.g. live-tail) but must
// still check organization membership.
func (a *App) projectOrgID(ctx context.Context, projectID uuid.UUID) (uuid.UUID, error) {
	p, err := a.Projects.GetByID(ctx, projectID)
	if err != nil {
		return uuid.Nil, err
	}
	return p.OrganizationID(), nil
}
