package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/ulule/limiter/v3"
	mhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

// NewRouter mounts the full API route table on a gorilla/mux router, wraps
// it with rs/cors (scoped to the configured frontend origin) and applies
// a ulule/limiter rate limit to the credential-guessing-prone auth routes.
func (a *App) NewRouter() http.Handler {
	r := mux.NewRouter()
	r.StrictSlash(true)
	r.Use(a.poolMiddleware)

	loginLimiter := a.buildLoginLimiter()

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()

	// Public auth routes.
	v1.HandleFunc("/auth/providers", a.HandleListProviders).Methods(http.MethodGet)
	v1.HandleFunc("/auth/config", a.HandleAuthConfig).Methods(http.MethodGet)
	v1.Handle("/auth/providers/{slug}/authorize", loginLimiter.Handler(http.HandlerFunc(a.HandleAuthorize))).Methods(http.MethodGet)
	v1.HandleFunc("/auth/providers/{slug}/callback", a.HandleCallback).Methods(http.MethodGet)
	v1.Handle("/auth/providers/{slug}/login", loginLimiter.Handler(http.HandlerFunc(a.HandleProviderLogin))).Methods(http.MethodPost)
	v1.HandleFunc("/auth/logout", a.HandleLogout).Methods(http.MethodPost)

	// Admin auth provider CRUD.
	v1.HandleFunc("/admin/auth/providers", a.HandleAdminListProviders).Methods(http.MethodGet)
	v1.HandleFunc("/admin/auth/providers", a.HandleAdminCreateProvider).Methods(http.MethodPost)
	v1.HandleFunc("/admin/auth/providers/{id}", a.HandleAdminUpdateProvider).Methods(http.MethodPut)
	v1.HandleFunc("/admin/auth/providers/{id}", a.HandleAdminDeleteProvider).Methods(http.MethodDelete)
	v1.HandleFunc("/admin/auth/providers/{id}/test", a.HandleAdminTestProvider).Methods(http.MethodPost)

	// Admin settings.
	v1.HandleFunc("/admin/settings", a.HandleAdminListSettings).Methods(http.MethodGet)
	v1.HandleFunc("/admin/settings", a.HandleAdminPatchSettings).Methods(http.MethodPatch)
	v1.HandleFunc("/admin/settings/{key}", a.HandleAdminGetSetting).Methods(http.MethodGet)
	v1.HandleFunc("/admin/settings/{key}", a.HandleAdminPutSetting).Methods(http.MethodPut)
	v1.HandleFunc("/admin/settings/{key}", a.HandleAdminDeleteSetting).Methods(http.MethodDelete)

	// Logs query engine.
	v1.HandleFunc("/logs/search", a.HandleLogsSearch).Methods(http.MethodGet)
	v1.HandleFunc("/logs/context", a.HandleLogsContext).Methods(http.MethodGet)
	v1.HandleFunc("/logs/by-trace", a.HandleLogsByTrace).Methods(http.MethodGet)
	v1.HandleFunc("/logs/stats", a.HandleLogsStats).Methods(http.MethodGet)
	v1.HandleFunc("/logs/top-services", a.HandleLogsTopServices).Methods(http.MethodGet)
	v1.HandleFunc("/logs/top-messages", a.HandleLogsTopMessages).Methods(http.MethodGet)
	v1.HandleFunc("/logs/distinct-services", a.HandleLogsDistinctServices).Methods(http.MethodGet)

	// Live tail.
	v1.HandleFunc("/projects/{projectId}/tail/ws", a.HandleLiveTailWS).Methods(http.MethodGet)
	v1.HandleFunc("/siem/events", a.HandleLiveTailSSE).Methods(http.MethodGet)

	// OTLP ingestion.
	r.HandleFunc("/v1/otlp/logs", a.HandleIngestLogs).Methods(http.MethodPost)
	r.HandleFunc("/v1/otlp/traces", a.HandleIngestTraces).Methods(http.MethodPost)
	r.HandleFunc("/v1/otlp/logs", a.HandleOTLPHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/otlp/traces", a.HandleOTLPHealth).Methods(http.MethodGet)

	// Organizations, projects, API keys, alert rules, notifications.
	v1.HandleFunc("/organizations", a.HandleListOrganizations).Methods(http.MethodGet)
	v1.HandleFunc("/organizations", a.HandleCreateOrganization).Methods(http.MethodPost)
	v1.HandleFunc("/organizations/{id}/members", a.HandleAddOrganizationMember).Methods(http.MethodPost)
	v1.HandleFunc("/organizations/{id}/members/{userId}", a.HandleRemoveOrganizationMember).Methods(http.MethodDelete)
	v1.HandleFunc("/projects", a.HandleListProjects).Methods(http.MethodGet)
	v1.HandleFunc("/projects", a.HandleCreateProject).Methods(http.MethodPost)
	v1.HandleFunc("/projects/{id}", a.HandleDeleteProject).Methods(http.MethodDelete)
	v1.HandleFunc("/projects/{id}/api-keys", a.HandleListApiKeys).Methods(http.MethodGet)
	v1.HandleFunc("/projects/{id}/api-keys", a.HandleCreateApiKey).Methods(http.MethodPost)
	v1.HandleFunc("/api-keys/{id}", a.HandleRevokeApiKey).Methods(http.MethodDelete)
	v1.HandleFunc("/alerts/rules", a.HandleListAlertRules).Methods(http.MethodGet)
	v1.HandleFunc("/alerts/rules", a.HandleCreateAlertRule).Methods(http.MethodPost)
	v1.HandleFunc("/alerts/rules/{id}", a.HandleUpdateAlertRule).Methods(http.MethodPut)
	v1.HandleFunc("/alerts/rules/{id}", a.HandleDeleteAlertRule).Methods(http.MethodDelete)
	v1.HandleFunc("/notifications", a.HandleListNotifications).Methods(http.MethodGet)
	v1.HandleFunc("/notifications/{id}/read", a.HandleMarkNotificationRead).Methods(http.MethodPost)

	if a.Metrics != nil {
		r.Handle("/metrics", a.Metrics.Handler()).Methods(http.MethodGet)
	}

	corsOpts := cors.New(cors.Options{
		AllowedOrigins:   []string{a.Config.Frontend.URL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Content-Encoding", "X-API-Key"},
		AllowCredentials: true,
	})

	return corsOpts.Handler(r)
}

// buildLoginLimiter wires config.RateLimitConfig into a Redis-backed
// ulule/limiter instance shared across every server instance, guarding the
// endpoints an attacker would use to brute-force credentials or exhaust
// the OIDC state table.
func (a *App) buildLoginLimiter() *mhttp.Middleware {
	period := a.Config.RateLimit.LoginWindow
	if period <= 0 {
		period = time.Minute
	}
	rate := limiter.Rate{
		Period: period,
		Limit:  a.Config.RateLimit.LoginMax,
	}
	store, err := redisstore.NewStoreWithOptions(a.Redis, limiter.StoreOptions{Prefix: "logtide:ratelimit"})
	if err != nil {
		// Mirrors db.Connect's fail-fast startup behavior: a broken rate
		// limiter store must not silently serve unlimited login attempts.
		panic(fmt.Errorf("httpapi: build rate limiter store: %w", err))
	}
	instance := limiter.New(store, rate)
	return mhttp.NewMiddleware(instance)
}
