// Command server runs the logtide API: OTLP ingestion, session/provider
// auth, the logs query engine, and the live-tail WebSocket/SSE endpoints.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/logtide/internal/config"
	"github.com/iota-uz/logtide/internal/httpapi"
	"github.com/iota-uz/logtide/internal/infrastructure/cache"
	"github.com/iota-uz/logtide/internal/infrastructure/db"
	"github.com/iota-uz/logtide/internal/infrastructure/persistence"
	"github.com/iota-uz/logtide/internal/infrastructure/pubsub"
	"github.com/iota-uz/logtide/internal/infrastructure/queue"
	"github.com/iota-uz/logtide/internal/logging"
	"github.com/iota-uz/logtide/internal/services/authsvc"
	"github.com/iota-uz/logtide/internal/services/ingestion"
	"github.com/iota-uz/logtide/internal/services/livetail"
	"github.com/iota-uz/logtide/internal/services/query"
	"github.com/iota-uz/logtide/internal/services/settings"
	"github.com/iota-uz/logtide/pkg/otlp"
)

func main() {
	cfg := config.Use()
	log := logging.New(cfg.Environment == config.Production)
	entry := logrus.NewEntry(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DB.ConnString())
	if err != nil {
		entry.WithError(err).Fatal("failed to connect to database")
	}
	defer pool.Close()

	if _, err := db.Migrate(cfg.DB.ConnString(), log); err != nil {
		entry.WithError(err).Fatal("failed to run migrations")
	}

	cacheClient, err := cache.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		entry.WithError(err).Fatal("failed to connect to redis")
	}
	defer cacheClient.Close()

	bus := pubsub.NewBus(cacheClient.Raw())
	detectionJobs := queue.New(cacheClient.Raw(), "detection-jobs")

	organizations := persistence.NewOrganizationRepository()
	projects := persistence.NewProjectRepository()
	apiKeys := persistence.NewApiKeyRepository()
	users := persistence.NewUserRepository()
	identities := persistence.NewIdentityRepository()
	sessions := persistence.NewSessionRepository()
	providers := persistence.NewAuthProviderRepository()
	oidcStates := persistence.NewOIDCStateRepository()
	logs := persistence.NewLogRepository()
	spans := persistence.NewSpanRepository()
	settingsRepo := persistence.NewSystemSettingRepository()
	alertRules := persistence.NewAlertRuleRepository()
	notifications := persistence.NewNotificationRepository()

	settingsSvc := settings.New(settingsRepo, cacheClient, users, entry)

	factory := authsvc.NewFactory(users, oidcStates, cacheClient, cfg.Environment == config.Development)
	authService := authsvc.New(providers, identities, users, sessions, settingsSvc, factory, entry)

	limits := otlp.Limits{
		MaxCompressedBytes:   cfg.Ingestion.MaxCompressedBytes,
		MaxDecompressedBytes: cfg.Ingestion.MaxDecompressedBytes,
	}
	ingestionSvc := ingestion.New(pool, apiKeys, logs, spans, bus, detectionJobs, limits, entry)
	querySvc := query.New(logs, cacheClient)
	tailHub := livetail.NewHub(bus, entry)

	metrics := httpapi.NewMetrics()

	app := &httpapi.App{
		Config:          cfg,
		Logger:          entry,
		Pool:            pool,
		Redis:           cacheClient.Raw(),
		Ingestion:       ingestionSvc,
		Query:           querySvc,
		Auth:            authService,
		Settings:        settingsSvc,
		LiveTail:        tailHub,
		Organizations:   organizations,
		Projects:        projects,
		Providers:       providers,
		ApiKeys:         apiKeys,
		Users:           users,
		Identities:      identities,
		AlertRules:      alertRules,
		Notifications:   notifications,
		ProviderFactory: factory,
		Metrics:         metrics,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           app.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		entry.WithField("port", cfg.Server.Port).Info("logtide api server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			entry.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	entry.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		entry.WithError(err).Warn("graceful shutdown failed")
	}
}
