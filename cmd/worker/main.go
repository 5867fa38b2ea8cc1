// Command worker drains the background queues cmd/server enqueues work
// onto (Sigma rule evaluation per ingested batch and the grouped
// notification jobs it produces) and runs the periodic threshold-alert
// evaluator.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/logtide/internal/config"
	"github.com/iota-uz/logtide/internal/infrastructure/cache"
	"github.com/iota-uz/logtide/internal/infrastructure/db"
	"github.com/iota-uz/logtide/internal/infrastructure/persistence"
	"github.com/iota-uz/logtide/internal/infrastructure/queue"
	"github.com/iota-uz/logtide/internal/logging"
	"github.com/iota-uz/logtide/internal/services/alerts"
	"github.com/iota-uz/logtide/internal/services/detection"
	"github.com/iota-uz/logtide/internal/services/ingestion"
	"github.com/iota-uz/logtide/pkg/composables"
)

// dequeueTimeout bounds each BRPOP poll so the worker's select loop can
// still observe context cancellation promptly during a quiet queue.
const dequeueTimeout = 5 * time.Second

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
	ctx = composables.WithPool(ctx, pool)

	cacheClient, err := cache.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		entry.WithError(err).Fatal("failed to connect to redis")
	}
	defer cacheClient.Close()

	detectionJobs := queue.New(cacheClient.Raw(), "detection-jobs")
	notificationJobs := queue.New(cacheClient.Raw(), "detection-notifications")

	rules := persistence.NewSigmaRuleRepository()
	detectionSvc := detection.New(rules, notificationJobs, entry)

	organizations := persistence.NewOrganizationRepository()
	notifications := persistence.NewNotificationRepository()
	history := persistence.NewAlertHistoryRepository()
	alertRules := persistence.NewAlertRuleRepository()
	projects := persistence.NewProjectRepository()
	logs := persistence.NewLogRepository()

	notifier := alerts.NewNotifier(notifications, organizations, history, cfg.SMTP, entry)
	evaluator := alerts.NewEvaluator(alertRules, history, logs, projects, notifier, entry)

	go runDetectionConsumer(ctx, detectionSvc, detectionJobs, entry)
	go runNotificationConsumer(ctx, notifier, notificationJobs, entry)

	entry.Info("logtide worker started")
	if err := evaluator.Start(ctx); err != nil {
		entry.WithError(err).Fatal("alert evaluator stopped")
	}
}

// runDetectionConsumer evaluates every ingested batch against the
// enabled Sigma rules for its project.
func runDetectionConsumer(ctx context.Context, svc *detection.Service, jobs *queue.Queue, logger *logrus.Entry) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		raw, ok, err := jobs.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			logger.WithError(err).Warn("detection queue: dequeue failed")
			continue
		}
		if !ok {
			continue
		}

		var job ingestion.DetectionJob
		if err := json.Unmarshal(raw, &job); err != nil {
			logger.WithError(err).Warn("detection queue: malformed job")
			continue
		}
		if err := svc.EvaluateBatch(ctx, job.OrganizationID, job.ProjectID, job.Logs); err != nil {
			logger.WithError(err).WithField("project_id", job.ProjectID).Error("sigma rule evaluation failed")
		}
	}
}

// runNotificationConsumer dispatches each grouped Sigma match across the
// in-app/webhook/email channels.
func runNotificationConsumer(ctx context.Context, notifier *alerts.Notifier, jobs *queue.Queue, logger *logrus.Entry) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		raw, ok, err := jobs.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			logger.WithError(err).Warn("notification queue: dequeue failed")
			continue
		}
		if !ok {
			continue
		}

		var job detection.NotificationJob
		if err := json.Unmarshal(raw, &job); err != nil {
			logger.WithError(err).Warn("notification queue: malformed job")
			continue
		}
		notifier.DispatchSigmaMatch(ctx, job)
	}
}
