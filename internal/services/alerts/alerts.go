// Package alerts implements the periodic threshold-alert evaluator and its
// three-channel best-effort notifier, scheduled by robfig/cron/v3 in
// the same style as the other cron-driven background workers.
package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/logtide/internal/domain/alerthistory"
	"github.com/iota-uz/logtide/internal/domain/alertrule"
	"github.com/iota-uz/logtide/internal/domain/logentry"
	"github.com/iota-uz/logtide/internal/domain/project"
)

// evaluationSchedule runs the threshold check every minute; each rule's own
// TimeWindow controls how far back it looks, not how often it's checked.
const evaluationSchedule = "@every 1m"

// Evaluator periodically checks every enabled AlertRule's log count over
// its configured time window and raises a Notifier dispatch the first time
// a window crosses Threshold.
type Evaluator struct {
	cron     *cron.Cron
	rules    alertrule.Repository
	history  alerthistory.Repository
	logs     logentry.Repository
	projects project.Repository
	notifier *Notifier
	logger   *logrus.Entry
}

func NewEvaluator(
	rules alertrule.Repository,
	history alerthistory.Repository,
	logs logentry.Repository,
	projects project.Repository,
	notifier *Notifier,
	logger *logrus.Entry,
) *Evaluator {
	return &Evaluator{
		cron:     cron.New(),
		rules:    rules,
		history:  history,
		logs:     logs,
		projects: projects,
		notifier: notifier,
		logger:   logger,
	}
}

// Start schedules the periodic evaluation and blocks until ctx is
// canceled.
func (e *Evaluator) Start(ctx context.Context) error {
	if _, err := e.cron.AddFunc(evaluationSchedule, func() {
		if err := e.runOnce(ctx); err != nil && e.logger != nil {
			e.logger.WithError(err).Warn("alert evaluation pass failed")
		}
	}); err != nil {
		return fmt.Errorf("alerts: schedule evaluator: %w", err)
	}
	e.cron.Start()
	<-ctx.Done()
	stopCtx := e.cron.Stop()
	<-stopCtx.Done()
	return nil
}

func (e *Evaluator) runOnce(ctx context.Context) error {
	rules, err := e.rules.Enabled(ctx)
	if err != nil {
		return fmt.Errorf("alerts: load enabled rules: %w", err)
	}
	for _, rule := range rules {
		if err := e.evaluateRule(ctx, rule); err != nil && e.logger != nil {
			e.logger.WithError(err).WithField("alert_rule_id", rule.ID).Warn("alert rule evaluation failed")
		}
	}
	return nil
}

func (e *Evaluator) evaluateRule(ctx context.Context, rule alertrule.AlertRule) error {
	now := time.Now()
	windowStart := now.Add(-rule.TimeWindow)

	// An in-flight window for this rule already has a history row: skip
	// re-notifying for the same span.
	recent, err := e.history.RecentWithin(ctx, rule.ID, windowStart)
	if err != nil {
		return fmt.Errorf("alerts: check recent history: %w", err)
	}
	if recent {
		return nil
	}

	projectIDs, err := e.resolveProjectIDs(ctx, rule)
	if err != nil {
		return err
	}

	params := logentry.FindParams{
		ProjectIDs: projectIDs,
		From:       &windowStart,
		To:         &now,
	}
	if rule.Service != "" {
		params.Services = []string{rule.Service}
	}
	if len(rule.Levels) > 0 {
		params.Levels = rule.Levels
	}

	count, err := e.logs.Count(ctx, params)
	if err != nil {
		return fmt.Errorf("alerts: count matching logs: %w", err)
	}
	if int(count) < rule.Threshold {
		return nil
	}

	hist, err := e.history.Create(ctx, alerthistory.History{
		ID:          uuid.New(),
		AlertRuleID: rule.ID,
		WindowStart: windowStart,
		WindowEnd:   now,
		LogCount:    int(count),
	})
	if err != nil {
		return fmt.Errorf("alerts: record history: %w", err)
	}

	e.notifier.Dispatch(ctx, rule, hist)
	return nil
}

func (e *Evaluator) resolveProjectIDs(ctx context.Context, rule alertrule.AlertRule) ([]uuid.UUID, error) {
	if rule.ProjectID != nil {
		return []uuid.UUID{*rule.ProjectID}, nil
	}
	projects, err := e.projects.GetPaginated(ctx, &project.FindParams{OrganizationID: rule.OrganizationID})
	if err != nil {
		return nil, fmt.Errorf("alerts: list org projects: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID())
	}
	return ids, nil
}
