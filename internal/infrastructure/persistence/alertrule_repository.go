package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/logtide/internal/domain/alertrule"
	"github.com/iota-uz/logtide/internal/domain/logentry"
	"github.com/iota-uz/logtide/pkg/composables"
)

var ErrAlertRuleNotFound = errors.New("alert rule not found")

type PgAlertRuleRepository struct{}

func NewAlertRuleRepository() alertrule.Repository {
	return &PgAlertRuleRepository{}
}

const alertRuleColumns = `id, organization_id, project_id, service_filter, levels,
	time_window_minutes, threshold_count, enabled, email_recipients, webhook_url, created_at`

func scanAlertRule(row pgx.Row) (alertrule.AlertRule, error) {
	var (
		r                 alertrule.AlertRule
		levels            []string
		timeWindowMinutes int
	)
	if err := row.Scan(&r.ID, &r.OrganizationID, &r.ProjectID, &r.Service, &levels,
		&timeWindowMinutes, &r.Threshold, &r.Enabled, &r.EmailRecipients, &r.WebhookURL, &r.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return alertrule.AlertRule{}, ErrAlertRuleNotFound
		}
		return alertrule.AlertRule{}, err
	}
	r.TimeWindow = time.Duration(timeWindowMinutes) * time.Minute
	r.Levels = make([]logentry.Level, len(levels))
	for i, l := range levels {
		r.Levels[i] = logentry.Level(l)
	}
	return r, nil
}

func (r *PgAlertRuleRepository) GetByID(ctx context.Context, id uuid.UUID) (alertrule.AlertRule, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return alertrule.AlertRule{}, err
	}
	return scanAlertRule(q.QueryRow(ctx, "SELECT "+alertRuleColumns+" FROM alert_rules WHERE id = $1", id))
}

// Enabled returns every enabled alert rule, the evaluation candidate set
// for the periodic cron-driven evaluator.
func (r *PgAlertRuleRepository) Enabled(ctx context.Context) ([]alertrule.AlertRule, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, "SELECT "+alertRuleColumns+" FROM alert_rules WHERE enabled = true")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []alertrule.AlertRule
	for rows.Next() {
		rule, err := scanAlertRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// ByOrganization returns every rule owned by the organization, enabled or
// not, for the management UI.
func (r *PgAlertRuleRepository) ByOrganization(ctx context.Context, organizationID uuid.UUID) ([]alertrule.AlertRule, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, "SELECT "+alertRuleColumns+" FROM alert_rules WHERE organization_id = $1 ORDER BY created_at DESC", organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []alertrule.AlertRule
	for rows.Next() {
		rule, err := scanAlertRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func levelStrings(levels []logentry.Level) []string {
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = string(l)
	}
	return out
}

func (r *PgAlertRuleRepository) Create(ctx context.Context, rule alertrule.AlertRule) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO alert_rules (
			id, organization_id, project_id, service_filter, levels,
			time_window_minutes, threshold_count, enabled, email_recipients, webhook_url, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, rule.ID, rule.OrganizationID, rule.ProjectID, rule.Service, levelStrings(rule.Levels),
		int(rule.TimeWindow/time.Minute), rule.Threshold, rule.Enabled, rule.EmailRecipients, rule.WebhookURL, rule.CreatedAt)
	return err
}

func (r *PgAlertRuleRepository) Update(ctx context.Context, rule alertrule.AlertRule) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		UPDATE alert_rules SET
			service_filter = $1, levels = $2, time_window_minutes = $3, threshold_count = $4,
			enabled = $5, email_recipients = $6, webhook_url = $7
		WHERE id = $8
	`, rule.Service, levelStrings(rule.Levels), int(rule.TimeWindow/time.Minute), rule.Threshold,
		rule.Enabled, rule.EmailRecipients, rule.WebhookURL, rule.ID)
	return err
}

func (r *PgAlertRuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, "DELETE FROM alert_rules WHERE id = $1", id)
	return err
}
