package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/logtide/internal/domain/sigmarule"
	"github.com/iota-uz/logtide/pkg/composables"
)

var ErrSigmaRuleNotFound = errors.New("sigma rule not found")

type PgSigmaRuleRepository struct{}

func NewSigmaRuleRepository() sigmarule.Repository {
	return &PgSigmaRuleRepository{}
}

const sigmaRuleColumns = `id, organization_id, project_id, sigma_id, title, level, status, enabled,
	logsource, detection, email_recipients, webhook_url, linked_alert_rule_id, conversion_metadata, created_at`

func scanSigmaRule(row pgx.Row) (sigmarule.SigmaRule, error) {
	var (
		r                                      sigmarule.SigmaRule
		status                                 string
		logsourceRaw, detectionRaw, metaRaw    []byte
		emailRecipients                        []string
	)
	if err := row.Scan(&r.ID, &r.OrganizationID, &r.ProjectID, &r.SigmaID, &r.Title, &r.Level, &status, &r.Enabled,
		&logsourceRaw, &detectionRaw, &emailRecipients, &r.WebhookURL, &r.AlertRuleID, &metaRaw, &r.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sigmarule.SigmaRule{}, ErrSigmaRuleNotFound
		}
		return sigmarule.SigmaRule{}, err
	}
	r.Status = sigmarule.Status(status)
	r.EmailRecipients = emailRecipients
	if len(logsourceRaw) > 0 {
		if err := json.Unmarshal(logsourceRaw, &r.LogSource); err != nil {
			return sigmarule.SigmaRule{}, err
		}
	}
	if len(detectionRaw) > 0 {
		if err := json.Unmarshal(detectionRaw, &r.Detection); err != nil {
			return sigmarule.SigmaRule{}, err
		}
	}
	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &r.ConversionMetadata); err != nil {
			return sigmarule.SigmaRule{}, err
		}
	}
	return r, nil
}

func (r *PgSigmaRuleRepository) GetByID(ctx context.Context, id uuid.UUID) (sigmarule.SigmaRule, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return sigmarule.SigmaRule{}, err
	}
	return scanSigmaRule(q.QueryRow(ctx, "SELECT "+sigmaRuleColumns+" FROM sigma_rules WHERE id = $1", id))
}

// EnabledFor returns every enabled rule scoped to the organization or to
// org+project; project-less rules (nil project_id) apply to every project
// in the org.
func (r *PgSigmaRuleRepository) EnabledFor(ctx context.Context, organizationID uuid.UUID, projectID *uuid.UUID) ([]sigmarule.SigmaRule, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `
		SELECT `+sigmaRuleColumns+` FROM sigma_rules
		WHERE organization_id = $1 AND enabled = true AND (project_id IS NULL OR project_id = $2)
	`, organizationID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sigmarule.SigmaRule
	for rows.Next() {
		rule, err := scanSigmaRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *PgSigmaRuleRepository) Create(ctx context.Context, rule sigmarule.SigmaRule) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	logsourceRaw, err := json.Marshal(rule.LogSource)
	if err != nil {
		return err
	}
	detectionRaw, err := json.Marshal(rule.Detection)
	if err != nil {
		return err
	}
	metaRaw, err := json.Marshal(rule.ConversionMetadata)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO sigma_rules (
			id, organization_id, project_id, sigma_id, title, level, status, enabled,
			logsource, detection, email_recipients, webhook_url, linked_alert_rule_id, conversion_metadata, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, rule.ID, rule.OrganizationID, rule.ProjectID, rule.SigmaID, rule.Title, rule.Level, string(rule.Status), rule.Enabled,
		logsourceRaw, detectionRaw, rule.EmailRecipients, rule.WebhookURL, rule.AlertRuleID, metaRaw, rule.CreatedAt)
	return err
}

func (r *PgSigmaRuleRepository) Update(ctx context.Context, rule sigmarule.SigmaRule) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	detectionRaw, err := json.Marshal(rule.Detection)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		UPDATE sigma_rules SET
			title = $1, level = $2, status = $3, enabled = $4, detection = $5,
			email_recipients = $6, webhook_url = $7
		WHERE id = $8
	`, rule.Title, rule.Level, string(rule.Status), rule.Enabled, detectionRaw,
		rule.EmailRecipients, rule.WebhookURL, rule.ID)
	return err
}

func (r *PgSigmaRuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, "DELETE FROM sigma_rules WHERE id = $1", id)
	return err
}
