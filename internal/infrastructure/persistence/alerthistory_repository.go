package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/logtide/internal/domain/alerthistory"
	"github.com/iota-uz/logtide/pkg/composables"
)

var ErrAlertHistoryNotFound = errors.New("alert history not found")

type PgAlertHistoryRepository struct{}

func NewAlertHistoryRepository() alerthistory.Repository {
	return &PgAlertHistoryRepository{}
}

func (r *PgAlertHistoryRepository) Create(ctx context.Context, h alerthistory.History) (alerthistory.History, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return alerthistory.History{}, err
	}
	err = q.QueryRow(ctx, `
		INSERT INTO alert_history (id, alert_rule_id, window_start, window_end, log_count, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at
	`, h.ID, h.AlertRuleID, h.WindowStart, h.WindowEnd, h.LogCount, h.CreatedAt).Scan(&h.ID, &h.CreatedAt)
	if err != nil {
		return alerthistory.History{}, err
	}
	return h, nil
}

// RecentWithin reports whether a history row already exists for ruleID
// whose window overlaps [since, now). This is the idempotency check that
// stops the evaluator from re-notifying the same window twice.
func (r *PgAlertHistoryRepository) RecentWithin(ctx context.Context, ruleID uuid.UUID, since time.Time) (bool, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	err = q.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM alert_history WHERE alert_rule_id = $1 AND window_end >= $2
		)
	`, ruleID, since).Scan(&exists)
	return exists, err
}

// MarkAsNotified records channel delivery outcome: errMessage is set only
// for the webhook-failure annotation path and
// left empty on full success.
func (r *PgAlertHistoryRepository) MarkAsNotified(ctx context.Context, id uuid.UUID, errMessage string) error {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	var errMsgArg *string
	if errMessage != "" {
		errMsgArg = &errMessage
	}
	_, err = q.Exec(ctx, `
		UPDATE alert_history SET notified_at = now(), error_message = $1 WHERE id = $2
	`, errMsgArg, id)
	return err
}
