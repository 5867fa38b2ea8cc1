// Package alerthistory models AlertHistory, the idempotency record used to
// avoid re-notifying the same alert window twice.
package alerthistory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type History struct {
	ID          uuid.UUID
	AlertRuleID uuid.UUID
	WindowStart time.Time
	WindowEnd   time.Time
	LogCount    int
	NotifiedAt  *time.Time
	ErrorMessage *string
	CreatedAt   time.Time
}

type Repository interface {
	Create(ctx context.Context, h History) (History, error)
	// RecentWithin reports whether a history row already exists for
	// ruleID whose window overlaps [since, now), the "no recent
	// alert_history entry within the window" idempotency gate.
	RecentWithin(ctx context.Context, ruleID uuid.UUID, since time.Time) (bool, error)
	// MarkAsNotified records channel delivery outcome; errMessage is set
	// only for the webhook-failure annotation path and left empty on full success.
	MarkAsNotified(ctx context.Context, id uuid.UUID, errMessage string) error
}
