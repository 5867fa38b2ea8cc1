// Package alertrule models AlertRule: threshold evaluation over a time
// window.
package alertrule

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/logtide/internal/domain/logentry"
)

// AlertRule fires when the count of matching logs in [now-TimeWindow, now]
// reaches Threshold.
type AlertRule struct {
	ID              uuid.UUID
	OrganizationID  uuid.UUID
	ProjectID       *uuid.UUID
	Service         string // empty = any
	Levels          []logentry.Level
	TimeWindow      time.Duration
	Threshold       int
	Enabled         bool
	EmailRecipients []string
	WebhookURL      string
	CreatedAt       time.Time
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (AlertRule, error)
	Enabled(ctx context.Context) ([]AlertRule, error)
	ByOrganization(ctx context.Context, organizationID uuid.UUID) ([]AlertRule, error)
	Create(ctx context.Context, r AlertRule) error
	Update(ctx context.Context, r AlertRule) error
	Delete(ctx context.Context, id uuid.UUID) error
}
