// Package sigmarule models SigmaRule, the declarative detection rule
// evaluated by internal/services/detection against batched logs.
package sigmarule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status mirrors the common Sigma rule lifecycle states.
type Status string

const (
	StatusStable       Status = "stable"
	StatusExperimental Status = "experimental"
	StatusDeprecated   Status = "deprecated"
	StatusDisabled     Status = "disabled"
)

// LogSource narrows which logs a rule considers, analogous to Sigma's
// logsource block; nil/zero fields match anything.
type LogSource struct {
	Service  string `json:"service,omitempty"`
	Category string `json:"category,omitempty"`
}

// Matcher is a single field-level test within a selection. Op names mirror
// Sigma's pipe modifiers (field|contains, field|startswith, ...).
type Matcher struct {
	Field string `json:"field"`
	Op    Op     `json:"op"`
	Value string `json:"value"`
}

// Op enumerates the supported field-matching operators.
type Op string

const (
	OpEquals     Op = "equals"
	OpContains   Op = "contains"
	OpStartsWith Op = "startswith"
	OpEndsWith   Op = "endswith"
	OpRegex      Op = "regex"
)

// Selection is a named AND-of-matchers group, Sigma's `selection:` block.
type Selection struct {
	Matchers []Matcher `json:"matchers"`
}

// Detection is a Sigma-style detection tree: named selections combined by
// a boolean condition expression, e.g. "selection1 and not selection2".
type Detection struct {
	Selections map[string]Selection `json:"selections"`
	Condition  string                `json:"condition"`
}

// SigmaRule is a detection rule scoped to an organization and optionally a
// single project.
type SigmaRule struct {
	ID                 uuid.UUID
	OrganizationID     uuid.UUID
	ProjectID          *uuid.UUID
	SigmaID            string
	Title              string
	Level              string
	Status             Status
	Enabled            bool
	LogSource          LogSource
	Detection          Detection
	EmailRecipients    []string
	WebhookURL         string
	AlertRuleID        *uuid.UUID
	ConversionMetadata map[string]any
	CreatedAt          time.Time
}

// HasNotificationTarget reports whether matches against this rule should
// be enqueued for notification.
func (r SigmaRule) HasNotificationTarget() bool {
	return len(r.EmailRecipients) > 0 || r.WebhookURL != ""
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (SigmaRule, error)
	// EnabledFor returns every enabled rule scoped to the organization or
	// to org+project (global-to-org rules have a nil ProjectID).
	EnabledFor(ctx context.Context, organizationID uuid.UUID, projectID *uuid.UUID) ([]SigmaRule, error)
	Create(ctx context.Context, r SigmaRule) error
	Update(ctx context.Context, r SigmaRule) error
	Delete(ctx context.Context, id uuid.UUID) error
}
