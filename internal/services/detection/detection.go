// Package detection implements the Sigma-style rule evaluator: selection
// matching, boolean condition evaluation, post-match grouping, and
// notification-job enqueue.
package detection

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/logtide/internal/domain/logentry"
	"github.com/iota-uz/logtide/internal/domain/sigmarule"
	"github.com/iota-uz/logtide/internal/infrastructure/queue"
)

// Match is one (rule, log) hit produced by evaluating a batch.
type Match struct {
	Rule sigmarule.SigmaRule
	Log  logentry.Log
}

// NotificationJob groups every match against one rule within a batch into
// a single notification dispatch.
type NotificationJob struct {
	RuleID         uuid.UUID      `json:"ruleId"`
	RuleTitle      string         `json:"ruleTitle"`
	OrganizationID uuid.UUID      `json:"organizationId"`
	Logs           []logentry.Log `json:"logs"`
	EmailRecipients []string      `json:"emailRecipients,omitempty"`
	WebhookURL     string         `json:"webhookUrl,omitempty"`
	MatchedAt      time.Time      `json:"matchedAt"`
}

type Service struct {
	rules         sigmarule.Repository
	notifications *queue.Queue
	logger        *logrus.Entry
}

func New(rules sigmarule.Repository, notifications *queue.Queue, logger *logrus.Entry) *Service {
	return &Service{rules: rules, notifications: notifications, logger: logger}
}

// EvaluateBatch runs every enabled rule for (organizationID, projectID)
// against each log in the batch. A single rule-evaluation error (a broken regex, a malformed condition)
// aborts the entire batch rather than silently skipping the offending
// rule. The worker loop logs the returned error and drops the job; it is
// neither retried nor dead-lettered.
func (s *Service) EvaluateBatch(ctx context.Context, organizationID uuid.UUID, projectID uuid.UUID, logs []logentry.Log) error {
	rules, err := s.rules.EnabledFor(ctx, organizationID, &projectID)
	if err != nil {
		return fmt.Errorf("detection: load rules: %w", err)
	}
	if len(rules) == 0 {
		return nil
	}

	grouped := map[uuid.UUID][]logentry.Log{}
	ruleByID := map[uuid.UUID]sigmarule.SigmaRule{}

	for _, rule := range rules {
		for _, log := range logs {
			if !logSourceMatches(rule.LogSource, log) {
				continue
			}
			matched, err := evaluateDetection(rule.Detection, log)
			if err != nil {
				return fmt.Errorf("detection: rule %s: %w", rule.SigmaID, err)
			}
			if matched {
				grouped[rule.ID] = append(grouped[rule.ID], log)
				ruleByID[rule.ID] = rule
			}
		}
	}

	for ruleID, matchedLogs := range grouped {
		rule := ruleByID[ruleID]
		if !rule.HasNotificationTarget() {
			if s.logger != nil {
				s.logger.WithFields(logrus.Fields{
					"rule_id":     ruleID,
					"sigma_id":    rule.SigmaID,
					"match_count": len(matchedLogs),
				}).Info("sigma rule matched but has no notification target, skipping")
			}
			continue
		}
		if err := s.enqueueNotification(ctx, rule, matchedLogs); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) enqueueNotification(ctx context.Context, rule sigmarule.SigmaRule, logs []logentry.Log) error {
	job := NotificationJob{
		RuleID:          rule.ID,
		RuleTitle:       rule.Title,
		OrganizationID:  rule.OrganizationID,
		Logs:            logs,
		EmailRecipients: rule.EmailRecipients,
		WebhookURL:      rule.WebhookURL,
		MatchedAt:       time.Now(),
	}
	if err := s.notifications.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("detection: enqueue notification for rule %s: %w", rule.SigmaID, err)
	}
	return nil
}

func logSourceMatches(src sigmarule.LogSource, log logentry.Log) bool {
	if src.Service != "" && src.Service != log.Service {
		return false
	}
	return true
}

// evaluateDetection evaluates every selection against log, then folds the
// per-selection results through the rule's boolean condition.
func evaluateDetection(d sigmarule.Detection, log logentry.Log) (bool, error) {
	matched := make(map[string]bool, len(d.Selections))
	for name, sel := range d.Selections {
		ok, err := evaluateSelection(sel, log)
		if err != nil {
			return false, err
		}
		matched[name] = ok
	}
	return evalCondition(d.Condition, matched)
}

// evaluateSelection is an AND over every Matcher in the selection,
// matching Sigma's `selection:` semantics.
func evaluateSelection(sel sigmarule.Selection, log logentry.Log) (bool, error) {
	for _, m := range sel.Matchers {
		ok, err := evaluateMatcher(m, log)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evaluateMatcher(m sigmarule.Matcher, log logentry.Log) (bool, error) {
	value, ok := fieldValue(m.Field, log)
	if !ok {
		return false, nil
	}
	switch m.Op {
	case sigmarule.OpEquals:
		return value == m.Value, nil
	case sigmarule.OpContains:
		return strings.Contains(value, m.Value), nil
	case sigmarule.OpStartsWith:
		return strings.HasPrefix(value, m.Value), nil
	case sigmarule.OpEndsWith:
		return strings.HasSuffix(value, m.Value), nil
	case sigmarule.OpRegex:
		re, err := regexp.Compile(m.Value)
		if err != nil {
			return false, fmt.Errorf("detection: invalid regex %q: %w", m.Value, err)
		}
		return re.MatchString(value), nil
	default:
		return false, fmt.Errorf("detection: unknown operator %q", m.Op)
	}
}

// fieldValue resolves a matcher's field name against the fixed Log columns
// first, then its metadata attributes.
func fieldValue(field string, log logentry.Log) (string, bool) {
	switch field {
	case "message":
		return log.Message, true
	case "service":
		return log.Service, true
	case "level":
		return string(log.Level), true
	case "traceId":
		return log.TraceID, true
	case "spanId":
		return log.SpanID, true
	default:
		v, ok := log.Metadata[field]
		if !ok {
			return "", false
		}
		if s, ok := v.(string); ok {
			return s, true
		}
		return fmt.Sprintf("%v", v), true
	}
}
