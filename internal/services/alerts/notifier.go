package alerts

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/smtp"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/logtide/internal/config"
	"github.com/iota-uz/logtide/internal/domain/alerthistory"
	"github.com/iota-uz/logtide/internal/domain/alertrule"
	"github.com/iota-uz/logtide/internal/domain/notification"
	"github.com/iota-uz/logtide/internal/domain/organization"
	"github.com/iota-uz/logtide/internal/services/detection"
)

// Notifier fans an alert out across in-app, email, and
// webhook channels on a best-effort basis: one channel's failure never blocks
// another, and the outcome is recorded back onto the triggering History
// row.
//
// There is no third-party mail client in the example corpus, so the email
// channel uses net/smtp directly rather than reaching for an unverified
// dependency.
type Notifier struct {
	notifications notification.Repository
	orgs          organization.Repository
	history       alerthistory.Repository
	smtpCfg       config.SMTPConfig
	httpClient    *http.Client
	logger        *logrus.Entry
}

func NewNotifier(
	notifications notification.Repository,
	orgs organization.Repository,
	history alerthistory.Repository,
	smtpCfg config.SMTPConfig,
	logger *logrus.Entry,
) *Notifier {
	return &Notifier{
		notifications: notifications,
		orgs:          orgs,
		history:       history,
		smtpCfg:       smtpCfg,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		logger:        logger,
	}
}

// Dispatch sends the triggered alert across every configured channel.
func (n *Notifier) Dispatch(ctx context.Context, rule alertrule.AlertRule, hist alerthistory.History) {
	title := fmt.Sprintf("Alert: %d logs in the last %s", hist.LogCount, rule.TimeWindow)
	body := fmt.Sprintf("Service=%q crossed the threshold of %d within %s (window %s - %s).",
		rule.Service, rule.Threshold, rule.TimeWindow, hist.WindowStart.Format(time.RFC3339), hist.WindowEnd.Format(time.RFC3339))

	n.notifyInApp(ctx, rule, title, body)

	var webhookErr error
	if rule.WebhookURL != "" {
		webhookErr = n.notifyWebhook(ctx, rule.WebhookURL, title, body)
	}
	if len(rule.EmailRecipients) > 0 {
		n.notifyEmail(ctx, rule.EmailRecipients, title, body)
	}

	errMessage := ""
	if webhookErr != nil {
		errMessage = fmt.Sprintf("Webhook failed: %s", webhookErr.Error())
	}
	if err := n.history.MarkAsNotified(ctx, hist.ID, errMessage); err != nil && n.logger != nil {
		n.logger.WithError(err).WithField("alert_history_id", hist.ID).Warn("failed to mark alert history as notified")
	}
}

func (n *Notifier) notifyInApp(ctx context.Context, rule alertrule.AlertRule, title, body string) {
	members, err := n.orgs.Members(ctx, rule.OrganizationID)
	if err != nil {
		if n.logger != nil {
			n.logger.WithError(err).WithField("organization_id", rule.OrganizationID).Warn("in-app notification: failed to list org members")
		}
		return
	}
	for _, m := range members {
		note := notification.Notification{
			ID:        uuid.New(),
			UserID:    m.UserID,
			Title:     title,
			Body:      body,
			CreatedAt: time.Now(),
		}
		if err := n.notifications.Create(ctx, note); err != nil && n.logger != nil {
			n.logger.WithError(err).WithField("user_id", m.UserID).Warn("in-app notification: create failed")
		}
	}
}

func (n *Notifier) notifyWebhook(ctx context.Context, url, title, body string) error {
	payload := fmt.Sprintf(`{"title":%q,"body":%q}`, title, body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s", http.StatusText(resp.StatusCode))
	}
	return nil
}

func (n *Notifier) notifyEmail(ctx context.Context, recipients []string, title, body string) {
	if n.smtpCfg.Host == "" {
		if n.logger != nil {
			n.logger.Warn("email notification: smtp not configured")
		}
		return
	}
	addr := fmt.Sprintf("%s:%s", n.smtpCfg.Host, n.smtpCfg.Port)
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		n.smtpCfg.From, joinAddrs(recipients), title, body))

	var auth smtp.Auth
	if n.smtpCfg.User != "" {
		auth = smtp.PlainAuth("", n.smtpCfg.User, n.smtpCfg.Pass, n.smtpCfg.Host)
	}
	if err := smtp.SendMail(addr, auth, n.smtpCfg.From, recipients, msg); err != nil && n.logger != nil {
		n.logger.WithError(err).Warn("email notification: send failed")
	}
}

// DispatchSigmaMatch fans a detection.NotificationJob out across the same
// three channels as a threshold Dispatch, reusing this Notifier's
// in-app/webhook/email plumbing for Sigma-rule matches.
func (n *Notifier) DispatchSigmaMatch(ctx context.Context, job detection.NotificationJob) {
	title := fmt.Sprintf("Detection: %q matched %d log(s)", job.RuleTitle, len(job.Logs))
	body := fmt.Sprintf("Rule %q matched %d log(s) in organization %s at %s.",
		job.RuleTitle, len(job.Logs), job.OrganizationID, job.MatchedAt.Format(time.RFC3339))

	members, err := n.orgs.Members(ctx, job.OrganizationID)
	if err != nil {
		if n.logger != nil {
			n.logger.WithError(err).WithField("organization_id", job.OrganizationID).Warn("sigma notification: failed to list org members")
		}
	}
	for _, m := range members {
		note := notification.Notification{
			ID:        uuid.New(),
			UserID:    m.UserID,
			Title:     title,
			Body:      body,
			CreatedAt: time.Now(),
		}
		if err := n.notifications.Create(ctx, note); err != nil && n.logger != nil {
			n.logger.WithError(err).WithField("user_id", m.UserID).Warn("sigma notification: create failed")
		}
	}

	if job.WebhookURL != "" {
		if err := n.notifyWebhook(ctx, job.WebhookURL, title, body); err != nil && n.logger != nil {
			n.logger.WithError(err).WithField("rule_id", job.RuleID).Warn("sigma notification: webhook failed")
		}
	}
	if len(job.EmailRecipients) > 0 {
		n.notifyEmail(ctx, job.EmailRecipients, title, body)
	}
}

func joinAddrs(addrs []string) string {
	out := ""
	for i, a := range addrs {
		if i > 0 {
			out += ", "
		}
		out += a
	}
	return out
}
