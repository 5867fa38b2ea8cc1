package alerts_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/logtide/internal/config"
	"github.com/iota-uz/logtide/internal/domain/alerthistory"
	"github.com/iota-uz/logtide/internal/domain/alertrule"
	"github.com/iota-uz/logtide/internal/domain/logentry"
	"github.com/iota-uz/logtide/internal/domain/notification"
	"github.com/iota-uz/logtide/internal/domain/organization"
	"github.com/iota-uz/logtide/internal/domain/project"
	"github.com/iota-uz/logtide/internal/services/alerts"
)

type fakeHistoryRepo struct {
	recent   bool
	created  []alerthistory.History
	notified map[uuid.UUID]string
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{notified: map[uuid.UUID]string{}}
}

func (f *fakeHistoryRepo) Create(_ context.Context, h alerthistory.History) (alerthistory.History, error) {
	h.ID = uuid.New()
	f.created = append(f.created, h)
	return h, nil
}
func (f *fakeHistoryRepo) RecentWithin(context.Context, uuid.UUID, time.Time) (bool, error) {
	return f.recent, nil
}
func (f *fakeHistoryRepo) MarkAsNotified(_ context.Context, id uuid.UUID, errMessage string) error {
	f.notified[id] = errMessage
	return nil
}

type fakeOrgRepo struct {
	organization.Repository
	members []organization.Member
}

func (f *fakeOrgRepo) Members(context.Context, uuid.UUID) ([]organization.Member, error) {
	return f.members, nil
}

type fakeNotificationRepo struct {
	created []notification.Notification
}

func (f *fakeNotificationRepo) Create(_ context.Context, n notification.Notification) error {
	f.created = append(f.created, n)
	return nil
}
func (f *fakeNotificationRepo) ListByUser(context.Context, uuid.UUID, int, int) ([]notification.Notification, error) {
	return nil, nil
}
func (f *fakeNotificationRepo) MarkRead(context.Context, uuid.UUID) error      { return nil }
func (f *fakeNotificationRepo) UnreadCount(context.Context, uuid.UUID) (int64, error) { return 0, nil }

func TestNotifierDispatchWebhookFailureRecordsErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	history := newFakeHistoryRepo()
	orgID := uuid.New()
	userID := uuid.New()
	orgs := &fakeOrgRepo{members: []organization.Member{{UserID: userID, OrganizationID: orgID}}}
	notifications := &fakeNotificationRepo{}

	notifier := alerts.NewNotifier(notifications, orgs, history, config.SMTPConfig{}, nil)

	rule := alertrule.AlertRule{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Threshold:      5,
		TimeWindow:     time.Minute,
		WebhookURL:     srv.URL,
	}
	hist := alerthistory.History{ID: uuid.New(), AlertRuleID: rule.ID, LogCount: 10}

	notifier.Dispatch(context.Background(), rule, hist)

	require.Len(t, notifications.created, 1)
	assert.Contains(t, history.notified[hist.ID], "Webhook failed")
}

func TestNotifierDispatchSuccessClearsErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	history := newFakeHistoryRepo()
	orgs := &fakeOrgRepo{}
	notifications := &fakeNotificationRepo{}
	notifier := alerts.NewNotifier(notifications, orgs, history, config.SMTPConfig{}, nil)

	rule := alertrule.AlertRule{ID: uuid.New(), WebhookURL: srv.URL, Threshold: 1, TimeWindow: time.Minute}
	hist := alerthistory.History{ID: uuid.New(), AlertRuleID: rule.ID, LogCount: 1}

	notifier.Dispatch(context.Background(), rule, hist)

	assert.Equal(t, "", history.notified[hist.ID])
}

type fakeAlertRuleRepo struct {
	enabled []alertrule.AlertRule
}

func (f *fakeAlertRuleRepo) GetByID(context.Context, uuid.UUID) (alertrule.AlertRule, error) {
	return alertrule.AlertRule{}, nil
}
func (f *fakeAlertRuleRepo) Enabled(context.Context) ([]alertrule.AlertRule, error) { return f.enabled, nil }
func (f *fakeAlertRuleRepo) ByOrganization(context.Context, uuid.UUID) ([]alertrule.AlertRule, error) {
	return f.enabled, nil
}
func (f *fakeAlertRuleRepo) Create(context.Context, alertrule.AlertRule) error { return nil }
func (f *fakeAlertRuleRepo) Update(context.Context, alertrule.AlertRule) error { return nil }
func (f *fakeAlertRuleRepo) Delete(context.Context, uuid.UUID) error           { return nil }

type fakeLogRepo struct {
	count int64
}

func (f *fakeLogRepo) InsertBatch(context.Context, []logentry.Log) ([]logentry.Log, error) { return nil, nil }
func (f *fakeLogRepo) Search(context.Context, logentry.FindParams) ([]logentry.Log, error) { return nil, nil }
func (f *fakeLogRepo) Count(context.Context, logentry.FindParams) (int64, error)           { return f.count, nil }
func (f *fakeLogRepo) Context(context.Context, uuid.UUID, time.Time, int, int) ([]logentry.Log, []logentry.Log, error) {
	return nil, nil, nil
}
func (f *fakeLogRepo) ByTrace(context.Context, uuid.UUID, string) ([]logentry.Log, error) { return nil, nil }
func (f *fakeLogRepo) BucketCounts(context.Context, uuid.UUID, time.Time, time.Time, string) ([]logentry.BucketCount, error) {
	return nil, nil
}
func (f *fakeLogRepo) TopServices(context.Context, uuid.UUID, time.Time, time.Time, int) ([]logentry.NamedCount, error) {
	return nil, nil
}
func (f *fakeLogRepo) TopMessages(context.Context, uuid.UUID, time.Time, time.Time, int) ([]logentry.NamedCount, error) {
	return nil, nil
}
func (f *fakeLogRepo) DistinctServices(context.Context, uuid.UUID) ([]string, error) { return nil, nil }

type fakeProjectRepo struct{}

func (fakeProjectRepo) GetByID(context.Context, uuid.UUID) (project.Project, error) { return nil, nil }
func (fakeProjectRepo) GetPaginated(context.Context, *project.FindParams) ([]project.Project, error) {
	return nil, nil
}
func (fakeProjectRepo) Count(context.Context, *project.FindParams) (int64, error) { return 0, nil }
func (fakeProjectRepo) Create(context.Context, project.Project) error             { return nil }
func (fakeProjectRepo) Delete(context.Context, uuid.UUID) error                   { return nil }

func TestEvaluatorSkipsWhenBelowThreshold(t *testing.T) {
	ruleID := uuid.New()
	projID := uuid.New()
	rules := &fakeAlertRuleRepo{enabled: []alertrule.AlertRule{
		{ID: ruleID, ProjectID: &projID, Threshold: 100, TimeWindow: time.Minute},
	}}
	history := newFakeHistoryRepo()
	logs := &fakeLogRepo{count: 1}
	notifier := alerts.NewNotifier(&fakeNotificationRepo{}, &fakeOrgRepo{}, history, config.SMTPConfig{}, nil)

	ev := alerts.NewEvaluator(rules, history, logs, fakeProjectRepo{}, notifier, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = ev.Start(ctx)

	assert.Empty(t, history.created)
}
