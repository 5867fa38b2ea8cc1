package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/logtide/internal/domain/alertrule"
	"github.com/iota-uz/logtide/internal/domain/logentry"
	"github.com/iota-uz/logtide/internal/domain/notification"
)

type alertRuleView struct {
	ID              uuid.UUID  `json:"id"`
	OrganizationID  uuid.UUID  `json:"organizationId"`
	ProjectID       *uuid.UUID `json:"projectId,omitempty"`
	Service         string     `json:"service,omitempty"`
	Levels          []string   `json:"levels,omitempty"`
	TimeWindowSecs  float64    `json:"timeWindowSeconds"`
	Threshold       int        `json:"threshold"`
	Enabled         bool       `json:"enabled"`
	EmailRecipients []string   `json:"emailRecipients,omitempty"`
	WebhookURL      string     `json:"webhookUrl,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func toAlertRuleView(rule alertrule.AlertRule) alertRuleView {
	levels := make([]string, 0, len(rule.Levels))
	for _, l := range rule.Levels {
		levels = append(levels, string(l))
	}
	return alertRuleView{
		ID:              rule.ID,
		OrganizationID:  rule.OrganizationID,
		ProjectID:       rule.ProjectID,
		Service:         rule.Service,
		Levels:          levels,
		TimeWindowSecs:  rule.TimeWindow.Seconds(),
		Threshold:       rule.Threshold,
		Enabled:         rule.Enabled,
		EmailRecipients: rule.EmailRecipients,
		WebhookURL:      rule.WebhookURL,
		CreatedAt:       rule.CreatedAt,
	}
}

// HandleListAlertRules lists the caller's organization's alert rules.
func (a *App) HandleListAlertRules(w http.ResponseWriter, r *http.Request) {
	organizationID, err := uuid.Parse(r.URL.Query().Get("organizationId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "organizationId is required")
		return
	}
	if _, ok := a.requireOrgMember(organizationID, w, r); !ok {
		return
	}
	rules, err := a.AlertRules.ByOrganization(r.Context(), organizationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list alert rules")
		return
	}
	views := make([]alertRuleView, 0, len(rules))
	for _, rule := range rules {
		views = append(views, toAlertRuleView(rule))
	}
	writeJSON(w, http.StatusOK, map[string]any{"alertRules": views})
}

type alertRuleRequest struct {
	OrganizationID  uuid.UUID  `json:"organizationId"`
	ProjectID       *uuid.UUID `json:"projectId,omitempty"`
	Service         string     `json:"service,omitempty"`
	Levels          []string   `json:"levels,omitempty"`
	TimeWindowSecs  float64    `json:"timeWindowSeconds"`
	Threshold       int        `json:"threshold"`
	Enabled         bool       `json:"enabled"`
	EmailRecipients []string   `json:"emailRecipients,omitempty"`
	WebhookURL      string     `json:"webhookUrl,omitempty"`
}

func (req alertRuleRequest) toRule(id uuid.UUID, createdAt time.Time) alertrule.AlertRule {
	levels := make([]logentry.Level, 0, len(req.Levels))
	for _, l := range req.Levels {
		levels = append(levels, logentry.Level(l))
	}
	return alertrule.AlertRule{
		ID:              id,
		OrganizationID:  req.OrganizationID,
		ProjectID:       req.ProjectID,
		Service:         req.Service,
		Levels:          levels,
		TimeWindow:      time.Duration(req.TimeWindowSecs * float64(time.Second)),
		Threshold:       req.Threshold,
		Enabled:         req.Enabled,
		EmailRecipients: req.EmailRecipients,
		WebhookURL:      req.WebhookURL,
		CreatedAt:       createdAt,
	}
}

// HandleCreateAlertRule creates a threshold alert rule scoped to an
// organization the caller is a member of.
func (a *App) HandleCreateAlertRule(w http.ResponseWriter, r *http.Request) {
	var req alertRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Threshold <= 0 || req.TimeWindowSecs <= 0 {
		writeError(w, http.StatusBadRequest, "threshold and timeWindowSeconds must be positive")
		return
	}
	if _, ok := a.requireOrgMember(req.OrganizationID, w, r); !ok {
		return
	}
	rule := req.toRule(uuid.New(), time.Now())
	if err := a.AlertRules.Create(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create alert rule")
		return
	}
	writeJSON(w, http.StatusCreated, toAlertRuleView(rule))
}

// HandleUpdateAlertRule replaces an existing alert rule's fields.
func (a *App) HandleUpdateAlertRule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert rule id")
		return
	}
	existing, err := a.AlertRules.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "alert rule not found")
		return
	}
	if _, ok := a.requireOrgMember(existing.OrganizationID, w, r); !ok {
		return
	}
	var req alertRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.OrganizationID = existing.OrganizationID
	rule := req.toRule(id, existing.CreatedAt)
	if err := a.AlertRules.Update(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update alert rule")
		return
	}
	writeJSON(w, http.StatusOK, toAlertRuleView(rule))
}

// HandleDeleteAlertRule deletes an alert rule by id.
func (a *App) HandleDeleteAlertRule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert rule id")
		return
	}
	existing, err := a.AlertRules.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "alert rule not found")
		return
	}
	if _, ok := a.requireOrgMember(existing.OrganizationID, w, r); !ok {
		return
	}
	if err := a.AlertRules.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete alert rule")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type notificationView struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

func toNotificationView(n notification.Notification) notificationView {
	return notificationView{ID: n.ID, Title: n.Title, Body: n.Body, Read: n.Read, CreatedAt: n.CreatedAt}
}

// HandleListNotifications lists the caller's in-app notifications,
// newest-first, paginated with limit/offset query params.
func (a *App) HandleListNotifications(w http.ResponseWriter, r *http.Request) {
	a.requireSession(func(w http.ResponseWriter, r *http.Request, u ctxUser) {
		limit := 50
		if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
			limit = v
		}
		offset := 0
		if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
			offset = v
		}
		notifications, err := a.Notifications.ListByUser(r.Context(), u.id, limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list notifications")
			return
		}
		unread, _ := a.Notifications.UnreadCount(r.Context(), u.id)
		views := make([]notificationView, 0, len(notifications))
		for _, n := range notifications {
			views = append(views, toNotificationView(n))
		}
		writeJSON(w, http.StatusOK, map[string]any{"notifications": views, "unreadCount": unread})
	})(w, r)
}

// HandleMarkNotificationRead marks a single notification as read.
func (a *App) HandleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}
	if _, ok := a.sessionAuth(w, r); !ok {
		return
	}
	if err := a.Notifications.MarkRead(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark notification read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}
