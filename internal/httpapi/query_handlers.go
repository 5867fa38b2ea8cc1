package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/logtide/internal/domain/logentry"
	"github.com/iota-uz/logtide/internal/services/query"
)

func parseUUIDList(csv string) []uuid.UUID {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		if id, err := uuid.Parse(strings.TrimSpace(p)); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func parseStringList(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLevelList(csv string) []logentry.Level {
	strs := parseStringList(csv)
	out := make([]logentry.Level, 0, len(strs))
	for _, s := range strs {
		out = append(out, logentry.Level(s))
	}
	return out
}

func parseTimeParam(v string) *time.Time {
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil
	}
	return &t
}

// HandleLogsSearch implements the filtered, cursor-paginated logs search.
func (a *App) HandleLogsSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	projectIDs := parseUUIDList(q.Get("projectIds"))
	if len(projectIDs) == 0 {
		writeError(w, http.StatusBadRequest, "projectIds is required")
		return
	}
	if _, ok := a.requireProjectsMember(projectIDs, w, r); !ok {
		return
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	req := query.SearchRequest{
		ProjectIDs: projectIDs,
		Services:   parseStringList(q.Get("services")),
		Levels:     parseLevelList(q.Get("levels")),
		TraceID:    q.Get("traceId"),
		From:       parseTimeParam(q.Get("from")),
		To:         parseTimeParam(q.Get("to")),
		Query:      q.Get("q"),
		Cursor:     q.Get("cursor"),
		Limit:      limit,
		Offset:     offset,
	}

	start := time.Now()
	page, err := a.Query.Search(r.Context(), req)
	if a.Metrics != nil {
		a.Metrics.QueryDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "logs search failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleLogsContext implements the "logs around a pivot" read path.
func (a *App) HandleLogsContext(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	projectID, err := uuid.Parse(q.Get("projectId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "projectId is required")
		return
	}
	if _, ok := a.requireProjectMember(projectID, w, r); !ok {
		return
	}
	at := parseTimeParam(q.Get("time"))
	if at == nil {
		writeError(w, http.StatusBadRequest, "time is required")
		return
	}
	before, after := 10, 10
	if v, err := strconv.Atoi(q.Get("before")); err == nil {
		before = v
	}
	if v, err := strconv.Atoi(q.Get("after")); err == nil {
		after = v
	}

	logs, err := a.Query.Context(r.Context(), projectID, *at, before, after)
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "logs context failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

// HandleLogsByTrace implements the by-trace read path.
func (a *App) HandleLogsByTrace(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	projectID, err := uuid.Parse(q.Get("projectId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "projectId is required")
		return
	}
	if _, ok := a.requireProjectMember(projectID, w, r); !ok {
		return
	}
	traceID := q.Get("traceId")
	if traceID == "" {
		writeError(w, http.StatusBadRequest, "traceId is required")
		return
	}

	logs, err := a.Query.ByTrace(r.Context(), projectID, traceID)
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "by-trace query failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

// HandleLogsStats implements the time-bucketed level-count aggregation
// endpoint.
func (a *App) HandleLogsStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	projectID, err := uuid.Parse(q.Get("projectId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "projectId is required")
		return
	}
	if _, ok := a.requireProjectMember(projectID, w, r); !ok {
		return
	}
	from := parseTimeParam(q.Get("from"))
	to := parseTimeParam(q.Get("to"))
	if from == nil || to == nil {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}
	bucket := q.Get("bucket")
	if bucket == "" {
		bucket = "1h"
	}

	buckets, err := a.Query.BucketCounts(r.Context(), projectID, *from, *to, bucket)
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "stats query failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"buckets": buckets})
}

// HandleLogsTopServices/HandleLogsTopMessages back the top-N aggregation
// endpoints.
func (a *App) HandleLogsTopServices(w http.ResponseWriter, r *http.Request) {
	a.handleTopN(w, r, "services", a.Query.TopServices)
}

func (a *App) HandleLogsTopMessages(w http.ResponseWriter, r *http.Request) {
	a.handleTopN(w, r, "messages", a.Query.TopMessages)
}

func (a *App) handleTopN(
	w http.ResponseWriter,
	r *http.Request,
	key string,
	fetch func(ctx context.Context, projectID uuid.UUID, from, to time.Time, n int) ([]logentry.NamedCount, error),
) {
	q := r.URL.Query()

	projectID, err := uuid.Parse(q.Get("projectId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "projectId is required")
		return
	}
	if _, ok := a.requireProjectMember(projectID, w, r); !ok {
		return
	}
	from := parseTimeParam(q.Get("from"))
	to := parseTimeParam(q.Get("to"))
	if from == nil || to == nil {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}
	n := 10
	if v, err := strconv.Atoi(q.Get("n")); err == nil && v > 0 {
		n = v
	}

	rows, err := fetch(r.Context(), projectID, *from, *to, n)
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "top-N query failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{key: rows})
}

// HandleLogsDistinctServices feeds the filter dropdown.
func (a *App) HandleLogsDistinctServices(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.URL.Query().Get("projectId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "projectId is required")
		return
	}
	if _, ok := a.requireProjectMember(projectID, w, r); !ok {
		return
	}
	services, err := a.Query.DistinctServices(r.Context(), projectID)
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "distinct services query failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}
