// Package query implements the log search, context, by-trace, and
// aggregation read paths, cached behind pkg/repo's stable,
// ordering-independent cache keys.
package query

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/logtide/internal/domain/logentry"
	"github.com/iota-uz/logtide/internal/infrastructure/cache"
	"github.com/iota-uz/logtide/pkg/repo"
)

// searchTTL/statsTTL/traceTTL are the cache lifetimes for each shape of
// query; by-trace results are cached longer because a committed trace's
// logs never change once ingested.
const (
	searchTTL = 15 * time.Second
	statsTTL  = 30 * time.Second
	traceTTL  = 5 * time.Minute
)

type Service struct {
	logs  logentry.Repository
	cache *cache.Client
}

func New(logs logentry.Repository, cacheClient *cache.Client) *Service {
	return &Service{logs: logs, cache: cacheClient}
}

// SearchRequest is the inbound shape for Search, pre-validation; Limit<=0
// and the cursor token are resolved here before hitting the repository.
type SearchRequest struct {
	ProjectIDs []uuid.UUID
	Services   []string
	Levels     []logentry.Level
	TraceID    string
	From, To   *time.Time
	Query      string
	Cursor     string
	Limit      int
	Offset     int
}

func (r SearchRequest) cacheParams() map[string]any {
	return map[string]any{
		"projectIds": r.ProjectIDs,
		"services":   r.Services,
		"levels":     r.Levels,
		"traceId":    r.TraceID,
		"from":       r.From,
		"to":         r.To,
		"query":      r.Query,
		"cursor":     r.Cursor,
		"limit":      r.Limit,
		"offset":     r.Offset,
	}
}

// Search runs the cursor-paginated logs query, fetching limit+1 rows to
// compute NextCursor without a second round trip.
func (s *Service) Search(ctx context.Context, req SearchRequest) (logentry.Page, error) {
	cacheKey := repo.StableCacheKey("query", req.cacheParams())
	var cached logentry.Page
	if hit, err := s.cache.GetJSON(ctx, cache.QueryKey(cacheKey), &cached); err == nil && hit {
		return cached, nil
	}

	params := logentry.FindParams{
		ProjectIDs: req.ProjectIDs,
		Services:   req.Services,
		Levels:     req.Levels,
		TraceID:    req.TraceID,
		From:       req.From,
		To:         req.To,
		Query:      req.Query,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}
	if params.Limit <= 0 {
		params.Limit = 100
	}
	// An invalid or empty cursor is a soft fallback to the first
	// page, never an error.
	if cur, ok := repo.DecodeCursor(req.Cursor); ok {
		params.CursorTime, params.CursorID = &cur.Time, &cur.ID
	}

	rows, err := s.logs.Search(ctx, params)
	if err != nil {
		return logentry.Page{}, err
	}

	page := logentry.Page{Limit: params.Limit, Offset: params.Offset}
	if len(rows) > params.Limit {
		last := rows[params.Limit-1]
		page.NextCursor = repo.EncodeCursor(last.Time, last.ID)
		rows = rows[:params.Limit]
	}
	page.Logs = rows

	total, err := s.logs.Count(ctx, params)
	if err != nil {
		return logentry.Page{}, err
	}
	page.Total = total

	_ = s.cache.SetJSON(ctx, cache.QueryKey(cacheKey), page, searchTTL)
	return page, nil
}

// Context returns the logs surrounding a pivot timestamp, merged into one
// chronological slice.
func (s *Service) Context(ctx context.Context, projectID uuid.UUID, at time.Time, before, after int) ([]logentry.Log, error) {
	earlier, later, err := s.logs.Context(ctx, projectID, at, before, after)
	if err != nil {
		return nil, err
	}
	out := make([]logentry.Log, 0, len(earlier)+len(later))
	for i := len(earlier) - 1; i >= 0; i-- {
		out = append(out, earlier[i])
	}
	out = append(out, later...)
	return out, nil
}

// ByTrace returns every log correlated to traceID, cached longer since a
// committed trace's logs are immutable.
func (s *Service) ByTrace(ctx context.Context, projectID uuid.UUID, traceID string) ([]logentry.Log, error) {
	key := cache.QueryKey(repo.StableCacheKey("trace", map[string]any{"projectId": projectID, "traceId": traceID}))
	var cached []logentry.Log
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	rows, err := s.logs.ByTrace(ctx, projectID, traceID)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetJSON(ctx, key, rows, traceTTL)
	return rows, nil
}

// BucketCounts returns the time-bucketed level counts backing the logs
// histogram view.
func (s *Service) BucketCounts(ctx context.Context, projectID uuid.UUID, from, to time.Time, bucket string) ([]logentry.BucketCount, error) {
	key := cache.QueryKey(repo.StableCacheKey("buckets", map[string]any{
		"projectId": projectID, "from": from, "to": to, "bucket": bucket,
	}))
	var cached []logentry.BucketCount
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	rows, err := s.logs.BucketCounts(ctx, projectID, from, to, bucket)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetJSON(ctx, key, rows, statsTTL)
	return rows, nil
}

// TopServices/TopMessages back the top-N aggregation endpoints.
func (s *Service) TopServices(ctx context.Context, projectID uuid.UUID, from, to time.Time, n int) ([]logentry.NamedCount, error) {
	return s.topCached(ctx, "topServices", projectID, from, to, n, s.logs.TopServices)
}

func (s *Service) TopMessages(ctx context.Context, projectID uuid.UUID, from, to time.Time, n int) ([]logentry.NamedCount, error) {
	return s.topCached(ctx, "topMessages", projectID, from, to, n, s.logs.TopMessages)
}

func (s *Service) topCached(
	ctx context.Context,
	prefix string,
	projectID uuid.UUID,
	from, to time.Time,
	n int,
	fetch func(context.Context, uuid.UUID, time.Time, time.Time, int) ([]logentry.NamedCount, error),
) ([]logentry.NamedCount, error) {
	key := cache.QueryKey(repo.StableCacheKey(prefix, map[string]any{
		"projectId": projectID, "from": from, "to": to, "n": n,
	}))
	var cached []logentry.NamedCount
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	rows, err := fetch(ctx, projectID, from, to, n)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetJSON(ctx, key, rows, statsTTL)
	return rows, nil
}

// DistinctServices feeds the filter-dropdown, cached at the same interval
// as other stats.
func (s *Service) DistinctServices(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	key := cache.QueryKey(repo.StableCacheKey("distinctServices", map[string]any{"projectId": projectID}))
	var cached []string
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	rows, err := s.logs.DistinctServices(ctx, projectID)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetJSON(ctx, key, rows, statsTTL)
	return rows, nil
}
