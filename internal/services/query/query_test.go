package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/logtide/internal/domain/logentry"
	"github.com/iota-uz/logtide/internal/infrastructure/cache"
	"github.com/iota-uz/logtide/internal/services/query"
)

type fakeLogRepo struct {
	searchCalls int
	rows        []logentry.Log
	total       int64
}

func (f *fakeLogRepo) InsertBatch(context.Context, []logentry.Log) ([]logentry.Log, error) { return nil, nil }
func (f *fakeLogRepo) Search(context.Context, logentry.FindParams) ([]logentry.Log, error) {
	f.searchCalls++
	return f.rows, nil
}
func (f *fakeLogRepo) Count(context.Context, logentry.FindParams) (int64, error) { return f.total, nil }
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

func newTestCache(t *testing.T) *cache.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewClient(context.Background(), mr.Addr())
	require.NoError(t, err)
	return c
}

func TestSearchCachesResult(t *testing.T) {
	projectID := uuid.New()
	repoFake := &fakeLogRepo{
		rows:  []logentry.Log{{ID: 1, ProjectID: projectID, Message: "hello"}},
		total: 1,
	}
	svc := query.New(repoFake, newTestCache(t))
	ctx := context.Background()
	req := query.SearchRequest{ProjectIDs: []uuid.UUID{projectID}, Limit: 10}

	page1, err := svc.Search(ctx, req)
	require.NoError(t, err)
	assert.Len(t, page1.Logs, 1)
	assert.Equal(t, int64(1), page1.Total)

	page2, err := svc.Search(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, page1, page2)
	assert.Equal(t, 1, repoFake.searchCalls, "second identical query should be served from cache")
}

func TestSearchComputesNextCursorWhenOverLimit(t *testing.T) {
	projectID := uuid.New()
	now := time.Now().UTC()
	repoFake := &fakeLogRepo{
		rows: []logentry.Log{
			{ID: 3, ProjectID: projectID, Time: now},
			{ID: 2, ProjectID: projectID, Time: now.Add(-time.Second)},
		},
		total: 2,
	}
	svc := query.New(repoFake, newTestCache(t))
	page, err := svc.Search(context.Background(), query.SearchRequest{ProjectIDs: []uuid.UUID{projectID}, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, page.Logs, 1)
	assert.NotEmpty(t, page.NextCursor)
}

func TestSearchIgnoresInvalidCursor(t *testing.T) {
	projectID := uuid.New()
	repoFake := &fakeLogRepo{rows: []logentry.Log{{ID: 1, ProjectID: projectID}}, total: 1}
	svc := query.New(repoFake, newTestCache(t))

	page, err := svc.Search(context.Background(), query.SearchRequest{
		ProjectIDs: []uuid.UUID{projectID},
		Cursor:     "not-a-valid-cursor",
		Limit:      10,
	})
	require.NoError(t, err)
	assert.Len(t, page.Logs, 1)
}
