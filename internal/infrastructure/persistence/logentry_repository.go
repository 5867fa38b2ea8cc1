package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/logtide/internal/domain/logentry"
	"github.com/iota-uz/logtide/pkg/composables"
	"github.com/iota-uz/logtide/pkg/repo"
)

type PgLogRepository struct{}

func NewLogRepository() logentry.Repository {
	return &PgLogRepository{}
}

const logColumns = "id, time, project_id, service, level, message, metadata, trace_id, span_id"

func scanLog(row pgx.Row) (logentry.Log, error) {
	var (
		l            logentry.Log
		metadataRaw  []byte
	)
	if err := row.Scan(&l.ID, &l.Time, &l.ProjectID, &l.Service, &l.Level, &l.Message, &metadataRaw, &l.TraceID, &l.SpanID); err != nil {
		return logentry.Log{}, err
	}
	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &l.Metadata); err != nil {
			return logentry.Log{}, err
		}
	}
	return l, nil
}

// InsertBatch writes every row in a single multi-row INSERT so the batch
// commits atomically in one statement against whatever
// transaction the caller attached to ctx.
func (r *PgLogRepository) InsertBatch(ctx context.Context, rows []logentry.Log) ([]logentry.Log, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}

	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		metadataRaw, err := json.Marshal(row.Metadata)
		if err != nil {
			return nil, fmt.Errorf("logentry: marshal metadata: %w", err)
		}
		values[i] = []interface{}{row.Time, row.ProjectID, row.Service, row.Level, row.Message, metadataRaw, row.TraceID, row.SpanID}
	}

	base := "INSERT INTO logs (time, project_id, service, level, message, metadata, trace_id, span_id) VALUES"
	query, args := repo.BatchInsertQueryN(base, values)
	query += " RETURNING " + logColumns

	pgRows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("logentry: insert batch: %w", err)
	}
	defer pgRows.Close()

	out := make([]logentry.Log, 0, len(rows))
	for pgRows.Next() {
		l, err := scanLog(pgRows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, pgRows.Err()
}

// buildFindFilter renders the shared WHERE clause for Search/Count:
// IN when multi-valued, = when single, equality on traceId, inclusive time
// range, and the store's full-text operator against message.
func buildFindFilter(params logentry.FindParams, startArg int) (string, []any) {
	where := []string{"project_id = ANY($1)"}
	args := []any{params.ProjectIDs}
	n := startArg

	if len(params.Services) == 1 {
		n++
		args = append(args, params.Services[0])
		where = append(where, fmt.Sprintf("service = $%d", n))
	} else if len(params.Services) > 1 {
		n++
		args = append(args, params.Services)
		where = append(where, fmt.Sprintf("service = ANY($%d)", n))
	}

	if len(params.Levels) == 1 {
		n++
		args = append(args, params.Levels[0])
		where = append(where, fmt.Sprintf("level = $%d", n))
	} else if len(params.Levels) > 1 {
		n++
		args = append(args, params.Levels)
		where = append(where, fmt.Sprintf("level = ANY($%d)", n))
	}

	if params.TraceID != "" {
		n++
		args = append(args, params.TraceID)
		where = append(where, fmt.Sprintf("trace_id = $%d", n))
	}

	if params.From != nil {
		n++
		args = append(args, *params.From)
		where = append(where, fmt.Sprintf("time >= $%d", n))
	}
	if params.To != nil {
		n++
		args = append(args, *params.To)
		where = append(where, fmt.Sprintf("time <= $%d", n))
	}

	if params.Query != "" {
		n++
		args = append(args, params.Query)
		where = append(where, fmt.Sprintf("to_tsvector('english', message) @@ plainto_tsquery('english', $%d)", n))
	}

	if params.CursorTime != nil && params.CursorID != nil {
		n++
		args = append(args, *params.CursorTime)
		timeArg := n
		n++
		args = append(args, *params.CursorID)
		idArg := n
		where = append(where, fmt.Sprintf("(time < $%d OR (time = $%d AND id < $%d))", timeArg, timeArg, idArg))
	}

	return strings.Join(where, " AND "), args
}

// Search implements the cursor/offset paginated logs query:
// ordering is always (time DESC, id DESC) so pagination is deterministic,
// and callers fetch limit+1 rows to decide nextCursor.
func (r *PgLogRepository) Search(ctx context.Context, params logentry.FindParams) ([]logentry.Log, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	where, args := buildFindFilter(params, 1)

	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
		SELECT %s FROM logs
		WHERE %s
		ORDER BY time DESC, id DESC
		LIMIT %d OFFSET %d
	`, logColumns, where, limit+1, params.Offset)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []logentry.Log
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Count computes the total matching the same filter set, without ordering
// or limit.
func (r *PgLogRepository) Count(ctx context.Context, params logentry.FindParams) (int64, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return 0, err
	}
	// Count ignores the cursor filter: it reports the total page-agnostic
	// match count for the filter set, matching the UI's "N results" label.
	countParams := params
	countParams.CursorTime, countParams.CursorID = nil, nil
	where, args := buildFindFilter(countParams, 1)

	var count int64
	err = q.QueryRow(ctx, "SELECT count(*) FROM logs WHERE "+where, args...).Scan(&count)
	return count, err
}

// Context returns the rows surrounding a pivot timestamp : before-DESC and after-ASC, left for the service layer to
// re-order chronologically.
func (r *PgLogRepository) Context(ctx context.Context, projectID uuid.UUID, at time.Time, before, after int) ([]logentry.Log, []logentry.Log, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, nil, err
	}

	earlier, err := r.queryOrdered(ctx, q, `
		SELECT `+logColumns+` FROM logs
		WHERE project_id = $1 AND time < $2
		ORDER BY time DESC, id DESC
		LIMIT $3
	`, projectID, at, before)
	if err != nil {
		return nil, nil, err
	}

	later, err := r.queryOrdered(ctx, q, `
		SELECT `+logColumns+` FROM logs
		WHERE project_id = $1 AND time > $2
		ORDER BY time ASC, id ASC
		LIMIT $3
	`, projectID, at, after)
	if err != nil {
		return nil, nil, err
	}

	return earlier, later, nil
}

// ByTrace returns every log for (projectID, traceID) ordered time ASC.
func (r *PgLogRepository) ByTrace(ctx context.Context, projectID uuid.UUID, traceID string) ([]logentry.Log, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	return r.queryOrdered(ctx, q, `
		SELECT `+logColumns+` FROM logs
		WHERE project_id = $1 AND trace_id = $2
		ORDER BY time ASC, id ASC
	`, projectID, traceID)
}

func (r *PgLogRepository) queryOrdered(ctx context.Context, q composables.Querier, query string, args ...any) ([]logentry.Log, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []logentry.Log
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// bucketInterval maps the allowed aggregation interval names to the
// Postgres time_bucket argument the time-series extension expects.
func bucketInterval(bucket string) string {
	switch bucket {
	case "1m", "5m", "1h", "1d":
		return bucket
	default:
		return "1h"
	}
}

func (r *PgLogRepository) BucketCounts(ctx context.Context, projectID uuid.UUID, from, to time.Time, bucket string) ([]logentry.BucketCount, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `
		SELECT time_bucket($1::interval, time) AS bucket, level, count(*)
		FROM logs
		WHERE project_id = $2 AND time >= $3 AND time <= $4
		GROUP BY bucket, level
		ORDER BY bucket
	`, bucketInterval(bucket), projectID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []logentry.BucketCount
	for rows.Next() {
		var bc logentry.BucketCount
		if err := rows.Scan(&bc.Bucket, &bc.Level, &bc.Count); err != nil {
			return nil, err
		}
		out = append(out, bc)
	}
	return out, rows.Err()
}

func (r *PgLogRepository) TopServices(ctx context.Context, projectID uuid.UUID, from, to time.Time, n int) ([]logentry.NamedCount, error) {
	return r.topBy(ctx, "service", projectID, from, to, n)
}

func (r *PgLogRepository) TopMessages(ctx context.Context, projectID uuid.UUID, from, to time.Time, n int) ([]logentry.NamedCount, error) {
	return r.topBy(ctx, "message", projectID, from, to, n)
}

func (r *PgLogRepository) topBy(ctx context.Context, column string, projectID uuid.UUID, from, to time.Time, n int) ([]logentry.NamedCount, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT %s, count(*) FROM logs
		WHERE project_id = $1 AND time >= $2 AND time <= $3
		GROUP BY %s
		ORDER BY count(*) DESC
		LIMIT $4
	`, column, column)
	rows, err := q.Query(ctx, query, projectID, from, to, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []logentry.NamedCount
	for rows.Next() {
		var nc logentry.NamedCount
		if err := rows.Scan(&nc.Name, &nc.Count); err != nil {
			return nil, err
		}
		out = append(out, nc)
	}
	return out, rows.Err()
}

func (r *PgLogRepository) DistinctServices(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, "SELECT DISTINCT service FROM logs WHERE project_id = $1 ORDER BY service", projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
