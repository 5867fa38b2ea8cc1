package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/logtide/internal/domain/span"
	"github.com/iota-uz/logtide/pkg/composables"
	"github.com/iota-uz/logtide/pkg/repo"
)

var ErrTraceNotFound = errors.New("trace not found")

type PgSpanRepository struct{}

func NewSpanRepository() span.Repository {
	return &PgSpanRepository{}
}

// InsertSpans writes every span row in one multi-row INSERT, part of the
// same batch transaction as the trace aggregate upsert.
func (r *PgSpanRepository) InsertSpans(ctx context.Context, rows []span.Span) error {
	if len(rows) == 0 {
		return nil
	}
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}

	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		attrs, err := json.Marshal(row.Attributes)
		if err != nil {
			return fmt.Errorf("span: marshal attributes: %w", err)
		}
		events, err := json.Marshal(row.Events)
		if err != nil {
			return fmt.Errorf("span: marshal events: %w", err)
		}
		links, err := json.Marshal(row.Links)
		if err != nil {
			return fmt.Errorf("span: marshal links: %w", err)
		}
		resourceAttrs, err := json.Marshal(row.ResourceAttributes)
		if err != nil {
			return fmt.Errorf("span: marshal resource attributes: %w", err)
		}
		values[i] = []interface{}{
			row.Time, row.ProjectID, row.OrganizationID, row.TraceID, row.SpanID, row.ParentSpanID,
			row.ServiceName, row.OperationName, row.StartTime, row.EndTime, row.DurationMs,
			string(row.Kind), string(row.StatusCode), row.StatusMessage,
			attrs, events, links, resourceAttrs,
		}
	}

	base := `INSERT INTO spans (
		time, project_id, organization_id, trace_id, span_id, parent_span_id,
		service_name, operation_name, start_time, end_time, duration_ms,
		kind, status_code, status_message,
		attributes, events, links, resource_attributes
	) VALUES`
	query, args := repo.BatchInsertQueryN(base, values)
	query += " ON CONFLICT (project_id, trace_id, span_id) DO NOTHING"

	_, err = q.Exec(ctx, query, args...)
	return err
}

// UpsertTraces writes the per-batch trace aggregates, merging with any
// existing row for the same (project_id, trace_id): span_count
// accumulates, error is OR'd, start/end widen to the min/max seen across
// every batch that has touched this trace, and duration is recomputed from
// the widened start/end.
func (r *PgSpanRepository) UpsertTraces(ctx context.Context, rows []span.Trace) error {
	if len(rows) == 0 {
		return nil
	}
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return err
	}
	for _, t := range rows {
		_, err := q.Exec(ctx, `
			INSERT INTO traces (
				project_id, trace_id, service_name, root_service_name, root_operation_name,
				start_time, end_time, duration_ms, span_count, error
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (project_id, trace_id) DO UPDATE SET
				start_time = LEAST(traces.start_time, EXCLUDED.start_time),
				end_time = GREATEST(traces.end_time, EXCLUDED.end_time),
				duration_ms = EXTRACT(EPOCH FROM (GREATEST(traces.end_time, EXCLUDED.end_time) - LEAST(traces.start_time, EXCLUDED.start_time))) * 1000,
				span_count = traces.span_count + EXCLUDED.span_count,
				error = traces.error OR EXCLUDED.error,
				root_service_name = CASE WHEN EXCLUDED.root_service_name <> '' THEN EXCLUDED.root_service_name ELSE traces.root_service_name END,
				root_operation_name = CASE WHEN EXCLUDED.root_operation_name <> '' THEN EXCLUDED.root_operation_name ELSE traces.root_operation_name END
		`, t.ProjectID, t.TraceID, t.ServiceName, t.RootServiceName, t.RootOperationName,
			t.StartTime, t.EndTime, t.DurationMs, t.SpanCount, t.Error)
		if err != nil {
			return fmt.Errorf("span: upsert trace %s: %w", t.TraceID, err)
		}
	}
	return nil
}

const traceColumns = "project_id, trace_id, service_name, root_service_name, root_operation_name, start_time, end_time, duration_ms, span_count, error"

func (r *PgSpanRepository) GetTrace(ctx context.Context, projectID uuid.UUID, traceID string) (span.Trace, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return span.Trace{}, err
	}
	var t span.Trace
	err = q.QueryRow(ctx, "SELECT "+traceColumns+" FROM traces WHERE project_id = $1 AND trace_id = $2", projectID, traceID).
		Scan(&t.ProjectID, &t.TraceID, &t.ServiceName, &t.RootServiceName, &t.RootOperationName,
			&t.StartTime, &t.EndTime, &t.DurationMs, &t.SpanCount, &t.Error)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return span.Trace{}, ErrTraceNotFound
		}
		return span.Trace{}, err
	}
	return t, nil
}

func (r *PgSpanRepository) SpansForTrace(ctx context.Context, projectID uuid.UUID, traceID string) ([]span.Span, error) {
	q, err := composables.UseQuerier(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `
		SELECT time, project_id, organization_id, trace_id, span_id, parent_span_id,
			service_name, operation_name, start_time, end_time, duration_ms,
			kind, status_code, status_message, attributes, events, links, resource_attributes
		FROM spans
		WHERE project_id = $1 AND trace_id = $2
		ORDER BY start_time ASC
	`, projectID, traceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []span.Span
	for rows.Next() {
		var (
			s                                         span.Span
			kind, statusCode                          string
			attrsRaw, eventsRaw, linksRaw, resAttrsRaw []byte
		)
		if err := rows.Scan(&s.Time, &s.ProjectID, &s.OrganizationID, &s.TraceID, &s.SpanID, &s.ParentSpanID,
			&s.ServiceName, &s.OperationName, &s.StartTime, &s.EndTime, &s.DurationMs,
			&kind, &statusCode, &s.StatusMessage, &attrsRaw, &eventsRaw, &linksRaw, &resAttrsRaw); err != nil {
			return nil, err
		}
		s.Kind = span.Kind(kind)
		s.StatusCode = span.StatusCode(statusCode)
		if len(attrsRaw) > 0 {
			if err := json.Unmarshal(attrsRaw, &s.Attributes); err != nil {
				return nil, err
			}
		}
		if len(eventsRaw) > 0 {
			if err := json.Unmarshal(eventsRaw, &s.Events); err != nil {
				return nil, err
			}
		}
		if len(linksRaw) > 0 {
			if err := json.Unmarshal(linksRaw, &s.Links); err != nil {
				return nil, err
			}
		}
		if len(resAttrsRaw) > 0 {
			if err := json.Unmarshal(resAttrsRaw, &s.ResourceAttributes); err != nil {
				return nil, err
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
