// Package logentry models the persisted Log row produced by the
// transformer (pkg/transform) from OTLP log records.
package logentry

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Level is the normalized severity band.
type Level string

const (
	LevelDebug    Level = "debug"
	LevelInfo     Level = "info"
	LevelWarn     Level = "warn"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// LevelFromSeverityNumber maps an OTLP severityNumber (1-24) to a Level
// band:
//
//	1..8    -> debug
//	9..12   -> info
//	13..16  -> warn
//	17..20  -> error
//	21..24  -> critical
//
// Values outside 1..24 default to info.
func LevelFromSeverityNumber(n int) Level {
	switch {
	case n >= 1 && n <= 8:
		return LevelDebug
	case n >= 9 && n <= 12:
		return LevelInfo
	case n >= 13 && n <= 16:
		return LevelWarn
	case n >= 17 && n <= 20:
		return LevelError
	case n >= 21 && n <= 24:
		return LevelCritical
	default:
		return LevelInfo
	}
}

// Log is one ingested log row.
type Log struct {
	ID        int64
	Time      time.Time
	ProjectID uuid.UUID
	Service   string
	Level     Level
	Message   string
	Metadata  map[string]any
	TraceID   string
	SpanID    string
}

// FindParams is the filter set for the query engine's logs search.
type FindParams struct {
	ProjectIDs []uuid.UUID
	Services   []string
	Levels     []Level
	TraceID    string
	From, To   *time.Time
	Query      string // full-text term, matched against Message

	// Cursor pagination (mutually usable alongside offset for callers that
	// prefer classic paging).
	CursorTime *time.Time
	CursorID   *int64
	Offset     int
	Limit      int
}

// Page is the result shape for a logs query.
type Page struct {
	Logs       []Log
	Total      int64
	Limit      int
	Offset     int
	NextCursor string
}

type Repository interface {
	// InsertBatch persists all rows in one statement/transaction; callers
	// (the ingestion pipeline) are responsible for wrapping this in the
	// single per-batch transaction.
	InsertBatch(ctx context.Context, rows []Log) ([]Log, error)

	Search(ctx context.Context, params FindParams) ([]Log, error)
	Count(ctx context.Context, params FindParams) (int64, error)

	// Context returns up to `before` logs strictly earlier and `after`
	// logs strictly later than at, both for projectID (the "Context
	// query" read path).
	Context(ctx context.Context, projectID uuid.UUID, at time.Time, before, after int) (earlier []Log, later []Log, err error)

	// ByTrace returns every log for (projectID, traceID) ordered time ASC.
	ByTrace(ctx context.Context, projectID uuid.UUID, traceID string) ([]Log, error)

	// BucketCounts returns time-bucketed {bucket, level, count} rows for
	// [from,to] at the given bucket interval.
	BucketCounts(ctx context.Context, projectID uuid.UUID, from, to time.Time, bucket string) ([]BucketCount, error)

	// TopServices / TopMessages back the top-N aggregation endpoints.
	TopServices(ctx context.Context, projectID uuid.UUID, from, to time.Time, n int) ([]NamedCount, error)
	TopMessages(ctx context.Context, projectID uuid.UUID, from, to time.Time, n int) ([]NamedCount, error)

	// DistinctServices feeds the filter-dropdown cache.
	DistinctServices(ctx context.Context, projectID uuid.UUID) ([]string, error)
}

// BucketCount is one (bucket, level) -> count aggregation row.
type BucketCount struct {
	Bucket time.Time
	Level  Level
	Count  int64
}

// NamedCount is a generic (name, count) aggregation row.
type NamedCount struct {
	Name  string
	Count int64
}
