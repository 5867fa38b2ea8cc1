// Package span models Span rows and the Trace aggregate materialized over
// them.
package span

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind is the OTLP span kind.
type Kind string

const (
	KindInternal Kind = "INTERNAL"
	KindServer   Kind = "SERVER"
	KindClient   Kind = "CLIENT"
	KindProducer Kind = "PRODUCER"
	KindConsumer Kind = "CONSUMER"
)

// StatusCode is the OTLP span status.
type StatusCode string

const (
	StatusUnset StatusCode = "UNSET"
	StatusOK    StatusCode = "OK"
	StatusError StatusCode = "ERROR"
)

// Span is one unit of work within a trace.
type Span struct {
	Time               time.Time
	ProjectID          uuid.UUID
	OrganizationID     uuid.UUID
	TraceID            string
	SpanID             string
	ParentSpanID       string
	ServiceName        string
	OperationName      string
	StartTime          time.Time
	EndTime            time.Time
	DurationMs         float64
	Kind               Kind
	StatusCode         StatusCode
	StatusMessage      string
	Attributes         map[string]any
	Events             []map[string]any
	Links              []map[string]any
	ResourceAttributes map[string]any
}

// Trace is the aggregate materialized per ingest batch and upserted,
// unique per (ProjectID, TraceID).
type Trace struct {
	ProjectID         uuid.UUID
	TraceID           string
	ServiceName       string
	RootServiceName   string
	RootOperationName string
	StartTime         time.Time
	EndTime           time.Time
	DurationMs        float64
	SpanCount         int
	Error             bool
}

type Repository interface {
	InsertSpans(ctx context.Context, rows []Span) error
	// UpsertTraces writes the aggregate rows computed over a batch,
	// merging with any existing row for the same (ProjectID, TraceID).
	UpsertTraces(ctx context.Context, rows []Trace) error

	GetTrace(ctx context.Context, projectID uuid.UUID, traceID string) (Trace, error)
	SpansForTrace(ctx context.Context, projectID uuid.UUID, traceID string) ([]Span, error)
}
