// Package ingestion implements the OTLP ingestion pipeline:
// API-key authentication, wire decoding, transformation into domain rows,
// a single persistence transaction, and the post-commit soft-fail
// live-tail publish and detection-job enqueue.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/logtide/internal/domain/apikey"
	"github.com/iota-uz/logtide/internal/domain/logentry"
	"github.com/iota-uz/logtide/internal/domain/span"
	"github.com/iota-uz/logtide/internal/infrastructure/queue"
	"github.com/iota-uz/logtide/pkg/composables"
	"github.com/iota-uz/logtide/pkg/otlp"
	"github.com/iota-uz/logtide/pkg/transform"
)

var (
	// ErrInvalidAPIKey is returned when the presented key doesn't match any
	// non-revoked key.
	ErrInvalidAPIKey = errors.New("ingestion: invalid or revoked api key")

	// ErrPersistFailed marks a batch whose transaction failed, so the HTTP
	// layer can answer with a server error instead of a client error.
	ErrPersistFailed = errors.New("ingestion: persist failed")
)

// Publisher is the live-tail fan-out port (pubsub.Bus satisfies this).
type Publisher interface {
	Publish(ctx context.Context, projectID uuid.UUID, event any) error
}

// TailEvent is the payload published to live-tail subscribers per ingested
// batch.
type TailEvent struct {
	Type string         `json:"type"`
	Logs []logentry.Log `json:"logs,omitempty"`
	Spans []span.Span   `json:"spans,omitempty"`
}

// DetectionJob is enqueued after a logs batch commits, for the detection
// worker to evaluate Sigma rules against.
type DetectionJob struct {
	ProjectID      uuid.UUID      `json:"projectId"`
	OrganizationID uuid.UUID      `json:"organizationId"`
	Logs           []logentry.Log `json:"logs"`
	EnqueuedAt     time.Time      `json:"enqueuedAt"`
}

// Result is the OTLP partial-success response shape.
type Result struct {
	AcceptedRows int
	RejectedRows int
	ErrorMessage string
}

type Service struct {
	pool       *pgxpool.Pool
	apiKeys    apikey.Repository
	logs       logentry.Repository
	spans      span.Repository
	publisher  Publisher
	detections *queue.Queue
	limits     otlp.Limits
	logger     *logrus.Entry
}

func New(
	pool *pgxpool.Pool,
	apiKeys apikey.Repository,
	logs logentry.Repository,
	spans span.Repository,
	publisher Publisher,
	detections *queue.Queue,
	limits otlp.Limits,
	logger *logrus.Entry,
) *Service {
	return &Service{
		pool:       pool,
		apiKeys:    apiKeys,
		logs:       logs,
		spans:      spans,
		publisher:  publisher,
		detections: detections,
		limits:     limits,
		logger:     logger,
	}
}

// Authenticate resolves a presented API key to its AuthContext, touching
// last-used-at best-effort.
func (s *Service) Authenticate(ctx context.Context, plaintext string) (apikey.AuthContext, error) {
	_, authCtx, err := s.apiKeys.GetByHash(ctx, apikey.Hash(plaintext))
	if err != nil {
		return apikey.AuthContext{}, ErrInvalidAPIKey
	}
	if err := s.apiKeys.TouchLastUsed(ctx, authCtx.ApiKeyID); err != nil && s.logger != nil {
		s.logger.WithError(err).WithField("api_key_id", authCtx.ApiKeyID).Warn("failed to touch api key last-used-at")
	}
	return authCtx, nil
}

// IngestLogs runs the full pipeline for a logs export
// request: decode, transform, persist in one transaction, then best-effort
// publish to live-tail and enqueue a detection job.
func (s *Service) IngestLogs(ctx context.Context, authCtx apikey.AuthContext, body any, contentType, contentEncoding string) (Result, error) {
	tree, err := otlp.DecodeLogsRequest(body, contentType, contentEncoding, s.limits)
	if err != nil {
		return Result{RejectedRows: 1, ErrorMessage: err.Error()}, nil
	}

	rows := transform.LogsFromOTLP(tree, authCtx.ProjectID)
	if len(rows) == 0 {
		return Result{}, nil
	}

	var inserted []logentry.Log
	txErr := s.withTx(ctx, func(txCtx context.Context) error {
		var err error
		inserted, err = s.logs.InsertBatch(txCtx, rows)
		return err
	})
	if txErr != nil {
		return Result{RejectedRows: len(rows), ErrorMessage: "failed to persist log records"},
			fmt.Errorf("ingestion: persist logs: %w", errors.Join(ErrPersistFailed, txErr))
	}

	result := Result{AcceptedRows: len(inserted)}

	s.publishSoftFail(ctx, authCtx.ProjectID, TailEvent{Type: "logs", Logs: inserted})
	s.enqueueDetectionSoftFail(ctx, authCtx, inserted)

	return result, nil
}

// IngestTraces runs the trace-signal counterpart of IngestLogs: decode,
// transform into Span rows plus Trace aggregates, persist both in one
// transaction, then best-effort publish.
func (s *Service) IngestTraces(ctx context.Context, authCtx apikey.AuthContext, body any, contentType, contentEncoding string) (Result, error) {
	tree, err := otlp.DecodeTraceRequest(body, contentType, contentEncoding, s.limits)
	if err != nil {
		return Result{RejectedRows: 1, ErrorMessage: err.Error()}, nil
	}

	rows, traces := transform.SpansFromOTLP(tree, authCtx.ProjectID, authCtx.OrganizationID)
	if len(rows) == 0 {
		return Result{}, nil
	}

	txErr := s.withTx(ctx, func(txCtx context.Context) error {
		if err := s.spans.InsertSpans(txCtx, rows); err != nil {
			return err
		}
		return s.spans.UpsertTraces(txCtx, traces)
	})
	if txErr != nil {
		return Result{RejectedRows: len(rows), ErrorMessage: "failed to persist spans"},
			fmt.Errorf("ingestion: persist spans: %w", errors.Join(ErrPersistFailed, txErr))
	}

	s.publishSoftFail(ctx, authCtx.ProjectID, TailEvent{Type: "spans", Spans: rows})

	return Result{AcceptedRows: len(rows)}, nil
}

// withTx runs fn inside a single pgx transaction, so each
// batch commits or rolls back as a unit.
func (s *Service) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ingestion: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	txCtx := composables.WithTx(composables.WithPool(ctx, s.pool), tx)
	if err := fn(txCtx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// publishSoftFail publishes a live-tail event, logging on failure rather
// than propagating it: the ingested batch already committed and must not
// be rejected on the caller's behalf because of a broker hiccup.
func (s *Service) publishSoftFail(ctx context.Context, projectID uuid.UUID, event TailEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, projectID, event); err != nil && s.logger != nil {
		s.logger.WithError(err).WithField("project_id", projectID).Warn("live-tail publish failed")
	}
}

func (s *Service) enqueueDetectionSoftFail(ctx context.Context, authCtx apikey.AuthContext, rows []logentry.Log) {
	if s.detections == nil || len(rows) == 0 {
		return
	}
	job := DetectionJob{
		ProjectID:      authCtx.ProjectID,
		OrganizationID: authCtx.OrganizationID,
		Logs:           rows,
		EnqueuedAt:     time.Now(),
	}
	if err := s.detections.Enqueue(ctx, job); err != nil && s.logger != nil {
		s.logger.WithError(err).WithField("project_id", authCtx.ProjectID).Warn("detection job enqueue failed")
	}
}
