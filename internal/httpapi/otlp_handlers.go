package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/iota-uz/logtide/internal/services/ingestion"
)

// partialSuccessBody is the fixed OTLP/HTTP response envelope:
// always present, rejectedCount may be 0 even on 200.
type partialSuccessBody struct {
	PartialSuccess partialSuccess `json:"partialSuccess"`
}

type partialSuccess struct {
	RejectedLogRecords *int   `json:"rejectedLogRecords,omitempty"`
	RejectedSpans      *int   `json:"rejectedSpans,omitempty"`
	ErrorMessage       string `json:"errorMessage,omitempty"`
}

func intPtr(n int) *int { return &n }

// HandleIngestLogs implements POST /v1/otlp/logs.
func (a *App) HandleIngestLogs(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := a.apiKeyAuth(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, a.Config.Ingestion.MaxCompressedBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, partialSuccessBody{PartialSuccess: partialSuccess{
			RejectedLogRecords: intPtr(1),
			ErrorMessage:       "failed to read request body",
		}})
		return
	}

	result, err := a.Ingestion.IngestLogs(r.Context(), authCtx, body, r.Header.Get("Content-Type"), r.Header.Get("Content-Encoding"))
	if err != nil {
		if a.Logger != nil {
			a.Logger.WithError(err).WithField("project_id", authCtx.ProjectID).Error("logs ingestion failed")
		}
		status := http.StatusBadRequest
		if errors.Is(err, ingestion.ErrPersistFailed) {
			status = http.StatusInternalServerError
		}
		rejected := result.RejectedRows
		if rejected == 0 {
			rejected = 1
		}
		msg := result.ErrorMessage
		if msg == "" {
			msg = err.Error()
		}
		writeJSON(w, status, partialSuccessBody{PartialSuccess: partialSuccess{
			RejectedLogRecords: intPtr(rejected),
			ErrorMessage:       msg,
		}})
		return
	}

	if a.Metrics != nil {
		a.Metrics.IngestAccepted.Add(float64(result.AcceptedRows))
		a.Metrics.IngestRejected.Add(float64(result.RejectedRows))
	}

	status := http.StatusOK
	if result.ErrorMessage != "" && result.AcceptedRows == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, partialSuccessBody{PartialSuccess: partialSuccess{
		RejectedLogRecords: intPtr(result.RejectedRows),
		ErrorMessage:       result.ErrorMessage,
	}})
}

// HandleIngestTraces implements POST /v1/otlp/traces.
func (a *App) HandleIngestTraces(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := a.apiKeyAuth(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, a.Config.Ingestion.MaxCompressedBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, partialSuccessBody{PartialSuccess: partialSuccess{
			RejectedSpans: intPtr(1),
			ErrorMessage:  "failed to read request body",
		}})
		return
	}

	result, err := a.Ingestion.IngestTraces(r.Context(), authCtx, body, r.Header.Get("Content-Type"), r.Header.Get("Content-Encoding"))
	if err != nil {
		if a.Logger != nil {
			a.Logger.WithError(err).WithField("project_id", authCtx.ProjectID).Error("traces ingestion failed")
		}
		status := http.StatusBadRequest
		if errors.Is(err, ingestion.ErrPersistFailed) {
			status = http.StatusInternalServerError
		}
		rejected := result.RejectedRows
		if rejected == 0 {
			rejected = 1
		}
		msg := result.ErrorMessage
		if msg == "" {
			msg = err.Error()
		}
		writeJSON(w, status, partialSuccessBody{PartialSuccess: partialSuccess{
			RejectedSpans: intPtr(rejected),
			ErrorMessage:  msg,
		}})
		return
	}

	if a.Metrics != nil {
		a.Metrics.IngestAccepted.Add(float64(result.AcceptedRows))
		a.Metrics.IngestRejected.Add(float64(result.RejectedRows))
	}

	status := http.StatusOK
	if result.ErrorMessage != "" && result.AcceptedRows == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, partialSuccessBody{PartialSuccess: partialSuccess{
		RejectedSpans: intPtr(result.RejectedRows),
		ErrorMessage:  result.ErrorMessage,
	}})
}

// HandleOTLPHealth implements GET /v1/otlp/{logs,traces}:
// authenticate the API key and report ok.
func (a *App) HandleOTLPHealth(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.apiKeyAuth(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
