package transform

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/logtide/internal/domain/span"
)

func resourceSpansTree(spans ...map[string]any) map[string]any {
	items := make([]any, len(spans))
	for i, s := range spans {
		items[i] = s
	}
	return map[string]any{
		"resourceSpans": []any{
			map[string]any{
				"resource": map[string]any{
					"attributes": []any{
						map[string]any{"key": "service.name", "value": map[string]any{"stringValue": "api"}},
					},
				},
				"scopeSpans": []any{
					map[string]any{"spans": items},
				},
			},
		},
	}
}

func TestSpansFromOTLPDropsZeroIDSpans(t *testing.T) {
	tree := resourceSpansTree(
		map[string]any{
			"traceId": "00000000000000000000000000000000",
			"spanId":  "00f067aa0ba902b7",
			"name":    "dropped-zero-trace",
		},
		map[string]any{
			"traceId": "4bf92f3577b34da6a3ce929d0e0e4736",
			"spanId":  "0000000000000000",
			"name":    "dropped-zero-span",
		},
		map[string]any{
			"traceId":           "4bf92f3577b34da6a3ce929d0e0e4736",
			"spanId":            "00f067aa0ba902b7",
			"name":              "kept",
			"startTimeUnixNano": "1704067200000000000",
			"endTimeUnixNano":   "1704067200500000000",
		},
	)

	spans, traces := SpansFromOTLP(tree, uuid.New(), uuid.New())
	require.Len(t, spans, 1)
	assert.Equal(t, "kept", spans[0].OperationName)
	require.Len(t, traces, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", traces[0].TraceID)
}

func TestSpansFromOTLPAggregatesTraceAcrossSpans(t *testing.T) {
	traceID := "4bf92f3577b34da6a3ce929d0e0e4736"
	tree := resourceSpansTree(
		map[string]any{
			"traceId":           traceID,
			"spanId":            "0000000000000001",
			"parentSpanId":      "",
			"name":              "root",
			"startTimeUnixNano": "1704067200000000000",
			"endTimeUnixNano":   "1704067201000000000",
			"statusCode":        "OK",
		},
		map[string]any{
			"traceId":           traceID,
			"spanId":            "0000000000000002",
			"parentSpanId":      "0000000000000001",
			"name":              "child",
			"startTimeUnixNano": "1704067200200000000",
			"endTimeUnixNano":   "1704067200800000000",
			"statusCode":        "ERROR",
		},
	)

	spans, traces := SpansFromOTLP(tree, uuid.New(), uuid.New())
	require.Len(t, spans, 2)
	require.Len(t, traces, 1)

	trace := traces[0]
	assert.Equal(t, 2, trace.SpanCount)
	assert.True(t, trace.Error, "any span with ERROR status must mark the trace errored")
	assert.Equal(t, "root", trace.RootOperationName)
	assert.WithinDuration(t, spans[0].StartTime, trace.StartTime, 0)
	assert.WithinDuration(t, spans[0].EndTime, trace.EndTime, 0)
}

func TestSpansFromOTLPLastRootSpanWins(t *testing.T) {
	traceID := "4bf92f3577b34da6a3ce929d0e0e4736"
	tree := resourceSpansTree(
		map[string]any{
			"traceId": traceID, "spanId": "0000000000000001",
			"parentSpanId": "", "name": "first-root",
		},
		map[string]any{
			"traceId": traceID, "spanId": "0000000000000002",
			"parentSpanId": "", "name": "second-root",
		},
	)

	_, traces := SpansFromOTLP(tree, uuid.New(), uuid.New())
	require.Len(t, traces, 1)
	assert.Equal(t, "second-root", traces[0].RootOperationName, "ambiguous roots resolve last-writer-wins")
}

func TestSpansFromOTLPKindPropagated(t *testing.T) {
	tree := resourceSpansTree(map[string]any{
		"traceId": "4bf92f3577b34da6a3ce929d0e0e4736",
		"spanId":  "00f067aa0ba902b7",
		"name":    "s",
		"kind":    "SERVER",
	})
	spans, _ := SpansFromOTLP(tree, uuid.New(), uuid.New())
	require.Len(t, spans, 1)
	assert.Equal(t, span.KindServer, spans[0].Kind)
}
