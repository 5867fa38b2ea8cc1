package transform

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/logtide/internal/domain/logentry"
)

func TestLogsFromOTLPBasic(t *testing.T) {
	projectID := uuid.New()
	tree := map[string]any{
		"resourceLogs": []any{
			map[string]any{
				"resource": map[string]any{
					"attributes": []any{
						map[string]any{"key": "service.name", "value": map[string]any{"stringValue": "checkout"}},
						map[string]any{"key": "env", "value": map[string]any{"stringValue": "prod"}},
					},
				},
				"scopeLogs": []any{
					map[string]any{
						"logRecords": []any{
							map[string]any{
								"severityNumber": float64(17),
								"body":           map[string]any{"stringValue": "payment failed"},
								"timeUnixNano":   "1704067200000000000",
								"traceId":        "4bf92f3577b34da6a3ce929d0e0e4736",
								"spanId":         "00f067aa0ba902b7",
								"attributes": []any{
									map[string]any{"key": "env", "value": map[string]any{"stringValue": "staging"}},
								},
							},
						},
					},
				},
			},
		},
	}

	rows := LogsFromOTLP(tree, projectID)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, projectID, row.ProjectID)
	assert.Equal(t, "checkout", row.Service)
	assert.Equal(t, logentry.LevelError, row.Level)
	assert.Equal(t, "payment failed", row.Message)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", row.TraceID)
	assert.Equal(t, "00f067aa0ba902b7", row.SpanID)
	// log-record attributes win over resource attributes on key conflict.
	assert.Equal(t, "staging", row.Metadata["env"])
}

func TestLogsFromOTLPMissingServiceNameDefaultsUnknown(t *testing.T) {
	tree := map[string]any{
		"resourceLogs": []any{
			map[string]any{
				"resource": map[string]any{"attributes": []any{}},
				"scopeLogs": []any{
					map[string]any{
						"logRecords": []any{
							map[string]any{"severityNumber": float64(9), "body": map[string]any{"stringValue": "hi"}},
						},
					},
				},
			},
		},
	}

	rows := LogsFromOTLP(tree, uuid.New())
	require.Len(t, rows, 1)
	assert.Equal(t, "unknown", rows[0].Service)
	assert.Equal(t, logentry.LevelInfo, rows[0].Level)
}

func TestLogsFromOTLPTimeFallsBackToObservedThenNow(t *testing.T) {
	tree := map[string]any{
		"resourceLogs": []any{
			map[string]any{
				"resource": map[string]any{"attributes": []any{}},
				"scopeLogs": []any{
					map[string]any{
						"logRecords": []any{
							map[string]any{
								"severityNumber":       float64(5),
								"body":                 map[string]any{"stringValue": "a"},
								"observedTimeUnixNano": "1704067200000000000",
							},
							map[string]any{
								"severityNumber": float64(5),
								"body":           map[string]any{"stringValue": "b"},
							},
						},
					},
				},
			},
		},
	}

	rows := LogsFromOTLP(tree, uuid.New())
	require.Len(t, rows, 2)
	assert.False(t, rows[0].Time.IsZero())
	assert.False(t, rows[1].Time.IsZero(), "a record with no timestamps at all must fall back to now()")
}

func TestBodyToMessageNonStringIsJSONStringified(t *testing.T) {
	assert.Equal(t, `{"intValue":42}`, bodyToMessage(map[string]any{"intValue": float64(42)}))
	assert.Equal(t, `{"boolValue":true}`, bodyToMessage(map[string]any{"boolValue": true}))
	assert.Equal(t, "hello", bodyToMessage(map[string]any{"stringValue": "hello"}))
	assert.Equal(t, "", bodyToMessage(map[string]any{}))
}
