package otlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectKind(t *testing.T) {
	assert.Equal(t, KindProtobuf, DetectKind("application/x-protobuf"))
	assert.Equal(t, KindProtobuf, DetectKind("application/protobuf"))
	assert.Equal(t, KindJSON, DetectKind("application/json"))
	assert.Equal(t, KindJSON, DetectKind(""))
	assert.Equal(t, KindJSON, DetectKind("text/plain"))
}

func TestDecodeLogsRequestJSON(t *testing.T) {
	body := []byte(`{
		"resource_logs": [{
			"resource": {"attributes": [{"key": "service.name", "value": {"stringValue": "svc"}}]},
			"scope_logs": [{
				"log_records": [{
					"severity_number": 17,
					"body": {"stringValue": "boom"},
					"time_unix_nano": "1704067200000000000"
				}]
			}]
		}]
	}`)

	m, err := DecodeLogsRequest(body, "application/json", "", Limits{})
	require.NoError(t, err)

	resourceLogs := m["resourceLogs"].([]any)
	require.Len(t, resourceLogs, 1)
	rl := resourceLogs[0].(map[string]any)
	scopeLogs := rl["scopeLogs"].([]any)
	sl := scopeLogs[0].(map[string]any)
	records := sl["logRecords"].([]any)
	require.Len(t, records, 1)
	record := records[0].(map[string]any)
	assert.Equal(t, float64(17), record["severityNumber"])
}

func TestDecodeLogsRequestInvalidBodyType(t *testing.T) {
	_, err := DecodeLogsRequest(42, "application/json", "", Limits{})
	assert.ErrorIs(t, err, ErrInvalidBodyType)
}

func TestDecodeLogsRequestAlreadyParsedBody(t *testing.T) {
	body := map[string]any{
		"resource_logs": []any{},
	}
	m, err := DecodeLogsRequest(body, "", "", Limits{})
	require.NoError(t, err)
	assert.Contains(t, m, "resourceLogs")
}

func TestDecodeLogsRequestGzipAutoDetect(t *testing.T) {
	payload := []byte(`{"resourceLogs":[]}`)
	compressed := gzipBytes(t, payload)

	m, err := DecodeLogsRequest(compressed, "application/json", "", Limits{})
	require.NoError(t, err)
	assert.Contains(t, m, "resourceLogs")
}
