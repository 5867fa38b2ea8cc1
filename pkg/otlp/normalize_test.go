package otlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKeysIdempotent(t *testing.T) {
	input := map[string]any{
		"resource_logs": []any{
			map[string]any{
				"scope_logs": []any{
					map[string]any{
						"log_records": []any{
							map[string]any{
								"severity_number": float64(17),
								"unknown_field":   "kept",
							},
						},
					},
				},
			},
		},
	}

	once := NormalizeKeys(input)
	twice := NormalizeKeys(once)
	assert.Equal(t, once, twice, "normalizing twice must equal normalizing once")

	m := once.(map[string]any)
	_, hasCamel := m["resourceLogs"]
	assert.True(t, hasCamel)
	_, hasSnake := m["resource_logs"]
	assert.False(t, hasSnake)

	rl := m["resourceLogs"].([]any)[0].(map[string]any)
	sl := rl["scopeLogs"].([]any)[0].(map[string]any)
	lr := sl["logRecords"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(17), lr["severityNumber"])
	assert.Equal(t, "kept", lr["unknown_field"], "unknown keys must be preserved untouched")
}

func TestNormalizeID(t *testing.T) {
	t.Run("hex passthrough", func(t *testing.T) {
		out, ok := NormalizeID("4bf92f3577b34da6a3ce929d0e0e4736", 32)
		require.True(t, ok)
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", out)
	})

	t.Run("uppercase hex lowercased", func(t *testing.T) {
		out, ok := NormalizeID("4BF92F3577B34DA6A3CE929D0E0E4736", 32)
		require.True(t, ok)
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", out)
	})

	t.Run("base64 converted to hex", func(t *testing.T) {
		// base64("ABCDEFGHIJKLMNOP") has 16 decoded bytes -> 32 hex chars
		out, ok := NormalizeID("QUJDREVGR0hJSktMTU5PUA==", 32)
		require.True(t, ok)
		assert.Len(t, out, 32)
	})

	t.Run("unrecognized value passed through", func(t *testing.T) {
		out, ok := NormalizeID("not-an-id", 32)
		assert.False(t, ok)
		assert.Equal(t, "not-an-id", out)
	})
}

func TestIsZeroID(t *testing.T) {
	assert.True(t, IsZeroID("00000000000000000000000000000000"))
	assert.True(t, IsZeroID(""))
	assert.False(t, IsZeroID("4bf92f3577b34da6a3ce929d0e0e4736"))
}
