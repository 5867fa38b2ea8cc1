package otlp

import (
	"encoding/base64"
	"encoding/hex"
	"regexp"
)

// snakeToCamel is the closed set of known OTLP field renames.
// Anything not in this table is preserved verbatim; normalization never
// drops unknown keys.
var snakeToCamel = map[string]string{
	"resource_logs":             "resourceLogs",
	"resource_spans":            "resourceSpans",
	"scope_logs":                "scopeLogs",
	"scope_spans":               "scopeSpans",
	"log_records":               "logRecords",
	"time_unix_nano":            "timeUnixNano",
	"observed_time_unix_nano":   "observedTimeUnixNano",
	"severity_number":           "severityNumber",
	"severity_text":             "severityText",
	"trace_id":                  "traceId",
	"span_id":                   "spanId",
	"parent_span_id":            "parentSpanId",
	"trace_state":               "traceState",
	"start_time_unix_nano":      "startTimeUnixNano",
	"end_time_unix_nano":        "endTimeUnixNano",
	"schema_url":                "schemaUrl",
	"dropped_attributes_count":  "droppedAttributesCount",
}

// NormalizeKeys recursively renames known snake_case keys to camelCase
// throughout a decoded JSON tree, including maps nested inside arrays,
// leaving unknown keys and leaf values untouched. It is idempotent:
// applying it to its own output is a no-op, since every key it produces is
// already in camelCase form.
func NormalizeKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			nk := k
			if renamed, ok := snakeToCamel[k]; ok {
				nk = renamed
			}
			out[nk] = NormalizeKeys(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = NormalizeKeys(child)
		}
		return out
	default:
		return v
	}
}

var hexID = regexp.MustCompile(`^[0-9a-fA-F]+$`)

// NormalizeID canonicalizes a trace/span ID string: 16- or 32-character
// hex is lowercased and returned as-is; base64 of the corresponding
// decoded byte length (8 or 16 bytes) is decoded to lowercase hex.
// Anything else is returned unchanged with ok=false so callers can decide
// whether to drop the record.
func NormalizeID(s string, hexLen int) (string, bool) {
	if len(s) == hexLen && hexID.MatchString(s) {
		return toLowerHex(s), true
	}
	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil && len(decoded)*2 == hexLen {
		return hex.EncodeToString(decoded), true
	}
	// Some SDKs emit base64 URL-safe or raw (unpadded) variants.
	if decoded, err := base64.RawURLEncoding.DecodeString(s); err == nil && len(decoded)*2 == hexLen {
		return hex.EncodeToString(decoded), true
	}
	return s, false
}

func toLowerHex(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'F' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// IsZeroID reports whether a normalized hex ID is all zero; such spans are
// skipped by the transformer.
func IsZeroID(hexStr string) bool {
	if hexStr == "" {
		return true
	}
	for _, c := range hexStr {
		if c != '0' {
			return false
		}
	}
	return true
}
