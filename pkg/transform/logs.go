// Package transform converts the canonical OTLP trees produced by pkg/otlp
// into the domain rows persisted by the ingestion pipeline.
package transform

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/logtide/internal/domain/logentry"
)

const unknownService = "unknown"

// LogsFromOTLP flattens a {resourceLogs:[...]} canonical tree into Log rows
// for projectID. Malformed records are skipped rather than aborting the
// whole batch, consistent with the ingestion pipeline's partial-success
// contract.
func LogsFromOTLP(tree map[string]any, projectID uuid.UUID) []logentry.Log {
	var out []logentry.Log

	for _, rlRaw := range asSlice(tree["resourceLogs"]) {
		rl, ok := rlRaw.(map[string]any)
		if !ok {
			continue
		}
		resourceAttrs := attributesOf(rl["resource"])
		service := serviceName(resourceAttrs)

		for _, slRaw := range asSlice(rl["scopeLogs"]) {
			sl, ok := slRaw.(map[string]any)
			if !ok {
				continue
			}
			for _, recRaw := range asSlice(sl["logRecords"]) {
				rec, ok := recRaw.(map[string]any)
				if !ok {
					continue
				}
				out = append(out, logFromRecord(rec, resourceAttrs, service, projectID))
			}
		}
	}
	return out
}

func logFromRecord(rec map[string]any, resourceAttrs map[string]any, service string, projectID uuid.UUID) logentry.Log {
	logAttrs := attributesOf(map[string]any{"attributes": rec["attributes"]})

	merged := make(map[string]any, len(resourceAttrs)+len(logAttrs))
	for k, v := range resourceAttrs {
		merged[k] = v
	}
	for k, v := range logAttrs {
		merged[k] = v
	}

	return logentry.Log{
		Time:      recordTime(rec),
		ProjectID: projectID,
		Service:   service,
		Level:     logentry.LevelFromSeverityNumber(intOf(rec["severityNumber"])),
		Message:   bodyToMessage(rec["body"]),
		Metadata:  merged,
		TraceID:   stringOf(rec["traceId"]),
		SpanID:    stringOf(rec["spanId"]),
	}
}

// recordTime resolves the record time precedence: timeUnixNano, falling back to
// observedTimeUnixNano, falling back to now.
func recordTime(rec map[string]any) time.Time {
	if t, ok := nanoToTime(rec["timeUnixNano"]); ok {
		return t
	}
	if t, ok := nanoToTime(rec["observedTimeUnixNano"]); ok {
		return t
	}
	return time.Now().UTC()
}

func nanoToTime(v any) (time.Time, bool) {
	nanos := uint64Of(v)
	if nanos == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, int64(nanos)).UTC(), true
}

// bodyToMessage coerces an OTLP body value wrapper to a flat string: a
// stringValue is used verbatim, anything else is JSON-stringified whole.
func bodyToMessage(body any) string {
	m, ok := body.(map[string]any)
	if !ok {
		return stringOf(body)
	}
	if s, ok := m["stringValue"].(string); ok {
		return s
	}
	if len(m) == 0 {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}

// unwrapAnyValue strips the OTLP wrapper key (stringValue/intValue/...) so
// attribute values are stored as plain values rather than in the wire shape.
func unwrapAnyValue(m map[string]any) any {
	switch {
	case m["stringValue"] != nil:
		return m["stringValue"]
	case m["boolValue"] != nil:
		return m["boolValue"]
	case m["intValue"] != nil:
		return m["intValue"]
	case m["doubleValue"] != nil:
		return m["doubleValue"]
	case m["arrayValue"] != nil:
		av, _ := m["arrayValue"].(map[string]any)
		values := asSlice(av["values"])
		items := make([]any, len(values))
		for i, v := range values {
			if vm, ok := v.(map[string]any); ok {
				items[i] = unwrapAnyValue(vm)
			}
		}
		return items
	case m["kvlistValue"] != nil:
		kv, _ := m["kvlistValue"].(map[string]any)
		return keyValuePairsToMap(asSlice(kv["values"]))
	case m["bytesValue"] != nil:
		return m["bytesValue"]
	default:
		return m
	}
}

// attributesOf reads a {attributes:[{key,value},...]} container (either a
// resource node or a synthetic wrapper around a record's attributes) into a
// flat map.
func attributesOf(container any) map[string]any {
	m, ok := container.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return keyValuePairsToMap(asSlice(m["attributes"]))
}

func keyValuePairsToMap(kvs []any) map[string]any {
	out := make(map[string]any, len(kvs))
	for _, kvRaw := range kvs {
		kv, ok := kvRaw.(map[string]any)
		if !ok {
			continue
		}
		key, _ := kv["key"].(string)
		if key == "" {
			continue
		}
		out[key] = unwrapAnyValue(attrValue(kv["value"]))
	}
	return out
}

func attrValue(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}

// serviceName extracts service.name from resource attributes, defaulting to
// "unknown".
func serviceName(resourceAttrs map[string]any) string {
	if s, ok := resourceAttrs["service.name"].(string); ok && s != "" {
		return s
	}
	return unknownService
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func intOf(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func uint64Of(v any) uint64 {
	switch n := v.(type) {
	case string:
		var out uint64
		for _, c := range n {
			if c < '0' || c > '9' {
				return 0
			}
			out = out*10 + uint64(c-'0')
		}
		return out
	case float64:
		return uint64(n)
	default:
		return 0
	}
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}
