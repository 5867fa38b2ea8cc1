package otlp

import (
	"encoding/hex"
	"errors"

	"google.golang.org/protobuf/proto"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
)

// ErrProtobufDecode is returned when a body is neither valid OTLP
// protobuf nor valid UTF-8 JSON.
var ErrProtobufDecode = errors.New("otlp: failed to decode OTLP protobuf")

// DecodeLogsProtobuf unmarshals an ExportLogsServiceRequest and converts it
// to the same canonical camelCase map shape DecodeJSONBytes produces, so
// the transformer never has to know which wire format produced its input.
func DecodeLogsProtobuf(body []byte) (map[string]any, error) {
	var req collogspb.ExportLogsServiceRequest
	if err := proto.Unmarshal(body, &req); err != nil {
		if looksLikeJSON(body) {
			return DecodeJSONBytes(body)
		}
		return nil, ErrProtobufDecode
	}
	resourceLogs := make([]any, len(req.ResourceLogs))
	for i, rl := range req.ResourceLogs {
		resourceLogs[i] = resourceLogsToMap(rl)
	}
	return map[string]any{"resourceLogs": resourceLogs}, nil
}

// DecodeTraceProtobuf unmarshals an ExportTraceServiceRequest into the
// canonical map shape.
func DecodeTraceProtobuf(body []byte) (map[string]any, error) {
	var req coltracepb.ExportTraceServiceRequest
	if err := proto.Unmarshal(body, &req); err != nil {
		if looksLikeJSON(body) {
			return DecodeJSONBytes(body)
		}
		return nil, ErrProtobufDecode
	}
	resourceSpans := make([]any, len(req.ResourceSpans))
	for i, rs := range req.ResourceSpans {
		resourceSpans[i] = resourceSpansToMap(rs)
	}
	return map[string]any{"resourceSpans": resourceSpans}, nil
}

func resourceLogsToMap(rl *logspb.ResourceLogs) map[string]any {
	scopeLogs := make([]any, len(rl.ScopeLogs))
	for i, sl := range rl.ScopeLogs {
		records := make([]any, len(sl.LogRecords))
		for j, lr := range sl.LogRecords {
			records[j] = logRecordToMap(lr)
		}
		scopeLogs[i] = map[string]any{"logRecords": records}
	}
	return map[string]any{
		"resource":  resourceToMap(rl.Resource),
		"scopeLogs": scopeLogs,
	}
}

func logRecordToMap(lr *logspb.LogRecord) map[string]any {
	return map[string]any{
		"timeUnixNano":         formatUint(lr.TimeUnixNano),
		"observedTimeUnixNano": formatUint(lr.ObservedTimeUnixNano),
		"severityNumber":       int(lr.SeverityNumber),
		"severityText":         lr.SeverityText,
		"body":                 anyValueToMap(lr.Body),
		"attributes":           keyValuesToSlice(lr.Attributes),
		"traceId":              hex.EncodeToString(lr.TraceId),
		"spanId":               hex.EncodeToString(lr.SpanId),
	}
}

func resourceSpansToMap(rs *tracepb.ResourceSpans) map[string]any {
	scopeSpans := make([]any, len(rs.ScopeSpans))
	for i, ss := range rs.ScopeSpans {
		spans := make([]any, len(ss.Spans))
		for j, sp := range ss.Spans {
			spans[j] = spanToMap(sp)
		}
		scopeSpans[i] = map[string]any{"spans": spans}
	}
	return map[string]any{
		"resource":   resourceToMap(rs.Resource),
		"scopeSpans": scopeSpans,
	}
}

func spanToMap(sp *tracepb.Span) map[string]any {
	statusCode := "UNSET"
	statusMessage := ""
	if sp.Status != nil {
		statusMessage = sp.Status.Message
		switch sp.Status.Code {
		case tracepb.Status_STATUS_CODE_OK:
			statusCode = "OK"
		case tracepb.Status_STATUS_CODE_ERROR:
			statusCode = "ERROR"
		}
	}
	return map[string]any{
		"traceId":           hex.EncodeToString(sp.TraceId),
		"spanId":            hex.EncodeToString(sp.SpanId),
		"parentSpanId":      hex.EncodeToString(sp.ParentSpanId),
		"name":              sp.Name,
		"kind":              spanKindName(sp.Kind),
		"startTimeUnixNano": formatUint(sp.StartTimeUnixNano),
		"endTimeUnixNano":   formatUint(sp.EndTimeUnixNano),
		"attributes":        keyValuesToSlice(sp.Attributes),
		"statusCode":        statusCode,
		"statusMessage":     statusMessage,
		"events":            spanEventsToSlice(sp.Events),
		"links":             spanLinksToSlice(sp.Links),
	}
}

func spanKindName(k tracepb.Span_SpanKind) string {
	switch k {
	case tracepb.Span_SPAN_KIND_SERVER:
		return "SERVER"
	case tracepb.Span_SPAN_KIND_CLIENT:
		return "CLIENT"
	case tracepb.Span_SPAN_KIND_PRODUCER:
		return "PRODUCER"
	case tracepb.Span_SPAN_KIND_CONSUMER:
		return "CONSUMER"
	default:
		return "INTERNAL"
	}
}

func spanEventsToSlice(events []*tracepb.Span_Event) []any {
	out := make([]any, len(events))
	for i, e := range events {
		out[i] = map[string]any{
			"timeUnixNano": formatUint(e.TimeUnixNano),
			"name":         e.Name,
			"attributes":   keyValuesToSlice(e.Attributes),
		}
	}
	return out
}

func spanLinksToSlice(links []*tracepb.Span_Link) []any {
	out := make([]any, len(links))
	for i, l := range links {
		out[i] = map[string]any{
			"traceId":    hex.EncodeToString(l.TraceId),
			"spanId":     hex.EncodeToString(l.SpanId),
			"attributes": keyValuesToSlice(l.Attributes),
		}
	}
	return out
}

func resourceToMap(r *resourcepb.Resource) map[string]any {
	if r == nil {
		return map[string]any{"attributes": []any{}}
	}
	return map[string]any{"attributes": keyValuesToSlice(r.Attributes)}
}

func keyValuesToSlice(kvs []*commonpb.KeyValue) []any {
	out := make([]any, len(kvs))
	for i, kv := range kvs {
		out[i] = map[string]any{
			"key":   kv.Key,
			"value": anyValueToMap(kv.Value),
		}
	}
	return out
}

// anyValueToMap preserves the OTLP value-wrapper shape
// (stringValue|intValue|doubleValue|boolValue|arrayValue|kvlistValue|bytesValue)
// so the transformer's coercion logic is
// identical whether the source was JSON or protobuf.
func anyValueToMap(v *commonpb.AnyValue) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	switch val := v.Value.(type) {
	case *commonpb.AnyValue_StringValue:
		return map[string]any{"stringValue": val.StringValue}
	case *commonpb.AnyValue_BoolValue:
		return map[string]any{"boolValue": val.BoolValue}
	case *commonpb.AnyValue_IntValue:
		return map[string]any{"intValue": val.IntValue}
	case *commonpb.AnyValue_DoubleValue:
		return map[string]any{"doubleValue": val.DoubleValue}
	case *commonpb.AnyValue_ArrayValue:
		items := make([]any, len(val.ArrayValue.Values))
		for i, item := range val.ArrayValue.Values {
			items[i] = anyValueToMap(item)
		}
		return map[string]any{"arrayValue": map[string]any{"values": items}}
	case *commonpb.AnyValue_KvlistValue:
		return map[string]any{"kvlistValue": map[string]any{"values": keyValuesToSlice(val.KvlistValue.Values)}}
	case *commonpb.AnyValue_BytesValue:
		return map[string]any{"bytesValue": hex.EncodeToString(val.BytesValue)}
	default:
		return map[string]any{}
	}
}

func formatUint(n uint64) string {
	if n == 0 {
		return "0"
	}
	return uintToString(n)
}

func uintToString(n uint64) string {
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
