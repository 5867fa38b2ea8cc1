package transform

import (
	"github.com/google/uuid"

	"github.com/iota-uz/logtide/internal/domain/span"
	"github.com/iota-uz/logtide/pkg/otlp"
)

// SpansFromOTLP flattens a {resourceSpans:[...]} canonical tree into Span
// rows plus the per-trace Trace aggregates computed over them, for
// projectID/organizationID. Spans whose traceId or spanId is missing or
// all-zero are dropped.
//
// Processing order is scope-then-record, matching the resource/scope/record
// nesting of the source tree, so the "last writer wins" root-span policy
// is deterministic for a given input ordering.
func SpansFromOTLP(tree map[string]any, projectID, organizationID uuid.UUID) ([]span.Span, []span.Trace) {
	var spans []span.Span
	traces := newTraceBuilder(projectID)

	for _, rsRaw := range asSlice(tree["resourceSpans"]) {
		rs, ok := rsRaw.(map[string]any)
		if !ok {
			continue
		}
		resourceAttrs := attributesOf(rs["resource"])
		service := serviceName(resourceAttrs)

		for _, ssRaw := range asSlice(rs["scopeSpans"]) {
			ss, ok := ssRaw.(map[string]any)
			if !ok {
				continue
			}
			for _, spRaw := range asSlice(ss["spans"]) {
				spMap, ok := spRaw.(map[string]any)
				if !ok {
					continue
				}
				traceID := stringOf(spMap["traceId"])
				spanID := stringOf(spMap["spanId"])
				if otlp.IsZeroID(traceID) || otlp.IsZeroID(spanID) {
					continue
				}

				row := spanFromMap(spMap, resourceAttrs, service, projectID, organizationID)
				spans = append(spans, row)
				traces.observe(row)
			}
		}
	}
	return spans, traces.rows()
}

func spanFromMap(m map[string]any, resourceAttrs map[string]any, service string, projectID, organizationID uuid.UUID) span.Span {
	start, _ := nanoToTime(m["startTimeUnixNano"])
	end, _ := nanoToTime(m["endTimeUnixNano"])
	durationMs := float64(0)
	if end.After(start) {
		durationMs = float64(end.Sub(start).Microseconds()) / 1000.0
	}

	attrs := keyValuePairsToMap(asSlice(m["attributes"]))

	return span.Span{
		Time:               start,
		ProjectID:          projectID,
		OrganizationID:     organizationID,
		TraceID:            stringOf(m["traceId"]),
		SpanID:             stringOf(m["spanId"]),
		ParentSpanID:       stringOf(m["parentSpanId"]),
		ServiceName:        service,
		OperationName:      stringOf(m["name"]),
		StartTime:          start,
		EndTime:            end,
		DurationMs:         durationMs,
		Kind:               span.Kind(stringOf(m["kind"])),
		StatusCode:         span.StatusCode(stringOf(m["statusCode"])),
		StatusMessage:      stringOf(m["statusMessage"]),
		Attributes:         attrs,
		Events:             eventsOf(m["events"]),
		Links:              linksOf(m["links"]),
		ResourceAttributes: resourceAttrs,
	}
}

func eventsOf(v any) []map[string]any {
	items := asSlice(v)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, map[string]any{
			"name":       stringOf(m["name"]),
			"attributes": keyValuePairsToMap(asSlice(m["attributes"])),
		})
	}
	return out
}

func linksOf(v any) []map[string]any {
	items := asSlice(v)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, map[string]any{
			"traceId":    stringOf(m["traceId"]),
			"spanId":     stringOf(m["spanId"]),
			"attributes": keyValuePairsToMap(asSlice(m["attributes"])),
		})
	}
	return out
}

// traceBuilder accumulates the per-trace Trace aggregate across a batch of
// spans, keyed by traceID, preserving first-seen insertion order so output
// is deterministic for tests.
type traceBuilder struct {
	projectID uuid.UUID
	order     []string
	byID      map[string]*span.Trace
}

func newTraceBuilder(projectID uuid.UUID) *traceBuilder {
	return &traceBuilder{projectID: projectID, byID: make(map[string]*span.Trace)}
}

// observe folds one span into its trace's running aggregate: min(start),
// max(end), spanCount, error-OR, and the root span determined by an empty
// parentSpanId. When more than one span in the batch qualifies as
// root for the same trace, the last one observed wins.
func (b *traceBuilder) observe(row span.Span) {
	t, ok := b.byID[row.TraceID]
	if !ok {
		t = &span.Trace{
			ProjectID:   b.projectID,
			TraceID:     row.TraceID,
			ServiceName: row.ServiceName,
			StartTime:   row.StartTime,
			EndTime:     row.EndTime,
		}
		b.byID[row.TraceID] = t
		b.order = append(b.order, row.TraceID)
	}

	if row.StartTime.Before(t.StartTime) || t.SpanCount == 0 {
		t.StartTime = row.StartTime
	}
	if row.EndTime.After(t.EndTime) {
		t.EndTime = row.EndTime
	}
	t.SpanCount++
	if row.StatusCode == span.StatusError {
		t.Error = true
	}
	if t.EndTime.After(t.StartTime) {
		t.DurationMs = float64(t.EndTime.Sub(t.StartTime).Microseconds()) / 1000.0
	}

	if row.ParentSpanID == "" || otlp.IsZeroID(row.ParentSpanID) {
		t.RootServiceName = row.ServiceName
		t.RootOperationName = row.OperationName
	}
}

func (b *traceBuilder) rows() []span.Trace {
	out := make([]span.Trace, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.byID[id])
	}
	return out
}
