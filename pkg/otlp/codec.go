package otlp

import (
	"strings"
)

// ContentKind is the detected payload encoding.
type ContentKind string

const (
	KindJSON     ContentKind = "json"
	KindProtobuf ContentKind = "protobuf"
)

// DetectKind resolves the payload kind: an explicit Content-Type takes
// precedence; anything unrecognized (including an absent header) falls
// back to JSON.
func DetectKind(contentType string) ContentKind {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "application/x-protobuf", "application/protobuf":
		return KindProtobuf
	default:
		return KindJSON
	}
}

// idPaths enumerates (container key, hex length) pairs that carry
// trace/span identifiers and need normalization post-decode.
var idPaths = map[string]int{
	"traceId":       32,
	"spanId":        16,
	"parentSpanId":  16,
}

// normalizeIDs walks the canonical tree in place, normalizing any
// traceId/spanId/parentSpanId leaf string to lowercase hex.
func normalizeIDs(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			if hexLen, ok := idPaths[k]; ok {
				if s, isStr := child.(string); isStr {
					if normalized, matched := NormalizeID(s, hexLen); matched {
						val[k] = normalized
					}
					continue
				}
			}
			val[k] = normalizeIDs(child)
		}
		return val
	case []any:
		for i, child := range val {
			val[i] = normalizeIDs(child)
		}
		return val
	default:
		return v
	}
}

// Limits bounds compressed and decompressed payload sizes.
type Limits struct {
	MaxCompressedBytes   int64
	MaxDecompressedBytes int64
}

// DecodeLogsRequest runs the full decode pipeline for an OTLP logs request
// and returns the canonical, normalized {resourceLogs:[...]} tree.
func DecodeLogsRequest(body any, contentType, contentEncoding string, limits Limits) (map[string]any, error) {
	raw, err := toBytesOrMap(body, limits)
	if err != nil {
		return nil, err
	}
	if m, ok := raw.(map[string]any); ok {
		return finishDecode(m, nil)
	}
	data := raw.([]byte)

	var m map[string]any
	switch DetectKind(contentType) {
	case KindProtobuf:
		m, err = DecodeLogsProtobuf(data)
	default:
		m, err = DecodeJSONBytes(data)
	}
	if err != nil {
		return nil, err
	}
	return finishDecode(m, nil)
}

// DecodeTraceRequest is the trace-signal counterpart of
// DecodeLogsRequest, producing a {resourceSpans:[...]} tree.
func DecodeTraceRequest(body any, contentType, contentEncoding string, limits Limits) (map[string]any, error) {
	raw, err := toBytesOrMap(body, limits)
	if err != nil {
		return nil, err
	}
	if m, ok := raw.(map[string]any); ok {
		return finishDecode(m, nil)
	}
	data := raw.([]byte)

	var m map[string]any
	switch DetectKind(contentType) {
	case KindProtobuf:
		m, err = DecodeTraceProtobuf(data)
	default:
		m, err = DecodeJSONBytes(data)
	}
	if err != nil {
		return nil, err
	}
	return finishDecode(m, nil)
}

func finishDecode(m map[string]any, _ error) (map[string]any, error) {
	normalized := NormalizeKeys(m)
	normalized = normalizeIDs(normalized)
	return normalized.(map[string]any), nil
}

// toBytesOrMap resolves the accepted body shapes: bytes are
// gzip-detected and decompressed; an already-parsed map is passed through
// for normalization only; a string is treated as raw JSON text; anything
// else is ErrInvalidBodyType.
func toBytesOrMap(body any, limits Limits) (any, error) {
	switch v := body.(type) {
	case []byte:
		if limits.MaxCompressedBytes > 0 && int64(len(v)) > limits.MaxCompressedBytes {
			return nil, ErrBodyTooLarge
		}
		return Decompress(v, limits.MaxDecompressedBytes)
	case string:
		return []byte(v), nil
	case map[string]any:
		return v, nil
	default:
		return nil, ErrInvalidBodyType
	}
}
