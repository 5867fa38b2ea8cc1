package otlp

import (
	"encoding/json"
	"errors"
)

// ErrInvalidBodyType is returned when a body value is neither already a
// parsed map, a JSON string, nor raw bytes.
var ErrInvalidBodyType = errors.New("otlp: invalid body type")

// DecodeJSONValue accepts a body in any of the shapes an HTTP framework
// might hand us (already-decoded map, raw bytes, or a JSON string) and
// returns the normalized canonical map.
func DecodeJSONValue(body any) (map[string]any, error) {
	var raw map[string]any
	switch v := body.(type) {
	case map[string]any:
		raw = v
	case []byte:
		if err := json.Unmarshal(v, &raw); err != nil {
			return nil, err
		}
	case string:
		if err := json.Unmarshal([]byte(v), &raw); err != nil {
			return nil, err
		}
	default:
		return nil, ErrInvalidBodyType
	}
	normalized := NormalizeKeys(raw)
	m, ok := normalized.(map[string]any)
	if !ok {
		return nil, ErrInvalidBodyType
	}
	return m, nil
}

// DecodeJSONBytes parses raw JSON bytes and normalizes the result.
func DecodeJSONBytes(body []byte) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	normalized := NormalizeKeys(raw)
	m, ok := normalized.(map[string]any)
	if !ok {
		return nil, ErrInvalidBodyType
	}
	return m, nil
}

// looksLikeJSON is used for the protobuf-decode-failure fallback: a payload that fails protobuf unmarshalling is accepted as JSON
// if it is valid UTF-8 JSON, an SDK interop quirk.
func looksLikeJSON(body []byte) bool {
	return json.Valid(body)
}
