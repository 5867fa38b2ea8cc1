// Package otlp decodes OTLP/HTTP request bodies (JSON or Protobuf,
// optionally gzip-compressed) into a canonical, camelCase nested-map
// representation that pkg/transform consumes regardless of wire format.
package otlp

import (
	"bytes"
	"errors"
	"io"

	"github.com/klauspost/compress/gzip"
)

// gzipMagic is the two-byte gzip header, checked regardless of the
// Content-Encoding header since some collectors omit it.
var gzipMagic = []byte{0x1F, 0x8B}

// ErrBodyTooLarge is returned when a request body exceeds the configured
// compressed-size cap or its decompressed payload exceeds the
// decompressed-size cap.
var ErrBodyTooLarge = errors.New("otlp: body exceeds size limit")

// Decompress gzip-decodes body when its first two bytes are the gzip
// magic, regardless of any Content-Encoding header. A non-gzip body is returned
// unchanged. maxDecompressedBytes bounds the output size; 0 means
// unbounded.
func Decompress(body []byte, maxDecompressedBytes int64) ([]byte, error) {
	if !isGzip(body) {
		return body, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, errors.New("otlp: invalid gzip body")
	}
	defer r.Close()

	var reader io.Reader = r
	if maxDecompressedBytes > 0 {
		reader = io.LimitReader(r, maxDecompressedBytes+1)
	}
	out, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if maxDecompressedBytes > 0 && int64(len(out)) > maxDecompressedBytes {
		return nil, ErrBodyTooLarge
	}
	return out, nil
}

func isGzip(body []byte) bool {
	return len(body) >= 2 && body[0] == gzipMagic[0] && body[1] == gzipMagic[1]
}
