package otlp

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecompressAutoDetectsGzip(t *testing.T) {
	payload := []byte(`{"resourceLogs":[]}`)
	compressed := gzipBytes(t, payload)

	out, err := Decompress(compressed, 0)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestDecompressPassesThroughNonGzip(t *testing.T) {
	payload := []byte(`{"resourceLogs":[]}`)
	out, err := Decompress(payload, 0)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestDecompressEnforcesSizeLimit(t *testing.T) {
	payload := bytes.Repeat([]byte("a"), 1000)
	compressed := gzipBytes(t, payload)

	_, err := Decompress(compressed, 10)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestIsGzipIgnoresContentEncodingHeader(t *testing.T) {
	// The two magic bytes alone determine gzip-ness, independent of any
	// Content-Encoding header the caller might pass (or omit).
	assert.True(t, isGzip([]byte{0x1F, 0x8B, 0x00}))
	assert.False(t, isGzip([]byte("{}")))
	assert.False(t, isGzip([]byte{0x1F}))
}
