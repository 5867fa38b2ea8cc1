package repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 3, 0, time.UTC)
	token := EncodeCursor(now, 42)

	c, ok := DecodeCursor(token)
	require.True(t, ok)
	assert.True(t, now.Equal(c.Time))
	assert.Equal(t, int64(42), c.ID)
}

func TestDecodeCursorInvalid(t *testing.T) {
	for _, token := range []string{"", "not-base64!!", "aGVsbG8="} {
		_, ok := DecodeCursor(token)
		assert.False(t, ok, "token %q should be invalid", token)
	}
}
