package composables

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsePoolMissing(t *testing.T) {
	_, err := UsePool(context.Background())
	assert.ErrorIs(t, err, ErrNoPool)
}

func TestUsePoolTxMissing(t *testing.T) {
	_, ok := UsePoolTx(context.Background())
	assert.False(t, ok)
}

func TestWithTxThenUsePoolTx(t *testing.T) {
	ctx := WithTx(context.Background(), nil)
	_, ok := UsePoolTx(ctx)
	assert.False(t, ok, "a nil tx must not be reported as present")
}

func TestUseQuerierErrorsWithoutPoolOrTx(t *testing.T) {
	_, err := UseQuerier(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPool)
}
