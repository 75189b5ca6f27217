package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTotalsCache_NilClientIsNoop(t *testing.T) {
	c := NewTotalsCache(nil, 0)
	_, ok := c.(NoopTotalsCache)
	require.True(t, ok)

	ctx := context.Background()
	stored, err := c.Set(ctx, 0, map[int64]int{1: 2})
	require.NoError(t, err)
	assert.False(t, stored)

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	assert.Zero(t, gen)

	totals, hit, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, totals)
	assert.NoError(t, c.Invalidate(ctx))
}
