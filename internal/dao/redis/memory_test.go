package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, c.Set(ctx, "forever", "x", 0))

	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	now = now.Add(2 * time.Minute)
	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _ = c.Exists(ctx, "forever")
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "forever", "missing"))
	v, _ = c.Get(ctx, "forever")
	assert.Empty(t, v)
}
