package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	ctx := context.Background()
	assert.Error(t, c.Set(ctx, "k", "v", time.Minute))
	_, err := c.Get(ctx, "k")
	assert.Error(t, err)
	assert.NoError(t, c.Close())
	assert.Nil(t, c.Raw())
}

func TestJSONRoundTrip(t *testing.T) {
	client, ok, err := NewTestClient()
	if !ok {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed tests")
	}
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	in := []string{`<a href="/admin/">Home</a>`}
	require.NoError(t, client.SetJSON(ctx, "test:crumbs", in, time.Minute))

	var out []string
	require.NoError(t, client.GetJSON(ctx, "test:crumbs", &out))
	assert.Equal(t, in, out)

	ttl, err := client.TTL(ctx, "test:crumbs")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, client.Del(ctx, "test:crumbs"))
	err = client.GetJSON(ctx, "test:crumbs", &out)
	assert.True(t, errors.Is(err, ErrCacheMiss))
}
