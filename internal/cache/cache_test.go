package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func exerciseClient(t *testing.T, c Client) {
	t.Helper()
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	require.True(t, IsNotFound(err))

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", v)

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.Delete(ctx, "k"))
	ok, err = c.Exists(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Ping(ctx))
}

func TestMemoryClient(t *testing.T) {
	c := NewMemory("neg")
	exerciseClient(t, c)

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "short", "1", 20*time.Millisecond))
	require.Eventually(t, func() bool {
		_, err := c.Get(ctx, "short")
		return IsNotFound(err)
	}, time.Second, 10*time.Millisecond)

	st, err := c.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, "memory", st.Driver)
	require.Positive(t, st.Misses)
	require.NoError(t, c.Close())
}

func TestRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New(Config{Driver: "redis", Addr: mr.Addr(), Prefix: "tenantdb"})
	require.NoError(t, err)
	defer c.Close()

	exerciseClient(t, c)

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "ttl", "1", time.Minute))
	require.True(t, mr.Exists("tenantdb:ttl"))
	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "ttl")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNewUnknownDriver(t *testing.T) {
	_, err := New(Config{Driver: "memcached"})
	require.Error(t, err)

	c, err := New(Config{})
	require.NoError(t, err)
	require.NoError(t, c.Ping(context.Background()))
}

func TestNewRedisUnreachable(t *testing.T) {
	_, err := NewRedis(Config{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}
