package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_LRU(t *testing.T) {
	c := NewMemoryCache(2, nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))
	_, ok, _ := c.Get(ctx, "a")
	require.True(t, ok)

	require.NoError(t, c.Set(ctx, "c", []byte("3"), time.Minute))

	_, ok, _ = c.Get(ctx, "b")
	assert.False(t, ok, "b was least recently used")
	v, ok, _ := c.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	st := c.Stats()
	assert.Equal(t, int64(1), st.Evictions)
	assert.Equal(t, 2, st.Items)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(10, nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, StatsKey("u1"), []byte("{}"), 30*time.Second))
	now = now.Add(31 * time.Second)

	_, ok, err := c.Get(ctx, StatsKey("u1"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
	now = now.Add(2 * time.Second)
	assert.Equal(t, 1, c.cleanupExpired())
}

func TestMemoryCache_ReturnsCopy(t *testing.T) {
	c := NewMemoryCache(10, nil)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("abc"), time.Minute))

	v, _, _ := c.Get(ctx, "k")
	v[0] = 'z'
	again, _, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, _ := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisCache(t *testing.T) {
	s := miniredis.RunT(t)
	c, err := NewRedisCache(s.Addr(), "", 0)
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, StatsKey("u1"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, StatsKey("u1"), []byte(`{"dots":1}`), time.Minute))
	assert.True(t, s.Exists("canvas:stats:u1"))

	v, ok, err := c.Get(ctx, StatsKey("u1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"dots":1}`, string(v))

	s.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, StatsKey("u1"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "x", []byte("1"), time.Minute))
	require.NoError(t, c.Delete(ctx, "x"))
	assert.False(t, s.Exists("canvas:x"))
	assert.NoError(t, c.Ping(ctx))
}

func TestNoop(t *testing.T) {
	var c Cache = Noop{}
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
