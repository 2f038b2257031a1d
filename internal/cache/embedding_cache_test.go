package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*EmbeddingCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return cacheOn(t, mr, 3), mr
}

func cacheOn(t *testing.T, mr *miniredis.Miniredis, dimension int) *EmbeddingCache {
	t.Helper()
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewEmbeddingCache(client, time.Minute, dimension)
}

func TestEmbeddingCache_RoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, ok := c.Get(ctx, "m", "hello")
	assert.False(t, ok)

	c.Set(ctx, "m", "hello", []float32{0.5, -1, 2})
	vec, ok := c.Get(ctx, "m", "hello")
	require.True(t, ok)
	assert.Equal(t, []float32{0.5, -1, 2}, vec)

	_, ok = c.Get(ctx, "other-model", "hello")
	assert.False(t, ok)
}

func TestEmbeddingCache_Expires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "m", "hello", []float32{1, 0, 0})
	mr.FastForward(2 * time.Minute)

	_, ok := c.Get(ctx, "m", "hello")
	assert.False(t, ok)
}

func TestEmbeddingCache_RedisDownIsMiss(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	c.Set(context.Background(), "m", "hello", []float32{1, 0, 0})
	_, ok := c.Get(context.Background(), "m", "hello")
	assert.False(t, ok)
}

func TestEmbeddingCache_KeyedByDimension(t *testing.T) {
	mr := miniredis.RunT(t)
	small := cacheOn(t, mr, 3)
	large := cacheOn(t, mr, 4)
	ctx := context.Background()

	small.Set(ctx, "m", "hello", []float32{0.5, -1, 2})

	_, ok := large.Get(ctx, "m", "hello")
	assert.False(t, ok, "a resized model must not see old vectors")
	vec, ok := small.Get(ctx, "m", "hello")
	require.True(t, ok)
	assert.Len(t, vec, 3)

	large.Set(ctx, "m", "short", []float32{1, 2})
	assert.Len(t, mr.Keys(), 1, "vectors of the wrong length are not stored")
}
