package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	r, err := NewRedis(ctx, RedisConfig{Addr: addr, Prefix: "sentinel-test"}, time.Second)
	require.NoError(t, err)
	defer r.Close()

	key := Key{Symbol: "TEST", Kind: KindLive}
	require.NoError(t, r.Put(ctx, key, []byte("42")))

	v, ok, err := r.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("42"), v)

	_, ok, err = r.Get(ctx, Key{Symbol: "TEST", Kind: "missing"})
	require.NoError(t, err)
	assert.False(t, ok)
}
