package bot

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("SUPPORTCHAT_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestMemorySilenceStore(t *testing.T) {
	s := NewMemorySilenceStore()
	ctx := context.Background()
	until := time.Date(2026, 1, 1, 0, 30, 0, 0, time.UTC)

	_, ok, err := s.SilencedUntil(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Silence(ctx, "u1", until))
	got, ok, err := s.SilencedUntil(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, until, got)

	require.NoError(t, s.Clear(ctx, "u1"))
	assert.Zero(t, s.Len())
}

func TestRedisSilenceStore(t *testing.T) {
	client := newTestRedis(t)
	prefix := "supportchat:test:" + t.Name() + ":"
	s := NewRedisSilenceStore(client, prefix)
	ctx := context.Background()
	t.Cleanup(func() { _ = s.Clear(context.Background(), "u1") })

	until := time.Now().Add(time.Hour).Truncate(time.Millisecond).UTC()
	require.NoError(t, s.Silence(ctx, "u1", until))

	got, ok, err := s.SilencedUntil(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, until.Equal(got))

	ttl, err := client.TTL(ctx, prefix+"u1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	require.NoError(t, s.Clear(ctx, "u1"))
	_, ok, err = s.SilencedUntil(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngineWithRedisStore(t *testing.T) {
	client := newTestRedis(t)
	s := NewRedisSilenceStore(client, "supportchat:test:"+t.Name()+":")
	e := NewEngine(s)
	ctx := context.Background()
	t.Cleanup(func() { _ = s.Clear(context.Background(), "u1") })

	_, ok, err := e.Decide(ctx, "u1", Inbound{Text: "zzz"})
	require.NoError(t, err)
	require.True(t, ok)

	silenced, err := e.IsSilenced(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, silenced)
}
