package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitStore_RoundTrip(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRateLimitStore(client)
	ctx := context.Background()

	got, err := store.Get(ctx, "login:10.0.0.1")
	require.NoError(t, err)
	assert.Empty(t, got)

	base := time.Date(2024, 1, 1, 12, 0, 0, 123, time.UTC)
	attempts := []time.Time{base, base.Add(time.Second)}
	require.NoError(t, store.Set(ctx, "login:10.0.0.1", attempts, time.Minute))

	got, err = store.Get(ctx, "login:10.0.0.1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Equal(attempts[0]))
	assert.True(t, got[1].Equal(attempts[1]))

	ttl := client.TTL(ctx, "ratelimit:login:10.0.0.1").Val()
	assert.InDelta(t, time.Minute.Seconds(), ttl.Seconds(), 5)
}

func TestRateLimitStore_DeleteAndEmptySet(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRateLimitStore(client)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.Set(ctx, "a", []time.Time{now}, time.Minute))
	require.NoError(t, store.Set(ctx, "b", []time.Time{now}, time.Minute))

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Set(ctx, "b", nil, time.Minute))

	assert.Equal(t, int64(0), client.Exists(ctx, "ratelimit:a", "ratelimit:b").Val())
}

func TestRateLimitStore_CorruptValue(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRateLimitStore(client)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "ratelimit:bad", "not-json", time.Minute).Err())
	_, err := store.Get(ctx, "bad")
	assert.Error(t, err)
}

func TestRateLimitStore_Ping(t *testing.T) {
	client := setupTestRedis(t)
	assert.NoError(t, NewRateLimitStore(client).Ping(context.Background()))
}
