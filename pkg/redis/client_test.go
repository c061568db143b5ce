package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/fuelops/fuelops-backend/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return NewFromRedis(raw), mr
}

func TestSetNXOnlyFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)

	key := client.IdempotencyKey("POST|/api/v1/accounts/{accountId}/collections", "abc")
	ok, err := client.SetNX(ctx, key, "first", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.SetNX(ctx, key, "second", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	val, err := client.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "first", val)

	mr.FastForward(2 * time.Minute)
	_, err = client.Get(ctx, key)
	require.ErrorIs(t, err, redis.Nil)
}

func TestDelAndPing(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)

	require.NoError(t, client.Ping(ctx))
	require.NoError(t, client.Set(ctx, "k", "v", 0))
	require.NoError(t, client.Del(ctx, "k"))
	require.False(t, mr.Exists("k"))
}

func TestCompareAndDeleteChecksOwner(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	key := client.LockKey("cron-worker:prod")

	ok, err := client.SetNX(ctx, key, "owner-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	deleted, err := client.CompareAndDelete(ctx, key, "owner-b")
	require.NoError(t, err)
	require.False(t, deleted)
	require.True(t, mr.Exists(key))

	deleted, err = client.CompareAndDelete(ctx, key, "owner-a")
	require.NoError(t, err)
	require.True(t, deleted)
	require.False(t, mr.Exists(key))
}

func TestCompareAndExpireExtendsOnlyForOwner(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	key := client.LockKey("cron-worker:prod")

	_, err := client.SetNX(ctx, key, "owner-a", time.Minute)
	require.NoError(t, err)

	extended, err := client.CompareAndExpire(ctx, key, "owner-b", time.Hour)
	require.NoError(t, err)
	require.False(t, extended)
	require.Equal(t, time.Minute, mr.TTL(key))

	extended, err = client.CompareAndExpire(ctx, key, "owner-a", time.Hour)
	require.NoError(t, err)
	require.True(t, extended)
	require.Equal(t, time.Hour, mr.TTL(key))
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	require.Equal(t, "fuelops:idempotency:scope:id", client.IdempotencyKey("scope", " id "))
	require.Equal(t, "fuelops:lock:ledger_drift_audit", client.LockKey("ledger_drift_audit"))
	require.Equal(t, "fuelops", Key())
	require.Equal(t, "fuelops:a:b", Key("a", "  ", "b"))
}

func TestUninitializedClientErrors(t *testing.T) {
	ctx := context.Background()
	client := &Client{}
	_, err := client.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = client.CompareAndDelete(ctx, "k", "v")
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, client.Ping(ctx), ErrNotInitialized)
	require.NoError(t, client.Del(ctx))
	require.NoError(t, client.Close())

	var nilClient *Client
	require.NoError(t, nilClient.Close())
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{
		URL:      "redis://localhost:6380/2",
		PoolSize: 7,
	})
	require.NoError(t, err)
	require.Equal(t, "localhost:6380", opts.Addr)
	require.Equal(t, 2, opts.DB)
	require.Equal(t, 7, opts.PoolSize)

	opts, err = optionsFromConfig(config.RedisConfig{
		Address:     "cache:6379",
		DB:          3,
		DialTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	require.Equal(t, "cache:6379", opts.Addr)
	require.Equal(t, 3, opts.DB)
	require.Equal(t, 2*time.Second, opts.DialTimeout)

	_, err = optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)
}
