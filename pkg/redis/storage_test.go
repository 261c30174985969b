package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vowbill/pkg/redis"
)

func newStorage(t *testing.T, prefix string) (*redis.Storage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewStorage(client, prefix), mr
}

func TestStorage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("set get delete", func(t *testing.T) {
		t.Parallel()
		s, mr := newStorage(t, "app:")

		require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
		assert.True(t, mr.Exists("app:k"))

		val, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), val)

		require.NoError(t, s.Delete(ctx, "k"))
		_, err = s.Get(ctx, "k")
		assert.ErrorIs(t, err, redis.ErrKeyNotFound)
	})

	t.Run("expiration", func(t *testing.T) {
		t.Parallel()
		s, mr := newStorage(t, "app:")

		require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
		mr.FastForward(2 * time.Minute)

		_, err := s.Get(ctx, "k")
		assert.ErrorIs(t, err, redis.ErrKeyNotFound)
	})

	t.Run("empty key and value are ignored", func(t *testing.T) {
		t.Parallel()
		s, mr := newStorage(t, "app:")

		require.NoError(t, s.Set(ctx, "", []byte("v"), 0))
		require.NoError(t, s.Set(ctx, "k", nil, 0))
		assert.Empty(t, mr.Keys())

		_, err := s.Get(ctx, "")
		assert.ErrorIs(t, err, redis.ErrKeyNotFound)
	})

	t.Run("reset only touches the prefix", func(t *testing.T) {
		t.Parallel()
		s, mr := newStorage(t, "app:")
		require.NoError(t, mr.Set("other", "x"))
		require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
		require.NoError(t, s.Set(ctx, "b", []byte("2"), 0))

		require.NoError(t, s.Reset(ctx))
		assert.Equal(t, []string{"other"}, mr.Keys())
	})
}

func TestHealthcheck(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	newClient := func(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
		t.Helper()
		mr := miniredis.RunT(t)
		client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return client, mr
	}

	t.Run("writes a short-lived key under the prefix", func(t *testing.T) {
		t.Parallel()
		client, mr := newClient(t)
		check := redis.Healthcheck(client, "vowbill:")

		require.NoError(t, check(ctx))
		assert.True(t, mr.Exists("vowbill:healthcheck"))
		assert.Equal(t, time.Minute, mr.TTL("vowbill:healthcheck"))
	})

	t.Run("read-only server is not ready", func(t *testing.T) {
		t.Parallel()
		client, mr := newClient(t)
		mr.SetError("READONLY You can't write against a read only replica.")

		err := redis.Healthcheck(client, "vowbill:")(ctx)
		assert.ErrorIs(t, err, redis.ErrHealthcheckFailed)
		assert.ErrorContains(t, err, "vowbill:healthcheck")
	})

	t.Run("unreachable server", func(t *testing.T) {
		t.Parallel()
		client, mr := newClient(t)
		mr.Close()

		assert.ErrorIs(t, redis.Healthcheck(client, "")(ctx), redis.ErrHealthcheckFailed)
	})

	t.Run("nil client panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { redis.Healthcheck(nil, "") })
	})
}

func TestConnect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := redis.Connect(ctx, redis.Config{})
	assert.ErrorIs(t, err, redis.ErrEmptyConnectionURL)

	_, err = redis.Connect(ctx, redis.Config{ConnectionURL: "://bad"})
	assert.ErrorIs(t, err, redis.ErrFailedToParseRedisConnString)

	mr := miniredis.RunT(t)
	client, err := redis.Connect(ctx, redis.Config{
		ConnectionURL:  "redis://" + mr.Addr() + "/0",
		RetryAttempts:  1,
		ConnectTimeout: time.Second,
	})
	require.NoError(t, err)
	assert.NoError(t, client.Close())
}
