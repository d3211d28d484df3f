//go:build integration

package state

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("PRESSGO_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PRESSGO_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, rdb.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisSessionStore(t *testing.T) {
	rdb := openTestRedis(t)
	prefix := "pressgo-test:" + uuid.NewString() + ":"
	s := NewRedisSessionStore(rdb, prefix, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, record("a", "u1")))
	require.NoError(t, s.Save(ctx, record("b", "u1")))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID())

	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.DeleteUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.DeleteUser(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisPageStore(t *testing.T) {
	rdb := openTestRedis(t)
	s := NewRedisPageStore(rdb, "pressgo-test:"+uuid.NewString()+":", time.Minute)
	ctx := context.Background()

	var got pageState
	ok, err := s.Load(ctx, "p", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Store(ctx, "p", pageState{Loaded: true}))
	ok, err = s.Load(ctx, "p", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, got.Loaded)
}
