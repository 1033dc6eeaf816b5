package cron

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/chatshop/pkg/config"
	"github.com/angelmondragon/chatshop/pkg/redis"
)

func TestRedisLockIsExclusiveAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	client, err := redis.New(ctx, config.RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	first, err := NewRedisLock(client, client.LockKey("orphan_report"), time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(client, client.LockKey("orphan_report"), time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second instance must not take a held lock")

	require.NoError(t, second.Release(ctx))
	assert.True(t, mr.Exists("cs:lock:orphan_report"), "non-owner release must not free the lock")

	require.NoError(t, first.Release(ctx))
	assert.False(t, mr.Exists("cs:lock:orphan_report"))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	client, err := redis.New(ctx, config.RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	lock, err := NewRedisLock(client, "cs:lock:x", time.Second)
	require.NoError(t, err)
	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	other, err := NewRedisLock(client, "cs:lock:x", time.Minute)
	require.NoError(t, err)
	ok, err = other.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, lock.Release(ctx))
	assert.True(t, mr.Exists("cs:lock:x"), "stale holder must not release the new lease")
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "k", 0)
	assert.Error(t, err)
	mr := miniredis.RunT(t)
	client, err := redis.New(context.Background(), config.RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	defer client.Close()
	_, err = NewRedisLock(client, "", 0)
	assert.Error(t, err)
}
