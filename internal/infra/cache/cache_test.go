package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedis(client, "test:")
}

func TestRedisLockExclusive(t *testing.T) {
	mr, c := newRedis(t)
	ctx := context.Background()

	unlock, ok, err := c.TryLock(ctx, "digest:42", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("test:lock:digest:42"))

	_, ok, err = c.TryLock(ctx, "digest:42", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "второй захват должен быть отклонён")

	unlock()
	assert.False(t, mr.Exists("test:lock:digest:42"))

	_, ok, err = c.TryLock(ctx, "digest:42", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisUnlockKeepsForeignLock(t *testing.T) {
	mr, c := newRedis(t)
	ctx := context.Background()

	unlock, ok, err := c.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// блокировка истекла и досталась другому владельцу
	mr.FastForward(2 * time.Second)
	_, ok, err = c.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	unlock()
	assert.True(t, mr.Exists("test:lock:k"))
}

func TestRedisOnce(t *testing.T) {
	_, c := newRedis(t)
	ctx := context.Background()
	calls := 0
	fn := func() error { calls++; return nil }

	ran, err := c.Once(ctx, "notify:1", time.Hour, fn)
	require.NoError(t, err)
	assert.True(t, ran)
	ran, err = c.Once(ctx, "notify:1", time.Hour, fn)
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, 1, calls)
}

func TestRedisOnceReleasesOnError(t *testing.T) {
	mr, c := newRedis(t)
	ctx := context.Background()

	_, err := c.Once(ctx, "notify:2", time.Hour, func() error { return errors.New("сеть") })
	require.Error(t, err)
	assert.False(t, mr.Exists("test:once:notify:2"))
}

func TestLocalLock(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	unlock, ok, _ := l.TryLock(ctx, "a", 0)
	require.True(t, ok)
	_, ok, _ = l.TryLock(ctx, "a", 0)
	assert.False(t, ok)
	_, ok, _ = l.TryLock(ctx, "b", 0)
	assert.True(t, ok)

	unlock()
	unlock()
	_, ok, _ = l.TryLock(ctx, "a", 0)
	assert.True(t, ok)
}
