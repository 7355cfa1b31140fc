package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tg-digester/internal/domain"
	"tg-digester/internal/infra/metrics"
)

// unlockScript удаляет ключ, только если он всё ещё принадлежит владельцу токена.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCache реализует блокировки и одноразовые операции через Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

var _ domain.Locker = (*RedisCache)(nil)

// NewRedis создаёт кэш. Все ключи получают префикс.
func NewRedis(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// TryLock захватывает ключ на ttl. Разблокировка снимает только свою блокировку.
func (c *RedisCache) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	full := c.prefix + "lock:" + key
	token := uuid.NewString()

	start := time.Now()
	ok, err := c.client.SetNX(ctx, full, token, ttl).Result()
	metrics.ObserveNetworkRequest("redis", "lock_acquire", "lock", start, err)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	unlock := func() {
		// контекст вызова мог быть уже отменён
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		start := time.Now()
		err := unlockScript.Run(ctx, c.client, []string{full}, token).Err()
		metrics.ObserveNetworkRequest("redis", "lock_release", "lock", start, err)
	}
	return unlock, true, nil
}

// Once выполняет функцию, если ключ ещё не задан. При ошибке ключ снимается.
func (c *RedisCache) Once(ctx context.Context, key string, ttl time.Duration, fn func() error) (bool, error) {
	full := c.prefix + "once:" + key
	start := time.Now()
	ok, err := c.client.SetNX(ctx, full, "1", ttl).Result()
	metrics.ObserveNetworkRequest("redis", "once", "once", start, err)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := fn(); err != nil {
		_ = c.client.Del(ctx, full).Err()
		return false, err
	}
	return true, nil
}
