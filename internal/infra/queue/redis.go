package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tg-digester/internal/domain"
	"tg-digester/internal/infra/metrics"
)

const (
	popTimeout           = time.Second
	defaultPostponeDelay = 30 * time.Second
)

// promoteScript переносит созревшие отложенные задачи в хвост очереди.
var promoteScript = redis.NewScript(`
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
for _, job in ipairs(due) do
	redis.call("ZREM", KEYS[1], job)
	redis.call("LPUSH", KEYS[2], job)
end
return #due
`)

// RedisDigestQueue реализует надёжную очередь задач на Redis lists.
// Полученная задача лежит в списке обработки, пока её не подтвердят.
// Отложенные задачи ждут в sorted set с временем готовности в score.
type RedisDigestQueue struct {
	client        *redis.Client
	key           string
	processing    string
	delayed       string
	postponeDelay time.Duration
}

var _ domain.DigestQueue = (*RedisDigestQueue)(nil)

// NewRedisDigestQueue создаёт очередь по указанному ключу.
// postponeDelay задаёт, на сколько откладывается задача по AckPostpone.
func NewRedisDigestQueue(client *redis.Client, key string, postponeDelay time.Duration) *RedisDigestQueue {
	if postponeDelay < 0 {
		postponeDelay = defaultPostponeDelay
	}
	return &RedisDigestQueue{
		client:        client,
		key:           key,
		processing:    key + ":processing",
		delayed:       key + ":delayed",
		postponeDelay: postponeDelay,
	}
}

// Enqueue публикует задачу в очередь.
func (q *RedisDigestQueue) Enqueue(ctx context.Context, job domain.DigestJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.RequestedAt.IsZero() {
		job.RequestedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "queue_push", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	metrics.IncQueueJob("enqueued")
	return nil
}

// Receive блокирующе читает задачу. AckDone удаляет её, AckRetry возвращает в очередь
// с увеличенным счётчиком попыток, AckPostpone откладывает без счёта попыток.
func (q *RedisDigestQueue) Receive(ctx context.Context) (domain.DigestJob, domain.DigestAckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.DigestJob{}, nil, err
		}
		if err := q.promote(ctx); err != nil {
			if ctx.Err() != nil {
				return domain.DigestJob{}, nil, ctx.Err()
			}
			return domain.DigestJob{}, nil, err
		}

		raw, err := q.client.BRPopLPush(ctx, q.key, q.processing, popTimeout).Result()
		if err != nil {
			if ctx.Err() != nil {
				return domain.DigestJob{}, nil, ctx.Err()
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.DigestJob{}, nil, err
		}

		var job domain.DigestJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			// битую задачу повторять бессмысленно
			_ = q.client.LRem(ctx, q.processing, 1, raw).Err()
			metrics.IncQueueJob("malformed")
			return domain.DigestJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		return job, q.ackFunc(raw, job), nil
	}
}

func (q *RedisDigestQueue) promote(ctx context.Context) error {
	start := time.Now()
	err := promoteScript.Run(ctx, q.client, []string{q.delayed, q.key}, time.Now().UnixMilli()).Err()
	metrics.ObserveNetworkRequest("redis", "queue_promote", q.key, start, err)
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("promote delayed jobs: %w", err)
	}
	return nil
}

func (q *RedisDigestQueue) ackFunc(raw string, job domain.DigestJob) domain.DigestAckFunc {
	return func(ack domain.Ack) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		switch ack {
		case domain.AckDone:
			err := q.client.LRem(ctx, q.processing, 1, raw).Err()
			if err == nil {
				metrics.IncQueueJob("acked")
			}
			return err
		case domain.AckRetry:
			job.Attempt++
		case domain.AckPostpone:
			job.Postponed++
		default:
			return fmt.Errorf("unknown ack %d", ack)
		}

		payload, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}
		pipe := q.client.TxPipeline()
		pipe.LRem(ctx, q.processing, 1, raw)
		if ack == domain.AckPostpone {
			readyAt := time.Now().Add(q.postponeDelay).UnixMilli()
			pipe.ZAdd(ctx, q.delayed, redis.Z{Score: float64(readyAt), Member: payload})
		} else {
			pipe.RPush(ctx, q.key, payload)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("requeue job: %w", err)
		}
		if ack == domain.AckPostpone {
			metrics.IncQueueJob("postponed")
		} else {
			metrics.IncQueueJob("requeued")
		}
		return nil
	}
}

// Recover возвращает в очередь задачи, зависшие в обработке после падения воркера.
func (q *RedisDigestQueue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.client.RPopLPush(ctx, q.processing, q.key).Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, err
		}
		moved++
	}
}
