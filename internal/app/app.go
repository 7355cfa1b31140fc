package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-digester/internal/adapters/prompt"
	"tg-digester/internal/adapters/ranker"
	"tg-digester/internal/adapters/repo"
	"tg-digester/internal/adapters/stages"
	"tg-digester/internal/adapters/summarizer"
	"tg-digester/internal/domain"
	"tg-digester/internal/infra/cache"
	"tg-digester/internal/infra/config"
	"tg-digester/internal/infra/db"
	"tg-digester/internal/infra/eliza"
	httpinfra "tg-digester/internal/infra/http"
	applog "tg-digester/internal/infra/log"
	"tg-digester/internal/infra/queue"
	"tg-digester/internal/usecase/digest"
	"tg-digester/internal/usecase/interval"
)

// ErrNotConfigured: для команды не задан нужный адрес внешнего сервиса.
var ErrNotConfigured = errors.New("не настроено")

// Options уточняет, какие части собирать.
type Options struct {
	// Verify перекрывает ELIZA_VERIFY, если не пуст.
	Verify string
	// Stages подключает RabbitMQ для стадий извлечения и резюмирования.
	Stages bool
	// Queue подключает очередь задач дайджестов.
	Queue bool
	// Location задаёт часовой пояс календарных дней при поиске сообщений, по умолчанию UTC.
	Location *time.Location
}

// App хранит собранный граф зависимостей процесса.
type App struct {
	Config   config.AppConfig
	Log      zerolog.Logger
	Pool     *pgxpool.Pool
	Store    *repo.Postgres
	Redis    *redis.Client
	Cache    *cache.RedisCache
	Queue    *queue.RedisDigestQueue
	Stages   *stages.Client
	Digests  *digest.Service
	Interval *interval.Service

	closers []func()
}

// New подключается к хранилищам и собирает сервисы.
func New(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Log: logger}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	var err error

	if cfg.PGDSN == "" {
		return nil, fmt.Errorf("%w: PG_DSN", ErrNotConfigured)
	}
	a.Pool, err = db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("подключение к БД: %w", err)
	}
	a.closers = append(a.closers, a.Pool.Close)
	a.Store = repo.NewPostgres(a.Pool, Tables(cfg)).WithLocation(opts.Location)

	var locker domain.Locker = cache.NewLocal()
	if cfg.RedisAddr != "" {
		a.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, func() { _ = a.Redis.Close() })
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = a.Redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return nil, fmt.Errorf("подключение к redis: %w", err)
		}
		a.Cache = cache.NewRedis(a.Redis, "tg-digester:")
		locker = a.Cache
	}
	if opts.Queue {
		if a.Redis == nil {
			return nil, fmt.Errorf("%w: REDIS_ADDR", ErrNotConfigured)
		}
		a.Queue = queue.NewRedisDigestQueue(a.Redis, cfg.Queues.Digest, cfg.Queues.PostponeDelay)
	}

	verifyRaw := cfg.Eliza.Verify
	if opts.Verify != "" {
		verifyRaw = opts.Verify
	}
	verify, err := eliza.ParseVerify(verifyRaw)
	if err != nil {
		return nil, err
	}
	client, err := eliza.NewClient(eliza.Config{
		BaseURL:    cfg.Eliza.BaseURL,
		Token:      cfg.Eliza.Token,
		AuthScheme: cfg.Eliza.AuthScheme,
		Verify:     verify,
		Timeout:    cfg.Eliza.Timeout,
		MaxRetries: cfg.Eliza.MaxRetries,
		RetryDelay: cfg.Eliza.RetryDelay,
	}, applog.Component(logger, "eliza"))
	if err != nil {
		return nil, err
	}

	prompts := prompt.NewBuilder(cfg.Prompt.MaxRunes, cfg.Limits.StoriesMax)
	a.Digests = digest.NewService(digest.Deps{
		Channels:    a.Store,
		Topics:      a.Store,
		Digests:     a.Store,
		Categorizer: summarizer.NewCategorizer(client, prompts, logger),
		Grouper:     ranker.NewStoryGrouper(client, prompts, cfg.Limits.StoriesMax, logger),
		Composer:    summarizer.NewComposer(client, prompts, logger),
		Locker:      locker,
	}, cfg.Eliza.Model, cfg.Limits.DigestLockTTL, applog.Component(logger, "digest"))

	if opts.Stages {
		if cfg.RabbitURL == "" {
			return nil, fmt.Errorf("%w: RABBITMQ_URL", ErrNotConfigured)
		}
		a.Stages, err = stages.Dial(cfg.RabbitURL, stages.Queues{
			Extract: cfg.Stages.ExtractQueue,
			Resume:  cfg.Stages.ResumeQueue,
		}, cfg.Stages.Timeout, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = a.Stages.Close() })
		a.Interval = interval.NewService(a.Store, a.Store, a.Stages, a.Stages, cfg.Limits.IntervalConcurrency,
			applog.Component(logger, "interval"))
	}
	ready = true
	return a, nil
}

// Tables переводит конфиг в имена таблиц репозитория.
func Tables(cfg config.AppConfig) repo.Tables {
	return repo.Tables{
		Chats:         cfg.Tables.Chats,
		Messages:      cfg.Tables.Messages,
		DailyTopics:   cfg.Tables.DailyTopics,
		TopicAnalysis: cfg.Tables.TopicAnalysis,
		DailyDigest:   cfg.Tables.DailyDigest,
		PeriodDigest:  cfg.Tables.PeriodDigest,
	}
}

// HealthChecks возвращает проверки подключённых зависимостей для /healthz.
func (a *App) HealthChecks() map[string]httpinfra.Check {
	checks := map[string]httpinfra.Check{}
	if a.Pool != nil {
		checks["postgres"] = a.Pool.Ping
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}
	return checks
}

// Close освобождает подключения в обратном порядке.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
