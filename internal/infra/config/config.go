package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	TZ          string `envconfig:"TZ" default:"Europe/Moscow"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	Eliza struct {
		Token      string        `envconfig:"ELIZA_TOKEN"`
		AuthScheme string        `envconfig:"ELIZA_AUTH_SCHEME" default:"OAuth"`
		BaseURL    string        `envconfig:"ELIZA_BASE_URL" default:"https://api.eliza.yandex.net"`
		Model      string        `envconfig:"ELIZA_MODEL" default:"yandex"`
		Verify     string        `envconfig:"ELIZA_VERIFY" default:"true"`
		Timeout    time.Duration `envconfig:"ELIZA_TIMEOUT" default:"180s"`
		MaxRetries int           `envconfig:"ELIZA_MAX_RETRIES" default:"3"`
		RetryDelay time.Duration `envconfig:"ELIZA_RETRY_DELAY" default:"5s"`
	} `envconfig:""`

	Prompt struct {
		MaxRunes int `envconfig:"PROMPT_MAX_RUNES" default:"60000"`
	} `envconfig:""`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`
	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Tables struct {
		Chats         string `envconfig:"TABLE_CHATS" default:"tg_chats"`
		Messages      string `envconfig:"TABLE_MESSAGES" default:"tg_raw_enriched"`
		DailyTopics   string `envconfig:"TABLE_DAILY_TOPICS" default:"daily_topics"`
		TopicAnalysis string `envconfig:"TABLE_TOPIC_ANALYSIS" default:"topic_analysis"`
		DailyDigest   string `envconfig:"TABLE_DAILY_DIGEST" default:"daily_digest"`
		PeriodDigest  string `envconfig:"TABLE_PERIOD_DIGEST" default:"custom_date_digest"`
	} `envconfig:""`

	Stages struct {
		ExtractQueue string        `envconfig:"STAGE_EXTRACT_QUEUE" default:"topic_extract"`
		ResumeQueue  string        `envconfig:"STAGE_RESUME_QUEUE" default:"topic_resume"`
		Timeout      time.Duration `envconfig:"STAGE_TIMEOUT" default:"10m"`
	} `envconfig:""`

	Limits struct {
		StoriesMax          int           `envconfig:"STORIES_MAX" default:"10"`
		IntervalConcurrency int           `envconfig:"INTERVAL_CONCURRENCY" default:"1"`
		DigestLockTTL       time.Duration `envconfig:"DIGEST_LOCK_TTL" default:"15m"`
	} `envconfig:""`

	Queues struct {
		Digest        string        `envconfig:"DIGEST_QUEUE_KEY" default:"digest_jobs"`
		PostponeDelay time.Duration `envconfig:"DIGEST_QUEUE_POSTPONE_DELAY" default:"30s"`
	} `envconfig:""`

	Schedule struct {
		Daily      string `envconfig:"SCHEDULE_DAILY" default:"0 5 * * *"`
		Period     string `envconfig:"SCHEDULE_PERIOD"`
		PeriodDays int    `envconfig:"SCHEDULE_PERIOD_DAYS" default:"7"`
	} `envconfig:""`

	Telegram struct {
		Token        string `envconfig:"TG_BOT_TOKEN"`
		NotifyChatID int64  `envconfig:"TG_NOTIFY_CHAT_ID"`
	} `envconfig:""`
}

// Process читает конфиг из окружения.
func Process() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	cfg, err := Process()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
