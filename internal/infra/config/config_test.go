package config

import (
	"testing"
	"time"
)

func TestProcessDefaults(t *testing.T) {
	t.Setenv("ELIZA_TOKEN", "secret")
	t.Setenv("ELIZA_RETRY_DELAY", "2s")

	cfg, err := Process()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if cfg.Eliza.Token != "secret" {
		t.Fatalf("ожидали токен из окружения")
	}
	if cfg.Eliza.MaxRetries != 3 {
		t.Fatalf("ожидали 3 попытки по умолчанию, получили %d", cfg.Eliza.MaxRetries)
	}
	if cfg.Eliza.RetryDelay != 2*time.Second {
		t.Fatalf("ожидали задержку 2s, получили %v", cfg.Eliza.RetryDelay)
	}
	if cfg.Eliza.Timeout != 180*time.Second {
		t.Fatalf("ожидали таймаут 180s, получили %v", cfg.Eliza.Timeout)
	}
	if cfg.Tables.PeriodDigest != "custom_date_digest" {
		t.Fatalf("неожиданная таблица периода: %s", cfg.Tables.PeriodDigest)
	}
	if cfg.Limits.IntervalConcurrency != 1 {
		t.Fatalf("ожидали последовательную обработку по умолчанию")
	}
}
