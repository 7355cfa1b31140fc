package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"tg-digester/internal/adapters/bot"
	"tg-digester/internal/app"
	"tg-digester/internal/infra/config"
	httpinfra "tg-digester/internal/infra/http"
	applog "tg-digester/internal/infra/log"
	"tg-digester/internal/infra/metrics"
	"tg-digester/internal/usecase/jobs"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, app.Options{Queue: true})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: не удалось инициализировать зависимости")
	}
	defer a.Close()

	if moved, err := a.Queue.Recover(ctx); err != nil {
		logger.Error().Err(err).Msg("worker: не удалось вернуть зависшие задачи")
	} else if moved > 0 {
		logger.Warn().Int("jobs", moved).Msg("worker: зависшие задачи возвращены в очередь")
	}

	var notifier jobs.Notifier
	if cfg.Telegram.Token != "" {
		n, err := bot.New(cfg.Telegram.Token, a.Cache, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: не удалось создать бота")
		}
		notifier = n
	} else {
		logger.Warn().Msg("worker: TG_BOT_TOKEN не задан, дайджесты не доставляются")
	}

	srv := httpinfra.NewServer(logger, prometheus.DefaultGatherer, a.HealthChecks())
	go func() {
		if err := srv.Run(ctx, cfg.MetricsAddr); err != nil {
			logger.Error().Err(err).Msg("worker: служебный HTTP сервер остановлен")
		}
	}()

	logger.Info().Msg("worker: запуск обработки очереди")
	jobs.NewWorker(a.Queue, a.Digests, notifier, logger).Run(ctx)
	logger.Info().Msg("worker: остановлен")
}
