package main

import (
	"context"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"tg-digester/internal/app"
	"tg-digester/internal/infra/config"
	httpinfra "tg-digester/internal/infra/http"
	applog "tg-digester/internal/infra/log"
	"tg-digester/internal/infra/metrics"
	"tg-digester/internal/usecase/schedule"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := schedule.ParseLocation(cfg.TZ)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: неверный TZ")
	}

	a, err := app.New(ctx, cfg, logger, app.Options{Stages: true, Queue: true, Location: loc})
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: не удалось инициализировать зависимости")
	}
	defer a.Close()

	svc := schedule.NewService(a.Interval, a.Store, a.Queue, schedule.Config{
		Location:     loc,
		Model:        cfg.Eliza.Model,
		PeriodDays:   cfg.Schedule.PeriodDays,
		NotifyChatID: cfg.Telegram.NotifyChatID,
	}, logger)

	c := cron.New(cron.WithLocation(loc))
	if err := svc.Register(ctx, c, cfg.Schedule.Daily, cfg.Schedule.Period); err != nil {
		logger.Fatal().Err(err).Msg("scheduler: неверное расписание")
	}

	srv := httpinfra.NewServer(logger, prometheus.DefaultGatherer, a.HealthChecks())
	go func() {
		if err := srv.Run(ctx, cfg.MetricsAddr); err != nil {
			logger.Error().Err(err).Msg("scheduler: служебный HTTP сервер остановлен")
		}
	}()

	c.Start()
	logger.Info().Str("daily", cfg.Schedule.Daily).Str("period", cfg.Schedule.Period).Str("tz", loc.String()).Msg("scheduler: запущен")
	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info().Msg("scheduler: остановлен")
}
