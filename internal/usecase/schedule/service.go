package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"tg-digester/internal/domain"
	"tg-digester/internal/usecase/interval"
)

// ErrInvalidTimezone возвращается, если указан некорректный часовой пояс.
var ErrInvalidTimezone = errors.New("invalid timezone")

// IntervalRunner прогоняет извлечение и резюмирование по интервалу.
type IntervalRunner interface {
	Run(ctx context.Context, req interval.Request) (interval.Report, error)
}

// Config задаёт параметры плановых запусков.
type Config struct {
	Location     *time.Location
	Model        string
	PeriodDays   int
	NotifyChatID int64
}

// Service ставит плановые задачи: ночной прогон интервала и дайджесты.
type Service struct {
	runner   IntervalRunner
	messages domain.MessageRepo
	queue    domain.DigestQueue
	cfg      Config
	now      func() time.Time
	log      zerolog.Logger
}

// NewService создаёт планировщик.
func NewService(runner IntervalRunner, messages domain.MessageRepo, queue domain.DigestQueue, cfg Config, logger zerolog.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.PeriodDays < 1 {
		cfg.PeriodDays = 7
	}
	return &Service{
		runner:   runner,
		messages: messages,
		queue:    queue,
		cfg:      cfg,
		now:      time.Now,
		log:      logger.With().Str("component", "schedule").Logger(),
	}
}

// yesterday возвращает вчерашнюю календарную дату в часовом поясе планировщика.
func (s *Service) yesterday() time.Time {
	y, m, d := s.now().In(s.cfg.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// RunDaily прогоняет интервал за вчера и ставит дневной дайджест каждому найденному каналу.
func (s *Service) RunDaily(ctx context.Context) error {
	day := s.yesterday()
	report, err := s.runner.Run(ctx, interval.Request{Start: day, End: day, Model: s.cfg.Model})
	if err != nil {
		return fmt.Errorf("прогон интервала %s: %w", day.Format(domain.DateLayout), err)
	}
	for _, f := range report.Failures {
		s.log.Warn().Str("failure", f.String()).Msg("ошибка в ночном прогоне")
	}
	var errs []error
	for _, channelID := range report.Channels {
		job := domain.DigestJob{
			Kind:         domain.DigestKindDaily,
			ChannelID:    channelID,
			Date:         day,
			Model:        s.cfg.Model,
			NotifyChatID: s.cfg.NotifyChatID,
		}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			errs = append(errs, fmt.Errorf("канал %d: %w", channelID, err))
		}
	}
	s.log.Info().
		Str("date", day.Format(domain.DateLayout)).
		Int("channels", len(report.Channels)).
		Int("failures", len(report.Failures)).
		Msg("дневные дайджесты поставлены в очередь")
	return errors.Join(errs...)
}

// RunPeriod ставит дайджест за последние PeriodDays дней каждому каналу с сообщениями.
func (s *Service) RunPeriod(ctx context.Context) error {
	end := s.yesterday()
	start := end.AddDate(0, 0, -(s.cfg.PeriodDays - 1))
	channels, err := s.messages.ChannelsWithMessages(ctx, start, end)
	if err != nil {
		return fmt.Errorf("поиск каналов: %w", err)
	}
	var errs []error
	for _, channelID := range channels {
		job := domain.DigestJob{
			Kind:         domain.DigestKindPeriod,
			ChannelID:    channelID,
			Start:        start,
			End:          end,
			Model:        s.cfg.Model,
			NotifyChatID: s.cfg.NotifyChatID,
		}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			errs = append(errs, fmt.Errorf("канал %d: %w", channelID, err))
		}
	}
	s.log.Info().
		Str("start", start.Format(domain.DateLayout)).
		Str("end", end.Format(domain.DateLayout)).
		Int("channels", len(channels)).
		Msg("дайджесты за период поставлены в очередь")
	return errors.Join(errs...)
}

// Register добавляет задания в cron. Пустое расписание периода отключает его.
func (s *Service) Register(ctx context.Context, c *cron.Cron, dailySpec, periodSpec string) error {
	if _, err := c.AddFunc(dailySpec, s.job(ctx, "daily", s.RunDaily)); err != nil {
		return fmt.Errorf("расписание daily %q: %w", dailySpec, err)
	}
	if strings.TrimSpace(periodSpec) == "" {
		return nil
	}
	if _, err := c.AddFunc(periodSpec, s.job(ctx, "period", s.RunPeriod)); err != nil {
		return fmt.Errorf("расписание period %q: %w", periodSpec, err)
	}
	return nil
}

func (s *Service) job(ctx context.Context, name string, fn func(context.Context) error) func() {
	return func() {
		started := time.Now()
		if err := fn(ctx); err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("плановый запуск завершился ошибкой")
			return
		}
		s.log.Info().Str("job", name).Dur("took", time.Since(started)).Msg("плановый запуск завершён")
	}
}

// ParseLocation загружает часовой пояс, допуская пробелы вместо подчёркиваний и любой регистр.
func ParseLocation(raw string) (*time.Location, error) {
	candidate := strings.ReplaceAll(strings.TrimSpace(raw), " ", "_")
	if candidate == "" {
		return nil, ErrInvalidTimezone
	}
	if loc, err := time.LoadLocation(candidate); err == nil {
		return loc, nil
	}
	parts := strings.Split(strings.ToLower(candidate), "/")
	for i, part := range parts {
		words := strings.Split(part, "_")
		for j, w := range words {
			if w != "" {
				words[j] = strings.ToUpper(w[:1]) + w[1:]
			}
		}
		parts[i] = strings.Join(words, "_")
	}
	if loc, err := time.LoadLocation(strings.Join(parts, "/")); err == nil {
		return loc, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, raw)
}
