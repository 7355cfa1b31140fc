package digest

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"tg-digester/internal/domain"
	"tg-digester/internal/infra/metrics"
)

// minResumeRunes: тема считается содержательной, если её резюме длиннее этого порога.
const minResumeRunes = 10

// Outcome описывает итог одного запуска конвейера. Все исходы, кроме OutcomeWritten, ничего не пишут.
type Outcome string

const (
	OutcomeWritten      Outcome = "written"
	OutcomeNoTopics     Outcome = "no_topics"
	OutcomeNoMeaningful Outcome = "no_meaningful"
	OutcomeEmptyDigest  Outcome = "empty_digest"
	OutcomeNoItems      Outcome = "no_items"
	OutcomeBusy         Outcome = "busy"
)

// Result описывает исход запуска и, для OutcomeWritten, сохранённую запись.
type Result struct {
	Outcome Outcome
	Channel domain.Channel
	Record  domain.DigestRecord
}

// Categorizer выполняет стадию категоризации тем дня.
type Categorizer interface {
	Categorize(ctx context.Context, model string, date time.Time, channel domain.Channel, topics []domain.Topic) (domain.DailyCategories, error)
}

// StoryGrouper выполняет стадию группировки элементов периода в сюжеты.
type StoryGrouper interface {
	Group(ctx context.Context, model string, window domain.Window, channel domain.Channel, items []domain.PeriodItem) ([]domain.Story, error)
}

// Composer выполняет стадию написания итогового поста.
type Composer interface {
	Compose(ctx context.Context, model string, window domain.Window, stories []domain.Story) (string, error)
}

// Deps собирает зависимости сервиса. Posts и Locker необязательны.
type Deps struct {
	Channels    domain.ChannelRepo
	Topics      domain.TopicRepo
	Digests     domain.DigestRepo
	Categorizer Categorizer
	Grouper     StoryGrouper
	Composer    Composer
	Posts       domain.PostSource
	Locker      domain.Locker
}

// Service строит дневные дайджесты и дайджесты за период.
type Service struct {
	deps    Deps
	model   string
	lockTTL time.Duration
	log     zerolog.Logger
}

// NewService создаёт сервис дайджестов. model используется, когда вызывающий не указал модель.
func NewService(deps Deps, model string, lockTTL time.Duration, logger zerolog.Logger) *Service {
	if lockTTL <= 0 {
		lockTTL = 15 * time.Minute
	}
	return &Service{deps: deps, model: model, lockTTL: lockTTL, log: logger}
}

func (s *Service) modelOrDefault(model string) string {
	if strings.TrimSpace(model) == "" {
		return s.model
	}
	return model
}

// BuildDaily строит дневной дайджест канала и сохраняет его под ключом {channel_id}_{date}.
func (s *Service) BuildDaily(ctx context.Context, channelID int64, date time.Time, model string) (res Result, err error) {
	start := time.Now()
	digestID := domain.DailyDigestID(channelID, date)
	logger := s.log.With().Str("digest_id", digestID).Logger()
	defer func() { s.observe(domain.DigestKindDaily, channelID, start, res, err) }()

	unlock, ok, err := s.lock(ctx, digestID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		logger.Info().Msg("дайджест уже строится другим процессом; пропуск")
		return Result{Outcome: OutcomeBusy}, nil
	}
	defer unlock()

	channel, err := s.deps.Channels.GetChannel(ctx, channelID)
	if err != nil {
		return Result{}, fmt.Errorf("получение канала: %w", err)
	}
	topics, err := s.deps.Topics.ListTopics(ctx, channelID, date)
	if err != nil {
		return Result{}, fmt.Errorf("получение тем: %w", err)
	}
	if len(topics) == 0 {
		logger.Info().Msg("нечего дайджестить: нет тем")
		return Result{Outcome: OutcomeNoTopics, Channel: channel}, nil
	}
	meaningful := filterMeaningful(topics)
	if len(meaningful) == 0 {
		logger.Info().Int("topics", len(topics)).Msg("нет содержательных тем для дайджеста; пропуск")
		return Result{Outcome: OutcomeNoMeaningful, Channel: channel}, nil
	}

	categories, err := s.deps.Categorizer.Categorize(ctx, s.modelOrDefault(model), date, channel, meaningful)
	if err != nil {
		return Result{}, err
	}
	if categories.Empty() {
		logger.Info().Msg("модель вернула пустой дайджест; пропуск сохранения")
		return Result{Outcome: OutcomeEmptyDigest, Channel: channel}, nil
	}

	rec := domain.DigestRecord{
		DigestID:  digestID,
		ChannelID: channelID,
		Window:    domain.DayWindow(date),
		Text:      FormatDaily(categories),
	}
	if err := s.deps.Digests.UpsertDailyDigest(ctx, rec); err != nil {
		return Result{}, fmt.Errorf("сохранение дайджеста: %w", err)
	}
	logger.Info().Str("channel", channel.Name).Str("text", rec.Text).Msg("дневной дайджест сохранён")
	return Result{Outcome: OutcomeWritten, Channel: channel, Record: rec}, nil
}

// BuildPeriod строит дайджест за [start, end] и сохраняет его под ключом {channel_id}_{start}_{end}.
func (s *Service) BuildPeriod(ctx context.Context, channelID int64, startDate, endDate time.Time, model string) (res Result, err error) {
	if startDate.After(endDate) {
		return Result{}, fmt.Errorf("%w: %s позже %s", domain.ErrInvalidWindow, startDate.Format(domain.DateLayout), endDate.Format(domain.DateLayout))
	}
	start := time.Now()
	window := domain.Window{Start: startDate, End: endDate}
	digestID := domain.PeriodDigestID(channelID, startDate, endDate)
	logger := s.log.With().Str("digest_id", digestID).Logger()
	defer func() { s.observe(domain.DigestKindPeriod, channelID, start, res, err) }()

	unlock, ok, err := s.lock(ctx, digestID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		logger.Info().Msg("дайджест уже строится другим процессом; пропуск")
		return Result{Outcome: OutcomeBusy}, nil
	}
	defer unlock()

	channel, err := s.deps.Channels.GetChannel(ctx, channelID)
	if err != nil {
		return Result{}, fmt.Errorf("получение канала: %w", err)
	}
	items, err := s.deps.Topics.ListPeriodItems(ctx, channelID, startDate, endDate)
	if err != nil {
		return Result{}, fmt.Errorf("получение тем периода: %w", err)
	}
	if s.deps.Posts != nil {
		posts, err := s.deps.Posts.ListPostItems(ctx, channelID, startDate, endDate)
		if err != nil {
			return Result{}, fmt.Errorf("получение постов периода: %w", err)
		}
		items = append(items, posts...)
	}
	if len(items) == 0 {
		logger.Info().Msg("нет контента за этот период")
		return Result{Outcome: OutcomeNoItems, Channel: channel}, nil
	}

	model = s.modelOrDefault(model)
	stories, err := s.deps.Grouper.Group(ctx, model, window, channel, items)
	if err != nil {
		return Result{}, err
	}
	text, err := s.deps.Composer.Compose(ctx, model, window, stories)
	if err != nil {
		return Result{}, err
	}
	if text == "" {
		logger.Info().Msg("модель вернула пустой пост; пропуск сохранения")
		return Result{Outcome: OutcomeEmptyDigest, Channel: channel}, nil
	}

	rec := domain.DigestRecord{DigestID: digestID, ChannelID: channelID, Window: window, Text: text}
	if err := s.deps.Digests.UpsertPeriodDigest(ctx, rec); err != nil {
		return Result{}, fmt.Errorf("сохранение дайджеста: %w", err)
	}
	logger.Info().Str("channel", channel.Name).Int("items", len(items)).Int("stories", len(stories)).Str("text", text).Msg("дайджест за период сохранён")
	return Result{Outcome: OutcomeWritten, Channel: channel, Record: rec}, nil
}

func (s *Service) lock(ctx context.Context, key string) (func(), bool, error) {
	if s.deps.Locker == nil {
		return func() {}, true, nil
	}
	unlock, ok, err := s.deps.Locker.TryLock(ctx, key, s.lockTTL)
	if err != nil {
		return nil, false, fmt.Errorf("блокировка %s: %w", key, err)
	}
	return unlock, ok, nil
}

func (s *Service) observe(kind domain.DigestKind, channelID int64, start time.Time, res Result, err error) {
	outcome := string(res.Outcome)
	if err != nil {
		outcome = "error"
	}
	metrics.ObserveDigest(string(kind), outcome, channelID, start)
}

func filterMeaningful(topics []domain.Topic) []domain.Topic {
	out := make([]domain.Topic, 0, len(topics))
	for _, t := range topics {
		if utf8.RuneCountInString(strings.TrimSpace(t.Resume)) > minResumeRunes {
			out = append(out, t)
		}
	}
	return out
}
