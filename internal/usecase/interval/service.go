package interval

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tg-digester/internal/domain"
	"tg-digester/internal/infra/metrics"
)

// Stage обозначает шаг, на котором упала единица работы.
type Stage string

const (
	StageExtract    Stage = "extract"
	StageListTopics Stage = "list_topics"
	StageResume     Stage = "resume"
)

// Failure описывает ошибку одной единицы работы с контекстом.
type Failure struct {
	Stage     Stage
	ChannelID int64
	Day       time.Time
	TopicID   string
	Err       error
}

func (f Failure) String() string {
	s := fmt.Sprintf("%s channel=%d day=%s", f.Stage, f.ChannelID, f.Day.Format(domain.DateLayout))
	if f.TopicID != "" {
		s += " topic=" + f.TopicID
	}
	return s + ": " + f.Err.Error()
}

// Report содержит итог прогона по интервалу.
type Report struct {
	Channels  []int64
	Days      []time.Time
	Units     int
	Extracted int
	Topics    int
	Resumed   int
	Failures  []Failure
}

// OK сообщает, что ни одна единица не упала.
func (r Report) OK() bool { return len(r.Failures) == 0 }

// Request задаёт параметры прогона. ChannelID == nil означает все каналы с сообщениями в интервале.
type Request struct {
	Start     time.Time
	End       time.Time
	ChannelID *int64
	Model     string
}

// Service прогоняет извлечение и резюмирование тем по всем парам (канал, день).
type Service struct {
	messages    domain.MessageRepo
	topics      domain.TopicRepo
	extractor   domain.Extractor
	resumator   domain.Resumator
	concurrency int
	log         zerolog.Logger
}

// NewService создаёт оркестратор. concurrency <= 1 даёт строго последовательный прогон.
func NewService(messages domain.MessageRepo, topics domain.TopicRepo, extractor domain.Extractor, resumator domain.Resumator, concurrency int, logger zerolog.Logger) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{messages: messages, topics: topics, extractor: extractor, resumator: resumator, concurrency: concurrency, log: logger}
}

type unit struct {
	channelID int64
	day       time.Time
}

type unitResult struct {
	done      bool
	extracted bool
	topics    int
	resumed   int
	failures  []Failure
}

// Run обрабатывает интервал. Ошибки отдельных единиц попадают в отчёт и не прерывают прогон;
// ошибка возвращается только при сбое поиска каналов или отмене контекста.
func (s *Service) Run(ctx context.Context, req Request) (Report, error) {
	if req.Start.After(req.End) {
		return Report{}, fmt.Errorf("%w: %s позже %s", domain.ErrInvalidWindow, req.Start.Format(domain.DateLayout), req.End.Format(domain.DateLayout))
	}
	channels, err := s.resolveChannels(ctx, req)
	if err != nil {
		return Report{}, err
	}
	report := Report{Channels: channels, Days: Days(req.Start, req.End)}
	if len(channels) == 0 {
		s.log.Info().Msg("нет каналов с сообщениями в интервале")
		return report, nil
	}

	units := make([]unit, 0, len(channels)*len(report.Days))
	for _, ch := range channels {
		for _, d := range report.Days {
			units = append(units, unit{channelID: ch, day: d})
		}
	}
	results := make([]unitResult, len(units))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, u := range units {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = s.runUnit(ctx, u, req.Model)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if !r.done {
			continue
		}
		report.Units++
		if r.extracted {
			report.Extracted++
		}
		report.Topics += r.topics
		report.Resumed += r.resumed
		report.Failures = append(report.Failures, r.failures...)
	}
	s.log.Info().Int("channels", len(channels)).Int("days", len(report.Days)).Int("units", report.Units).
		Int("topics", report.Topics).Int("resumed", report.Resumed).Int("failures", len(report.Failures)).
		Msg("прогон интервала завершён")
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Service) resolveChannels(ctx context.Context, req Request) ([]int64, error) {
	if req.ChannelID != nil {
		return []int64{*req.ChannelID}, nil
	}
	channels, err := s.messages.ChannelsWithMessages(ctx, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("поиск каналов: %w", err)
	}
	return channels, nil
}

func (s *Service) runUnit(ctx context.Context, u unit, model string) unitResult {
	var res unitResult
	if ctx.Err() != nil {
		return res
	}
	res.done = true
	logger := s.log.With().Int64("channel_id", u.channelID).Str("day", u.day.Format(domain.DateLayout)).Logger()

	if err := s.extractor.Extract(ctx, domain.ExtractRequest{Date: u.day, ChannelID: u.channelID, Model: model}); err != nil {
		res.failures = append(res.failures, s.fail(logger, Failure{Stage: StageExtract, ChannelID: u.channelID, Day: u.day, Err: err}))
		return res
	}
	res.extracted = true

	if ctx.Err() != nil {
		return res
	}
	ids, err := s.topics.ListTopicIDs(ctx, u.channelID, u.day)
	if err != nil {
		res.failures = append(res.failures, s.fail(logger, Failure{Stage: StageListTopics, ChannelID: u.channelID, Day: u.day, Err: err}))
		return res
	}
	res.topics = len(ids)
	logger.Debug().Int("topics", len(ids)).Msg("темы извлечены")

	for _, id := range ids {
		if ctx.Err() != nil {
			return res
		}
		if err := s.resumator.Resume(ctx, domain.ResumeRequest{TopicID: id, Model: model}); err != nil {
			res.failures = append(res.failures, s.fail(logger, Failure{Stage: StageResume, ChannelID: u.channelID, Day: u.day, TopicID: id, Err: err}))
			continue
		}
		res.resumed++
	}
	return res
}

func (s *Service) fail(logger zerolog.Logger, f Failure) Failure {
	metrics.IncIntervalFailure(string(f.Stage))
	event := logger.Warn().Err(f.Err).Str("stage", string(f.Stage))
	if f.TopicID != "" {
		event = event.Str("topic_id", f.TopicID)
	}
	event.Msg("единица интервала пропущена")
	return f
}

// Days перечисляет календарные дни [start, end] по возрастанию.
func Days(start, end time.Time) []time.Time {
	start = truncateDay(start)
	end = truncateDay(end)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
