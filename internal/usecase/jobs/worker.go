package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tg-digester/internal/domain"
	"tg-digester/internal/infra/metrics"
	"tg-digester/internal/usecase/digest"
)

// MaxDeliveryAttempts: после стольких неудачных попыток задача снимается с очереди.
const MaxDeliveryAttempts = 5

// Builder строит дайджесты.
type Builder interface {
	BuildDaily(ctx context.Context, channelID int64, date time.Time, model string) (digest.Result, error)
	BuildPeriod(ctx context.Context, channelID int64, start, end time.Time, model string) (digest.Result, error)
}

// Notifier доставляет текст дайджеста в чат.
type Notifier interface {
	Deliver(ctx context.Context, chatID int64, key, text string) error
}

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeRetry
	outcomeBusy
)

// Worker читает задачи из очереди и строит по ним дайджесты.
type Worker struct {
	queue    domain.DigestQueue
	builder  Builder
	notifier Notifier
	pause    time.Duration
	log      zerolog.Logger
}

// NewWorker создаёт обработчик очереди. notifier может быть nil.
func NewWorker(queue domain.DigestQueue, builder Builder, notifier Notifier, logger zerolog.Logger) *Worker {
	return &Worker{
		queue:    queue,
		builder:  builder,
		notifier: notifier,
		pause:    time.Second,
		log:      logger.With().Str("component", "worker").Logger(),
	}
}

// Run обрабатывает задачи до отмены контекста.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("ошибка чтения очереди")
			w.sleep(ctx)
			continue
		}
		w.Process(ctx, job, ack)
	}
}

// Process обрабатывает одну задачу и подтверждает её или возвращает в очередь.
func (w *Worker) Process(ctx context.Context, job domain.DigestJob, ack domain.DigestAckFunc) {
	jobLog := w.log.With().
		Str("job_id", job.ID).
		Str("kind", string(job.Kind)).
		Int64("channel_id", job.ChannelID).
		Int("attempt", job.Attempt).
		Int("postponed", job.Postponed).
		Logger()

	out := w.handle(ctx, job, jobLog)
	switch {
	case out == outcomeBusy:
		// дайджест строит другой процесс; попытка не засчитывается
		jobLog.Info().Msg("дайджест занят, задача отложена")
		if err := ack(domain.AckPostpone); err != nil {
			jobLog.Error().Err(err).Msg("не удалось отложить задачу")
		}
		return
	case out == outcomeRetry && job.Attempt+1 < MaxDeliveryAttempts:
		jobLog.Warn().Msg("задача завершилась ошибкой, повторим позже")
		metrics.IncQueueJob("retry")
		if err := ack(domain.AckRetry); err != nil {
			jobLog.Error().Err(err).Msg("не удалось вернуть задачу в очередь")
		}
		return
	case out == outcomeRetry:
		jobLog.Error().Msg("достигнут предел попыток, задача снята")
		metrics.IncQueueJob("dropped")
	}
	if err := ack(domain.AckDone); err != nil {
		jobLog.Error().Err(err).Msg("не удалось подтвердить задачу")
	}
}

func (w *Worker) handle(ctx context.Context, job domain.DigestJob, jobLog zerolog.Logger) outcome {
	var (
		res digest.Result
		err error
	)
	switch job.Kind {
	case domain.DigestKindDaily:
		res, err = w.builder.BuildDaily(ctx, job.ChannelID, job.Date, job.Model)
	case domain.DigestKindPeriod:
		res, err = w.builder.BuildPeriod(ctx, job.ChannelID, job.Start, job.End, job.Model)
	default:
		jobLog.Error().Msg("неизвестный тип задачи, пропускаем")
		return outcomeCompleted
	}
	if err != nil {
		if permanent(err) {
			jobLog.Error().Err(err).Msg("задача не может быть выполнена")
			return outcomeCompleted
		}
		jobLog.Error().Err(err).Msg("ошибка построения дайджеста")
		return outcomeRetry
	}

	jobLog.Info().Str("outcome", string(res.Outcome)).Msg("задача обработана")
	switch res.Outcome {
	case digest.OutcomeBusy:
		return outcomeBusy
	case digest.OutcomeWritten:
	default:
		return outcomeCompleted
	}

	if w.notifier == nil || job.NotifyChatID == 0 {
		return outcomeCompleted
	}
	text := digest.FormatAnnouncement(res.Channel, res.Record)
	if err := w.notifier.Deliver(ctx, job.NotifyChatID, deliveryKey(job, res.Record), text); err != nil {
		jobLog.Error().Err(err).Msg("не удалось доставить дайджест")
		return outcomeRetry
	}
	return outcomeCompleted
}

func deliveryKey(job domain.DigestJob, rec domain.DigestRecord) string {
	if job.ID != "" {
		return job.ID
	}
	return fmt.Sprintf("%s:%d", rec.DigestID, job.NotifyChatID)
}

// permanent отличает ошибки, которые не исправятся повтором.
func permanent(err error) bool {
	return errors.Is(err, domain.ErrInvalidWindow) ||
		errors.Is(err, domain.ErrChannelNotFound) ||
		errors.Is(err, domain.ErrConfiguration) ||
		errors.Is(err, domain.ErrAuthentication) ||
		errors.Is(err, domain.ErrPromptTooLarge)
}

func (w *Worker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.pause):
	}
}
