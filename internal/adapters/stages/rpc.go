package stages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"tg-digester/internal/domain"
	"tg-digester/internal/infra/metrics"
)

// directReplyTo: псевдо-очередь RabbitMQ для ответов без объявления собственной очереди.
const directReplyTo = "amq.rabbitmq.reply-to"

// ErrStageFailed: стадия обработала запрос и вернула отказ.
var ErrStageFailed = errors.New("стадия вернула ошибку")

// channel: подмножество *amqp.Channel, нужное клиенту.
type channel interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Queues перечисляет очереди стадий.
type Queues struct {
	Extract string
	Resume  string
}

// Client вызывает внешние стадии извлечения и резюмирования как RPC поверх RabbitMQ.
type Client struct {
	open    func() (channel, error)
	close   func() error
	queues  Queues
	timeout time.Duration
	log     zerolog.Logger
}

var (
	_ domain.Extractor = (*Client)(nil)
	_ domain.Resumator = (*Client)(nil)
)

// Dial подключается к брокеру.
func Dial(url string, queues Queues, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("подключение к rabbitmq: %w", err)
	}
	open := func() (channel, error) { return conn.Channel() }
	c := newClient(open, queues, timeout, logger)
	c.close = conn.Close
	return c, nil
}

func newClient(open func() (channel, error), queues Queues, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		open:    open,
		close:   func() error { return nil },
		queues:  queues,
		timeout: timeout,
		log:     logger.With().Str("component", "stages").Logger(),
	}
}

// Close закрывает соединение с брокером.
func (c *Client) Close() error {
	return c.close()
}

type extractRequest struct {
	Date      string `json:"date"`
	ChannelID int64  `json:"channel_id"`
	Model     string `json:"model,omitempty"`
}

type resumeRequest struct {
	TopicID string `json:"topic_id"`
	Model   string `json:"model,omitempty"`
}

type reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Extract запускает извлечение тем за (канал, день) и ждёт завершения.
func (c *Client) Extract(ctx context.Context, req domain.ExtractRequest) error {
	return c.call(ctx, c.queues.Extract, extractRequest{
		Date:      req.Date.Format(domain.DateLayout),
		ChannelID: req.ChannelID,
		Model:     req.Model,
	})
}

// Resume запускает резюмирование темы и ждёт завершения.
func (c *Client) Resume(ctx context.Context, req domain.ResumeRequest) error {
	return c.call(ctx, c.queues.Resume, resumeRequest{TopicID: req.TopicID, Model: req.Model})
}

func (c *Client) call(ctx context.Context, queue string, payload any) (err error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() { metrics.ObserveNetworkRequest("rabbitmq", "rpc", queue, start, err) }()

	ch, err := c.open()
	if err != nil {
		return fmt.Errorf("открытие канала: %w", err)
	}
	defer ch.Close()

	// direct reply-to требует autoAck и подписки до публикации
	deliveries, err := ch.Consume(directReplyTo, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("подписка на ответы: %w", err)
	}

	corrID := uuid.NewString()
	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: corrID,
		ReplyTo:       directReplyTo,
		Timestamp:     time.Now(),
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("публикация в %s: %w", queue, err)
	}
	c.log.Debug().Str("queue", queue).Str("correlation_id", corrID).Msg("запрос стадии отправлен")

	return awaitReply(ctx, deliveries, corrID)
}

// awaitReply ждёт ответ с нужным correlation id; чужие ответы пропускаются.
func awaitReply(ctx context.Context, deliveries <-chan amqp.Delivery, corrID string) error {
	for {
		select {
		case <-ctx.Done():
			return &domain.TransientError{Err: fmt.Errorf("ожидание ответа стадии: %w", ctx.Err())}
		case d, ok := <-deliveries:
			if !ok {
				return &domain.TransientError{Err: errors.New("канал ответов закрыт")}
			}
			if d.CorrelationId != corrID {
				continue
			}
			return decodeReply(d.Body)
		}
	}
}

func decodeReply(body []byte) error {
	var r reply
	if err := json.Unmarshal(body, &r); err != nil {
		return fmt.Errorf("разбор ответа стадии: %w", err)
	}
	if !r.OK {
		msg := r.Error
		if msg == "" {
			msg = "без описания"
		}
		return fmt.Errorf("%w: %s", ErrStageFailed, msg)
	}
	return nil
}
