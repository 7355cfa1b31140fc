package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-digester/internal/adapters/telegram"
	"tg-digester/internal/infra/metrics"
)

const deliveryTTL = 7 * 24 * time.Hour

// sender: подмножество *tgbotapi.BotAPI.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// deduper выполняет функцию не более одного раза на ключ.
type deduper interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) (bool, error)
}

// Notifier доставляет готовые дайджесты в чат Telegram.
type Notifier struct {
	bot   sender
	once  deduper
	limit int
	log   zerolog.Logger
}

// New подключается к Bot API по токену.
func New(token string, once deduper, logger zerolog.Logger) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot api: %w", err)
	}
	return NewNotifier(api, once, logger), nil
}

// NewNotifier создаёт отправителя. once может быть nil, тогда повторная доставка не подавляется.
func NewNotifier(bot sender, once deduper, logger zerolog.Logger) *Notifier {
	return &Notifier{
		bot:   bot,
		once:  once,
		limit: telegram.MessageLimit,
		log:   logger.With().Str("component", "notifier").Logger(),
	}
}

// Deliver отправляет текст в чат частями. Каждая часть доставки с одним и тем же ключом
// отправляется один раз, так что повтор после сбоя досылает только недостающие части.
func (n *Notifier) Deliver(ctx context.Context, chatID int64, key, text string) error {
	parts := telegram.SplitMessage(text, n.limit)
	skipped := 0
	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			return err
		}
		send := func() error { return n.send(chatID, part) }
		if n.once == nil || key == "" {
			if err := send(); err != nil {
				return err
			}
			continue
		}
		partKey := fmt.Sprintf("notify:%s:%d/%d", key, i+1, len(parts))
		sent, err := n.once.Once(ctx, partKey, deliveryTTL, send)
		if err != nil {
			return err
		}
		if !sent {
			skipped++
		}
	}
	if skipped > 0 {
		n.log.Info().Str("key", key).Int64("chat_id", chatID).
			Int("skipped", skipped).Int("parts", len(parts)).
			Msg("часть дайджеста уже доставлена")
	}
	return nil
}

func (n *Notifier) send(chatID int64, part string) error {
	msg := tgbotapi.NewMessage(chatID, part)
	msg.DisableWebPagePreview = true
	start := time.Now()
	_, err := n.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		return fmt.Errorf("отправка в чат %d: %w", chatID, err)
	}
	return nil
}
