package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tg-digester/internal/adapters/prompt"
	"tg-digester/internal/adapters/reply"
	"tg-digester/internal/domain"
	"tg-digester/internal/infra/eliza"
)

type completer interface {
	Complete(ctx context.Context, model string, messages []eliza.Message) (string, error)
}

// Categorizer раскладывает темы дня на обсуждения и коммиты с помощью модели.
type Categorizer struct {
	client  completer
	prompts *prompt.Builder
	log     zerolog.Logger
}

// NewCategorizer создаёт стадию категоризации.
func NewCategorizer(client completer, prompts *prompt.Builder, logger zerolog.Logger) *Categorizer {
	return &Categorizer{client: client, prompts: prompts, log: logger}
}

// Categorize отправляет темы в модель и разбирает ответ. Пункты без текста отбрасываются.
func (c *Categorizer) Categorize(ctx context.Context, model string, date time.Time, channel domain.Channel, topics []domain.Topic) (domain.DailyCategories, error) {
	messages, err := c.prompts.Daily(date, channel, topics)
	if err != nil {
		return domain.DailyCategories{}, err
	}
	raw, err := c.client.Complete(ctx, model, messages)
	if err != nil {
		return domain.DailyCategories{}, fmt.Errorf("категоризация тем: %w", err)
	}
	parsed, err := reply.ParseDaily(raw).Unpack()
	if err != nil {
		c.log.Warn().Err(err).Int64("channel_id", channel.ID).Str("raw", clipRunes(raw, 500)).Msg("модель вернула некорректный JSON")
		return domain.DailyCategories{}, err
	}
	return domain.DailyCategories{
		Discussions: filterValues(parsed.Discussions),
		Commitments: filterValues(parsed.Commitments),
	}, nil
}

func filterValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func clipRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
