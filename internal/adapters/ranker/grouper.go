package ranker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"tg-digester/internal/adapters/prompt"
	"tg-digester/internal/adapters/reply"
	"tg-digester/internal/domain"
	"tg-digester/internal/infra/eliza"
)

type completer interface {
	Complete(ctx context.Context, model string, messages []eliza.Message) (string, error)
}

// StoryGrouper группирует элементы периода в ранжированные сюжеты.
type StoryGrouper struct {
	client   completer
	prompts  *prompt.Builder
	maxItems int
	log      zerolog.Logger
}

// NewStoryGrouper создаёт стадию группировки.
func NewStoryGrouper(client completer, prompts *prompt.Builder, maxItems int, logger zerolog.Logger) *StoryGrouper {
	if maxItems <= 0 {
		maxItems = reply.DefaultMaxStories
	}
	return &StoryGrouper{client: client, prompts: prompts, maxItems: maxItems, log: logger}
}

// Group возвращает от 1 до maxItems сюжетов в порядке модели.
// Пустой массив или ответ другой формы дают *domain.MalformedResponseError.
func (g *StoryGrouper) Group(ctx context.Context, model string, window domain.Window, channel domain.Channel, items []domain.PeriodItem) ([]domain.Story, error) {
	messages, err := g.prompts.Period(window, channel, items)
	if err != nil {
		return nil, err
	}
	raw, err := g.client.Complete(ctx, model, messages)
	if err != nil {
		return nil, fmt.Errorf("группировка сюжетов: %w", err)
	}
	stories, err := reply.ParseStories(raw, g.maxItems).Unpack()
	if err != nil {
		g.log.Warn().Err(err).Int64("channel_id", channel.ID).Msg("модель не вернула сюжеты")
		return nil, err
	}
	g.log.Debug().Int("items", len(items)).Int("stories", len(stories)).Msg("сюжеты сгруппированы")
	return stories, nil
}
