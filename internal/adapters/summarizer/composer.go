package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"tg-digester/internal/adapters/prompt"
	"tg-digester/internal/domain"
)

// Composer пишет итоговый пост за период по готовым сюжетам.
type Composer struct {
	client  completer
	prompts *prompt.Builder
	log     zerolog.Logger
}

// NewComposer создаёт стадию композиции.
func NewComposer(client completer, prompts *prompt.Builder, logger zerolog.Logger) *Composer {
	return &Composer{client: client, prompts: prompts, log: logger}
}

// Compose возвращает текст поста без обрамляющих пробелов. Текст модели не меняется.
func (c *Composer) Compose(ctx context.Context, model string, window domain.Window, stories []domain.Story) (string, error) {
	messages, err := c.prompts.Post(window, stories)
	if err != nil {
		return "", err
	}
	raw, err := c.client.Complete(ctx, model, messages)
	if err != nil {
		return "", fmt.Errorf("композиция поста: %w", err)
	}
	text := strings.TrimSpace(raw)
	c.log.Debug().Int("stories", len(stories)).Int("runes", len([]rune(text))).Msg("пост за период готов")
	return text, nil
}
