package ranker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-digester/internal/adapters/prompt"
	"tg-digester/internal/domain"
	"tg-digester/internal/infra/eliza"
)

type fakeCompleter struct {
	reply string
	calls int
}

func (f *fakeCompleter) Complete(context.Context, string, []eliza.Message) (string, error) {
	f.calls++
	return f.reply, nil
}

func window() domain.Window {
	return domain.Window{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)}
}

func TestGroupCapsStories(t *testing.T) {
	parts := make([]string, 0, 15)
	for i := 1; i <= 15; i++ {
		parts = append(parts, fmt.Sprintf(`{"rank":%d,"title":"t%d","final_status":null}`, i, i))
	}
	client := &fakeCompleter{reply: "[" + strings.Join(parts, ",") + "]"}
	g := NewStoryGrouper(client, prompt.NewBuilder(0, 10), 10, zerolog.Nop())
	stories, err := g.Group(context.Background(), "yandex", window(), domain.Channel{}, []domain.PeriodItem{{Type: domain.PeriodItemTopic}})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(stories) != 10 {
		t.Fatalf("ожидали 10 сюжетов, получили %d", len(stories))
	}
	if stories[0].FinalStatus != nil {
		t.Fatalf("null статус должен остаться nil")
	}
}

func TestGroupEmptyArrayIsMalformed(t *testing.T) {
	client := &fakeCompleter{reply: "[]"}
	g := NewStoryGrouper(client, prompt.NewBuilder(0, 10), 10, zerolog.Nop())
	_, err := g.Group(context.Background(), "yandex", window(), domain.Channel{}, nil)
	var malformed *domain.MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("ожидали MalformedResponseError, получили %v", err)
	}
	if malformed.Raw != "[]" {
		t.Fatalf("ошибка должна хранить сырой ответ")
	}
}

func TestGroupPromptTooLargeSkipsCall(t *testing.T) {
	client := &fakeCompleter{reply: "[]"}
	g := NewStoryGrouper(client, prompt.NewBuilder(100, 10), 10, zerolog.Nop())
	_, err := g.Group(context.Background(), "yandex", window(), domain.Channel{}, nil)
	if !errors.Is(err, domain.ErrPromptTooLarge) {
		t.Fatalf("ожидали ErrPromptTooLarge, получили %v", err)
	}
	if client.calls != 0 {
		t.Fatalf("модель не должна вызываться при превышении размера")
	}
}
