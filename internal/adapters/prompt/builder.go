package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"tg-digester/internal/domain"
	"tg-digester/internal/infra/eliza"
)

// Имена шаблонов.
const (
	NameDaily  = "daily_categorize"
	NamePeriod = "period_group"
	NamePost   = "period_compose"
)

const (
	templateVersion = "v1"
	postDateLayout  = "02 Jan"
	defaultStories  = 10
)

// Template описывает версионированный шаблон промпта с объявленным набором слотов.
type Template struct {
	Name    string
	Version string
	Slots   []string
	tmpl    *template.Template
}

func mustTemplate(name, text string, slots ...string) *Template {
	t := template.Must(template.New(name).Option("missingkey=error").Parse(text))
	return &Template{Name: name, Version: templateVersion, Slots: slots, tmpl: t}
}

// Render подставляет значения слотов. Лишний или отсутствующий слот считается ошибкой.
func (t *Template) Render(data map[string]any) (string, error) {
	declared := make(map[string]struct{}, len(t.Slots))
	for _, s := range t.Slots {
		declared[s] = struct{}{}
	}
	for key := range data {
		if _, ok := declared[key]; !ok {
			return "", fmt.Errorf("шаблон %s/%s: неизвестный слот %q", t.Name, t.Version, key)
		}
	}
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("шаблон %s/%s: %w", t.Name, t.Version, err)
	}
	return buf.String(), nil
}

// Builder собирает промпты стадий дайджеста и проверяет их размер.
type Builder struct {
	maxRunes   int
	maxStories int
	daily      *Template
	period     *Template
	post       *Template
}

// NewBuilder создаёт билдер. maxRunes <= 0 отключает проверку размера.
func NewBuilder(maxRunes, maxStories int) *Builder {
	if maxStories <= 0 {
		maxStories = defaultStories
	}
	return &Builder{
		maxRunes:   maxRunes,
		maxStories: maxStories,
		daily:      mustTemplate(NameDaily, dailyText, "date", "channel_name", "channel_description", "input_payload"),
		period:     mustTemplate(NamePeriod, periodText, "start_date", "end_date", "channel_name", "channel_description", "items_json", "max_stories"),
		post:       mustTemplate(NamePost, postText, "start", "end", "stories_json", "max_stories"),
	}
}

// Templates возвращает все шаблоны билдера.
func (b *Builder) Templates() []*Template {
	return []*Template{b.daily, b.period, b.post}
}

type dailyTopic struct {
	Status      string `json:"status"`
	Conclusions string `json:"conclusions"`
	Resume      string `json:"resume"`
}

// Daily строит промпт категоризации тем за день.
func (b *Builder) Daily(date time.Time, channel domain.Channel, topics []domain.Topic) ([]eliza.Message, error) {
	payload := make([]dailyTopic, 0, len(topics))
	for _, t := range topics {
		payload = append(payload, dailyTopic{Status: t.Status, Conclusions: t.Conclusions, Resume: t.Resume})
	}
	body, err := indentJSON(payload)
	if err != nil {
		return nil, err
	}
	return b.build(b.daily, map[string]any{
		"date":                date.Format(domain.DateLayout),
		"channel_name":        channel.Name,
		"channel_description": channel.Description,
		"input_payload":       body,
	})
}

// Period строит промпт группировки элементов периода в сюжеты.
func (b *Builder) Period(window domain.Window, channel domain.Channel, items []domain.PeriodItem) ([]eliza.Message, error) {
	if items == nil {
		items = []domain.PeriodItem{}
	}
	body, err := indentJSON(map[string][]domain.PeriodItem{"items": items})
	if err != nil {
		return nil, err
	}
	return b.build(b.period, map[string]any{
		"start_date":          window.Start.Format(domain.DateLayout),
		"end_date":            window.End.Format(domain.DateLayout),
		"channel_name":        channel.Name,
		"channel_description": channel.Description,
		"items_json":          body,
		"max_stories":         b.maxStories,
	})
}

// Post строит промпт итогового поста по сюжетам.
func (b *Builder) Post(window domain.Window, stories []domain.Story) ([]eliza.Message, error) {
	body, err := indentJSON(stories)
	if err != nil {
		return nil, err
	}
	return b.build(b.post, map[string]any{
		"start":        window.Start.Format(postDateLayout),
		"end":          window.End.Format(postDateLayout),
		"stories_json": body,
		"max_stories":  b.maxStories,
	})
}

func (b *Builder) build(t *Template, data map[string]any) ([]eliza.Message, error) {
	text, err := t.Render(data)
	if err != nil {
		return nil, err
	}
	if b.maxRunes > 0 {
		if n := utf8.RuneCountInString(text); n > b.maxRunes {
			return nil, fmt.Errorf("%w: %s/%s: %d символов при лимите %d", domain.ErrPromptTooLarge, t.Name, t.Version, n, b.maxRunes)
		}
	}
	return []eliza.Message{{Role: eliza.RoleUser, Content: text}}, nil
}

func indentJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("сериализация данных промпта: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
