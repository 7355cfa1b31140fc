package reply

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"tg-digester/internal/domain"
)

// DefaultMaxStories: сколько сюжетов остаётся после разбора по умолчанию.
const DefaultMaxStories = 10

var fenceRe = regexp.MustCompile("(?i)```[a-z]*")

// ParseDaily разбирает ответ категоризации: объект с массивами строк discussions/commitments.
func ParseDaily(raw string) Outcome[domain.DailyCategories] {
	var obj map[string]json.RawMessage
	if err := decode(raw, &obj); err != nil {
		return Malformed[domain.DailyCategories](raw, fmt.Errorf("ожидался JSON-объект: %w", err))
	}
	if obj == nil {
		return Malformed[domain.DailyCategories](raw, errors.New("ожидался JSON-объект, получили null"))
	}
	var out domain.DailyCategories
	var err error
	if out.Discussions, err = stringList(obj, "discussions"); err != nil {
		return Malformed[domain.DailyCategories](raw, err)
	}
	if out.Commitments, err = stringList(obj, "commitments"); err != nil {
		return Malformed[domain.DailyCategories](raw, err)
	}
	return Ok(out)
}

func stringList(obj map[string]json.RawMessage, key string) ([]string, error) {
	data, ok := obj[key]
	if !ok || string(data) == "null" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("поле %s должно быть массивом строк: %w", key, err)
	}
	return list, nil
}

// ParseStories разбирает ответ группировки: непустой JSON-массив сюжетов, обрезанный до max.
func ParseStories(raw string, max int) Outcome[[]domain.Story] {
	if max <= 0 {
		max = DefaultMaxStories
	}
	var stories []domain.Story
	if err := decode(raw, &stories); err != nil {
		return Malformed[[]domain.Story](raw, fmt.Errorf("ожидался JSON-массив сюжетов: %w", err))
	}
	if len(stories) == 0 {
		return Malformed[[]domain.Story](raw, errors.New("ответ модели должен быть непустым JSON-массивом"))
	}
	if len(stories) > max {
		stories = stories[:max]
	}
	return Ok(stories)
}

// decode сначала разбирает ответ строго, затем один раз после очистки от обрамления.
func decode(raw string, v any) error {
	err := json.Unmarshal([]byte(raw), v)
	if err == nil {
		return nil
	}
	cleaned := clean(raw)
	if cleaned == "" {
		return err
	}
	return json.Unmarshal([]byte(cleaned), v)
}

// clean убирает markdown-ограждения и текст до первой открывающей и после последней
// закрывающей скобки.
func clean(raw string) string {
	s := strings.TrimSpace(fenceRe.ReplaceAllString(raw, ""))
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(s, closer)
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}
