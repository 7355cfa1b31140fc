package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout формат календарной даты во всех таблицах и идентификаторах.
const DateLayout = "2006-01-02"

// Channel описывает отслеживаемый чат-источник.
type Channel struct {
	ID          int64
	Name        string
	Description string
}

// Topic: кластер обсуждения внутри одного дня канала.
type Topic struct {
	TopicID     string
	ChannelID   int64
	Date        time.Time
	Status      string
	Conclusions string
	Resume      string
	Summary     string
}

// PeriodItemType различает источники элементов периода.
type PeriodItemType string

const (
	// PeriodItemTopic: проекция темы-обсуждения.
	PeriodItemTopic PeriodItemType = "topic"
	// PeriodItemPost: проекция поста канала.
	PeriodItemPost PeriodItemType = "post"
)

// PeriodItem описывает единицу контента периодического дайджеста.
type PeriodItem struct {
	Type        PeriodItemType `json:"type"`
	Date        string         `json:"date"`
	Summary     string         `json:"summary"`
	Status      string         `json:"status"`
	Conclusions string         `json:"conclusions"`
}

// Participant: ключевой участник сюжета.
type Participant struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// StoryStatus итоговый статус сюжета.
type StoryStatus string

const (
	StoryResolved StoryStatus = "resolved"
	StoryDisputed StoryStatus = "disputed"
	StoryDeferred StoryStatus = "deferred"
	StoryUnclear  StoryStatus = "unclear"
)

var storyStatusAliases = map[string]StoryStatus{
	"resolved":  StoryResolved,
	"решено":    StoryResolved,
	"disputed":  StoryDisputed,
	"спор":      StoryDisputed,
	"deferred":  StoryDeferred,
	"отложили":  StoryDeferred,
	"unclear":   StoryUnclear,
	"неясно":    StoryUnclear,
}

// ParseStoryStatus нормализует статус, присланный моделью. Пустая строка и "null"
// дают nil; неизвестные значения считаются неясными.
func ParseStoryStatus(raw string) *StoryStatus {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" || key == "null" {
		return nil
	}
	status, ok := storyStatusAliases[key]
	if !ok {
		status = StoryUnclear
	}
	return &status
}

// Story: ранжированный многодневный сюжет, синтезированный моделью.
// Типизированные поля разбираются нестрого, Raw хранит объект в том виде,
// в каком его прислала модель, и уходит в промпт итогового поста без изменений.
type Story struct {
	Rank            int           `json:"rank"`
	Title           string        `json:"title"`
	DaysCovered     []string      `json:"days_covered"`
	Summary         string        `json:"summary"`
	Evolution       []string      `json:"evolution"`
	FinalStatus     *StoryStatus  `json:"final_status"`
	KeyParticipants []Participant `json:"key_participants"`
	Resume          string        `json:"resume"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON требует JSON-объект. Поля неожиданного типа не считаются ошибкой:
// числа и строки в rank приводятся к int, одиночная строка в списке становится
// списком из одного элемента, участник может быть просто именем.
func (s *Story) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj == nil {
		return errors.New("сюжет должен быть JSON-объектом")
	}
	*s = Story{Raw: append(json.RawMessage(nil), data...)}
	s.Rank = lenientInt(obj["rank"])
	s.Title = lenientString(obj["title"])
	s.Summary = lenientString(obj["summary"])
	s.Resume = lenientString(obj["resume"])
	s.DaysCovered = lenientStrings(obj["days_covered"])
	s.Evolution = lenientStrings(obj["evolution"])
	s.KeyParticipants = lenientParticipants(obj["key_participants"])
	if status, ok := obj["final_status"]; ok {
		if raw := lenientString(status); raw != "" {
			s.FinalStatus = ParseStoryStatus(raw)
		}
	}
	return nil
}

// MarshalJSON отдаёт исходный объект модели, если он есть.
func (s Story) MarshalJSON() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	type plain Story
	return json.Marshal(plain(s))
}

func lenientString(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		return str
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		return num.String()
	}
	return ""
}

func lenientInt(data json.RawMessage) int {
	raw := strings.TrimSpace(lenientString(data))
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

func lenientStrings(data json.RawMessage) []string {
	if len(data) == 0 {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		if one := lenientString(data); one != "" {
			return []string{one}
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if str := lenientString(item); str != "" {
			out = append(out, str)
		}
	}
	return out
}

func lenientParticipants(data json.RawMessage) []Participant {
	if len(data) == 0 {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		if name := lenientString(data); name != "" {
			return []Participant{{Name: name}}
		}
		return nil
	}
	out := make([]Participant, 0, len(list))
	for _, item := range list {
		if name := lenientString(item); name != "" {
			out = append(out, Participant{Name: name})
			continue
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
			continue
		}
		out = append(out, Participant{Name: lenientString(obj["name"]), Role: lenientString(obj["role"])})
	}
	return out
}

// DailyCategories содержит темы дня, разложенные моделью на обсуждения и коммиты.
type DailyCategories struct {
	Discussions []string `json:"discussions"`
	Commitments []string `json:"commitments"`
}

// Empty сообщает, что модель не нашла ни обсуждений, ни коммитов.
func (c DailyCategories) Empty() bool {
	return len(c.Discussions) == 0 && len(c.Commitments) == 0
}

// Window задаёт окно дайджеста: одна дата или пара начало/конец.
type Window struct {
	Start time.Time
	End   time.Time
}

// DayWindow возвращает окно из одной даты.
func DayWindow(date time.Time) Window {
	return Window{Start: date, End: date}
}

// IsDaily сообщает, что окно покрывает ровно одну дату.
func (w Window) IsDaily() bool {
	return w.Start.Format(DateLayout) == w.End.Format(DateLayout)
}

// DigestRecord описывает сохраняемый пользовательский дайджест.
type DigestRecord struct {
	DigestID  string
	ChannelID int64
	Window    Window
	Text      string
}

// DailyDigestID строит ключ дневного дайджеста.
func DailyDigestID(channelID int64, date time.Time) string {
	return fmt.Sprintf("%d_%s", channelID, date.Format(DateLayout))
}

// PeriodDigestID строит ключ дайджеста за период.
func PeriodDigestID(channelID int64, start, end time.Time) string {
	return fmt.Sprintf("%d_%s_%s", channelID, start.Format(DateLayout), end.Format(DateLayout))
}

// Message: сырое сообщение чата из хранилища сообщений.
type Message struct {
	ChatID   int64     `json:"chat_id"`
	Chat     string    `json:"chat"`
	Message  string    `json:"message"`
	Author   string    `json:"author"`
	PostedAt time.Time `json:"dttm"`
}
