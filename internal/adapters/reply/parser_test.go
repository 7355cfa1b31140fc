package reply

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"tg-digester/internal/domain"
)

func TestParseDailyStrict(t *testing.T) {
	out := ParseDaily(`{"discussions":["• релиз"],"commitments":[]}`)
	got, ok := out.Value()
	if !ok {
		t.Fatalf("не ожидали ошибку: %v", out.Err())
	}
	if len(got.Discussions) != 1 || got.Discussions[0] != "• релиз" || len(got.Commitments) != 0 {
		t.Fatalf("неожиданный результат %+v", got)
	}
	if got.Empty() {
		t.Fatalf("ответ с обсуждением не пустой")
	}
}

func TestParseDailyStripsFenceAndCommentary(t *testing.T) {
	raw := "Вот дайджест:\n```JSON\n{\"discussions\":[],\"commitments\":[\"• Иван починит CI к пятнице\"]}\n```\nУдачи!"
	got, err := ParseDaily(raw).Unpack()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(got.Commitments) != 1 {
		t.Fatalf("ожидали один коммит, получили %+v", got)
	}
}

func TestParseDailyMissingKeysIsEmpty(t *testing.T) {
	got, err := ParseDaily(`{}`).Unpack()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !got.Empty() {
		t.Fatalf("ожидали пустой дайджест")
	}
}

func TestParseDailyRejectsWrongShape(t *testing.T) {
	cases := []string{
		`["• a"]`,
		`{"discussions":"• a"}`,
		`{"commitments":[1,2]}`,
		`не JSON вовсе`,
		`null`,
	}
	for _, raw := range cases {
		out := ParseDaily(raw)
		if out.IsOk() {
			t.Fatalf("ожидали Malformed для %q", raw)
		}
		if !errors.Is(out.Err(), domain.ErrMalformedResponse) {
			t.Fatalf("ожидали ErrMalformedResponse для %q, получили %v", raw, out.Err())
		}
		if out.Raw() != raw {
			t.Fatalf("Malformed должен хранить сырой ответ")
		}
	}
}

func storiesJSON(n int) string {
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, fmt.Sprintf(`{"rank":%d,"title":"сюжет %d","final_status":"решено"}`, i, i))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func TestParseStoriesTruncates(t *testing.T) {
	got, err := ParseStories(storiesJSON(15), 10).Unpack()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("ожидали 10 сюжетов, получили %d", len(got))
	}
	if got[0].Rank != 1 || got[9].Rank != 10 {
		t.Fatalf("должны остаться первые 10 сюжетов")
	}
	if got[0].FinalStatus == nil || *got[0].FinalStatus != domain.StoryResolved {
		t.Fatalf("статус решено должен стать resolved")
	}
}

func TestParseStoriesAcceptsFencedArray(t *testing.T) {
	raw := "```json\n" + storiesJSON(2) + "\n```"
	got, err := ParseStories(raw, 10).Unpack()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ожидали 2 сюжета, получили %d", len(got))
	}
}

func TestParseStoriesRejectsEmptyAndObject(t *testing.T) {
	for _, raw := range []string{`[]`, `{"rank":1}`, ``} {
		if out := ParseStories(raw, 10); out.IsOk() {
			t.Fatalf("ожидали Malformed для %q", raw)
		}
	}
}

func TestParseStoriesToleratesFieldTypes(t *testing.T) {
	cases := []string{
		`[{"rank":1.0,"title":"Релиз"}]`,
		`[{"rank":"1","title":"Релиз"}]`,
		`[{"rank":1,"key_participants":["Иван"]}]`,
		`[{"rank":1,"days_covered":"2024-01-10"}]`,
		`[{"rank":1,"evolution":"сначала спорили, потом договорились"}]`,
		`[{"rank":1,"final_status":{"value":"решено"}}]`,
		`[{"rank":1,"confidence":0.7}]`,
	}
	for _, raw := range cases {
		got, err := ParseStories(raw, 10).Unpack()
		if err != nil {
			t.Fatalf("%s: не ожидали ошибку: %v", raw, err)
		}
		if len(got) != 1 || got[0].Rank != 1 {
			t.Fatalf("%s: неожиданный результат %+v", raw, got)
		}
	}
}

func TestParseStoriesLenientFields(t *testing.T) {
	raw := `[{"rank":"2","key_participants":["Иван",{"name":"Олег","role":"ревьюер"}],"days_covered":"2024-01-10","evolution":"шаг"}]`
	got, err := ParseStories(raw, 10).Unpack()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	s := got[0]
	if s.Rank != 2 {
		t.Fatalf("rank: ожидали 2, получили %d", s.Rank)
	}
	if len(s.KeyParticipants) != 2 || s.KeyParticipants[0].Name != "Иван" || s.KeyParticipants[1].Role != "ревьюер" {
		t.Fatalf("участники разобраны неверно: %+v", s.KeyParticipants)
	}
	if len(s.DaysCovered) != 1 || s.DaysCovered[0] != "2024-01-10" || len(s.Evolution) != 1 {
		t.Fatalf("одиночная строка должна стать списком: %+v", s)
	}
}

func TestParseStoriesKeepsModelObjectVerbatim(t *testing.T) {
	raw := `[{"rank":1,"final_status":"решено","confidence":0.7}]`
	got, err := ParseStories(raw, 10).Unpack()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	out, err := json.Marshal(got[0])
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if string(out) != `{"rank":1,"final_status":"решено","confidence":0.7}` {
		t.Fatalf("сюжет должен сериализоваться как прислала модель, получили %s", out)
	}
}

func TestParseStoriesRejectsNonObjectEntries(t *testing.T) {
	for _, raw := range []string{`["сюжет"]`, `[1,2]`, `[null]`} {
		out := ParseStories(raw, 10)
		if out.IsOk() {
			t.Fatalf("ожидали Malformed для %q", raw)
		}
		if !errors.Is(out.Err(), domain.ErrMalformedResponse) {
			t.Fatalf("ожидали ErrMalformedResponse для %q, получили %v", raw, out.Err())
		}
	}
}
