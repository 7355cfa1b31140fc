package digest

import (
	"strings"
	"testing"
	"time"

	"tg-digester/internal/domain"
)

func TestFormatDailyBothBlocks(t *testing.T) {
	text := FormatDaily(domain.DailyCategories{
		Discussions: []string{"• релиз", "• CI"},
		Commitments: []string{"• Иван починит тесты к пятнице"},
	})
	want := "🗣️ ОБСУЖДЕНИЯ:\n  • релиз\n  • CI\n\n📋 КОММИТЫ:\n  • Иван починит тесты к пятнице"
	if text != want {
		t.Fatalf("неожиданный текст:\n%q\nожидали:\n%q", text, want)
	}
}

func TestFormatDailyOnlyCommitments(t *testing.T) {
	text := FormatDaily(domain.DailyCategories{Commitments: []string{"• a"}})
	if strings.Contains(text, discussionsHeader) {
		t.Fatalf("пустой блок обсуждений не должен выводиться: %q", text)
	}
	if text != "📋 КОММИТЫ:\n  • a" {
		t.Fatalf("неожиданный текст %q", text)
	}
}

func TestFormatAnnouncement(t *testing.T) {
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	rec := domain.DigestRecord{ChannelID: 42, Window: domain.DayWindow(day), Text: "тело"}
	text := FormatAnnouncement(domain.Channel{Name: "Backend"}, rec)
	mustContain(t, text, "📊 ЕЖЕДНЕВНЫЙ ДАЙДЖЕСТ 2024-01-10")
	mustContain(t, text, "📢 Канал: Backend")

	rec.Window.End = day.AddDate(0, 0, 6)
	text = FormatAnnouncement(domain.Channel{}, rec)
	mustContain(t, text, "ЗА ПЕРИОД 2024-01-10 – 2024-01-16")
	mustContain(t, text, "📢 Канал: 42")
}

func mustContain(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Fatalf("ожидали найти подстроку %q в %q", substr, s)
	}
}
