package digest

import (
	"fmt"
	"strings"

	"tg-digester/internal/domain"
)

const (
	discussionsHeader = "🗣️ ОБСУЖДЕНИЯ:"
	commitmentsHeader = "📋 КОММИТЫ:"
	bulletIndent      = "  "
)

// FormatDaily формирует текст дневного дайджеста: блок обсуждений, затем блок коммитов.
// Пустой блок не выводится, между блоками пустая строка.
func FormatDaily(c domain.DailyCategories) string {
	var sections []string
	if block := formatBlock(discussionsHeader, c.Discussions); block != "" {
		sections = append(sections, block)
	}
	if block := formatBlock(commitmentsHeader, c.Commitments); block != "" {
		sections = append(sections, block)
	}
	return strings.Join(sections, "\n\n")
}

func formatBlock(header string, items []string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(header)
	for _, item := range items {
		b.WriteString("\n")
		b.WriteString(bulletIndent)
		b.WriteString(item)
	}
	return b.String()
}

// FormatAnnouncement оборачивает готовый дайджест заголовком для доставки в чат.
func FormatAnnouncement(channel domain.Channel, rec domain.DigestRecord) string {
	var title string
	if rec.Window.IsDaily() {
		title = fmt.Sprintf("📊 ЕЖЕДНЕВНЫЙ ДАЙДЖЕСТ %s", rec.Window.Start.Format(domain.DateLayout))
	} else {
		title = fmt.Sprintf("📊 ДАЙДЖЕСТ ЗА ПЕРИОД %s – %s", rec.Window.Start.Format(domain.DateLayout), rec.Window.End.Format(domain.DateLayout))
	}
	name := strings.TrimSpace(channel.Name)
	if name == "" {
		name = fmt.Sprintf("%d", rec.ChannelID)
	}
	return fmt.Sprintf("%s\n📢 Канал: %s\n\n%s", title, name, rec.Text)
}
