package telegram

import "strings"

// MessageLimit: максимальная длина одного сообщения Telegram в символах.
const MessageLimit = 4096

// SplitMessage режет текст на части не длиннее limit символов.
// Резать старается по строкам; строка длиннее limit режется жёстко.
func SplitMessage(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 {
		limit = MessageLimit
	}

	var (
		parts []string
		cur   []rune
	)
	flush := func() {
		if chunk := strings.Trim(string(cur), "\n"); chunk != "" {
			parts = append(parts, chunk)
		}
		cur = cur[:0]
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		runes := []rune(line)
		if len(cur)+len(runes) <= limit {
			cur = append(cur, runes...)
			continue
		}
		flush()
		for len(runes) > limit {
			cur = append(cur, runes[:limit]...)
			flush()
			runes = runes[limit:]
		}
		cur = append(cur, runes...)
	}
	flush()
	return parts
}
