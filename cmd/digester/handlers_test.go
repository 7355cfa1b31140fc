package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"tg-digester/internal/domain"
	"tg-digester/internal/infra/config"
	"tg-digester/internal/usecase/digest"
	"tg-digester/internal/usecase/interval"
)

func TestParseDate(t *testing.T) {
	d, err := parseDate("date", " 2024-02-29 ")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if d.Format(domain.DateLayout) != "2024-02-29" {
		t.Fatalf("неверная дата: %s", d)
	}
	if _, err := parseDate("date", "29.02.2024"); err == nil || !strings.Contains(err.Error(), "--date") {
		t.Fatalf("ожидалась ошибка с именем флага, получено %v", err)
	}
}

func TestDecodeMessages(t *testing.T) {
	input := `{"chat_id": 1, "chat": "backend", "message": "привет", "author": "u1", "dttm": "2024-01-10T09:00:00Z"}

{"chat_id": 2, "chat": "ops", "message": "деплой", "author": "u2", "dttm": "2024-01-10T10:00:00+03:00"}
`
	msgs, err := decodeMessages(strings.NewReader(input))
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("ожидалось 2 сообщения, получено %d", len(msgs))
	}
	if msgs[1].ChatID != 2 || !msgs[1].PostedAt.Equal(time.Date(2024, 1, 10, 7, 0, 0, 0, time.UTC)) {
		t.Fatalf("неверное сообщение: %+v", msgs[1])
	}
}

func TestDecodeMessagesReportsLine(t *testing.T) {
	_, err := decodeMessages(strings.NewReader("{\"chat_id\": 1}\n{битая строка\n"))
	if err == nil || !strings.Contains(err.Error(), "строка 2") {
		t.Fatalf("ожидалась ошибка на строке 2, получено %v", err)
	}
	_, err = decodeMessages(strings.NewReader(`{"chat": "без id"}`))
	if err == nil {
		t.Fatal("сообщение без chat_id должно отклоняться")
	}
}

func TestDescribeResult(t *testing.T) {
	res := digest.Result{
		Outcome: digest.OutcomeWritten,
		Channel: domain.Channel{ID: 42, Name: "Backend"},
		Record: domain.DigestRecord{
			DigestID: "42_2024-01-10",
			Window:   domain.DayWindow(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)),
			Text:     "📋 КОММИТЫ:\n  • релиз",
		},
	}
	out := describeResult(res)
	if !strings.Contains(out, "42_2024-01-10") || !strings.Contains(out, "релиз") {
		t.Fatalf("неожиданный вывод: %s", out)
	}
	if describeResult(digest.Result{Outcome: digest.OutcomeBusy}) == "" {
		t.Fatal("для каждого исхода нужен текст")
	}
}

func TestEnqueueRequestJob(t *testing.T) {
	var cfg config.AppConfig
	cfg.Eliza.Model = "yandex"
	cfg.Telegram.NotifyChatID = 77

	job, err := enqueueRequest{kind: "period", channelID: 5, start: "2024-01-01", end: "2024-01-07"}.job(cfg)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if job.Kind != domain.DigestKindPeriod || job.NotifyChatID != 77 || job.Model != "yandex" {
		t.Fatalf("неверная задача: %+v", job)
	}

	_, err = enqueueRequest{kind: "period", start: "2024-01-07", end: "2024-01-01"}.job(cfg)
	if !errors.Is(err, domain.ErrInvalidWindow) {
		t.Fatalf("ожидалась ErrInvalidWindow, получено %v", err)
	}
	if _, err := (enqueueRequest{kind: "weekly"}).job(cfg); err == nil {
		t.Fatal("неизвестный тип должен отклоняться")
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, interval.Report{
		Channels: []int64{1},
		Days:     []time.Time{time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)},
		Units:    1,
		Failures: []interval.Failure{{Stage: interval.StageExtract, ChannelID: 1, Day: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), Err: errors.New("timeout")}},
	})
	out := buf.String()
	if !strings.Contains(out, "extract channel=1 day=2024-01-10: timeout") || !strings.Contains(out, "ошибок: 1") {
		t.Fatalf("неожиданный отчёт: %s", out)
	}
}

func TestCustomIsAliasOfPeriod(t *testing.T) {
	cmd, _, err := rootCmd().Find([]string{"custom"})
	if err != nil {
		t.Fatalf("команда не найдена: %v", err)
	}
	if cmd.Name() != "period" {
		t.Fatalf("ожидалась команда period, получено %s", cmd.Name())
	}
}
