package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tg-digester/internal/app"
	"tg-digester/internal/domain"
	"tg-digester/internal/infra/config"
	applog "tg-digester/internal/infra/log"
	"tg-digester/internal/usecase/digest"
	"tg-digester/internal/usecase/interval"
)

const maxMessageLine = 16 << 20

func setup(cmd *cobra.Command, opts app.Options) (context.Context, *app.App, func(), error) {
	cfg, err := config.Process()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("конфиг: %w", err)
	}
	logger := applog.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	cancel := context.CancelFunc(func() {})
	if flags.deadline > 0 {
		ctx, cancel = context.WithTimeout(ctx, flags.deadline)
	}
	opts.Verify = flags.verify
	a, err := app.New(ctx, cfg, logger, opts)
	if err != nil {
		cancel()
		stop()
		return nil, nil, nil, err
	}
	return ctx, a, func() { a.Close(); cancel(); stop() }, nil
}

func model(cfg config.AppConfig) string {
	if flags.model != "" {
		return flags.model
	}
	return cfg.Eliza.Model
}

func parseDate(name, raw string) (time.Time, error) {
	d, err := time.Parse(domain.DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: ожидается дата YYYY-MM-DD, получено %q", name, raw)
	}
	return d, nil
}

func runInterval(cmd *cobra.Command, startRaw, endRaw string, channelID *int64) error {
	start, err := parseDate("start", startRaw)
	if err != nil {
		return err
	}
	end, err := parseDate("end", endRaw)
	if err != nil {
		return err
	}
	ctx, a, done, err := setup(cmd, app.Options{Stages: true})
	if err != nil {
		return err
	}
	defer done()

	report, err := a.Interval.Run(ctx, interval.Request{Start: start, End: end, ChannelID: channelID, Model: model(a.Config)})
	printReport(cmd.OutOrStdout(), report)
	return err
}

func printReport(w io.Writer, r interval.Report) {
	if len(r.Channels) == 0 {
		fmt.Fprintln(w, "Нет каналов с сообщениями за интервал")
		return
	}
	for _, f := range r.Failures {
		fmt.Fprintln(w, "  ✗", f.String())
	}
	fmt.Fprintf(w, "Каналов: %d, дней: %d, единиц: %d, извлечено: %d, тем: %d, резюмировано: %d, ошибок: %d\n",
		len(r.Channels), len(r.Days), r.Units, r.Extracted, r.Topics, r.Resumed, len(r.Failures))
}

func runExtract(cmd *cobra.Command, dateRaw string, channelID int64) error {
	date, err := parseDate("date", dateRaw)
	if err != nil {
		return err
	}
	ctx, a, done, err := setup(cmd, app.Options{Stages: true})
	if err != nil {
		return err
	}
	defer done()

	if err := a.Stages.Extract(ctx, domain.ExtractRequest{Date: date, ChannelID: channelID, Model: model(a.Config)}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Темы канала %d за %s извлечены\n", channelID, date.Format(domain.DateLayout))
	return nil
}

func runResume(cmd *cobra.Command, topicID string) error {
	ctx, a, done, err := setup(cmd, app.Options{Stages: true})
	if err != nil {
		return err
	}
	defer done()

	if err := a.Stages.Resume(ctx, domain.ResumeRequest{TopicID: topicID, Model: model(a.Config)}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Тема %s проанализирована\n", topicID)
	return nil
}

func runDaily(cmd *cobra.Command, dateRaw string, channelID int64) error {
	date, err := parseDate("date", dateRaw)
	if err != nil {
		return err
	}
	ctx, a, done, err := setup(cmd, app.Options{})
	if err != nil {
		return err
	}
	defer done()

	res, err := a.Digests.BuildDaily(ctx, channelID, date, model(a.Config))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), describeResult(res))
	return nil
}

func runPeriod(cmd *cobra.Command, startRaw, endRaw string, channelID int64) error {
	start, err := parseDate("start-date", startRaw)
	if err != nil {
		return err
	}
	end, err := parseDate("end-date", endRaw)
	if err != nil {
		return err
	}
	ctx, a, done, err := setup(cmd, app.Options{})
	if err != nil {
		return err
	}
	defer done()

	res, err := a.Digests.BuildPeriod(ctx, channelID, start, end, model(a.Config))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), describeResult(res))
	return nil
}

func describeResult(res digest.Result) string {
	switch res.Outcome {
	case digest.OutcomeWritten:
		return fmt.Sprintf("Дайджест %s сохранён\n\n%s", res.Record.DigestID, digest.FormatAnnouncement(res.Channel, res.Record))
	case digest.OutcomeNoTopics:
		return "Нет тем за указанную дату, дайджест не создан"
	case digest.OutcomeNoMeaningful:
		return "Нет содержательных тем, дайджест не создан"
	case digest.OutcomeEmptyDigest:
		return "Модель не выделила ни обсуждений, ни договорённостей, дайджест не создан"
	case digest.OutcomeNoItems:
		return "Нет материалов за период, дайджест не создан"
	case digest.OutcomeBusy:
		return "Этот дайджест сейчас строит другой процесс"
	default:
		return string(res.Outcome)
	}
}

type enqueueRequest struct {
	kind         string
	channelID    int64
	date         string
	start        string
	end          string
	notifyChatID int64
}

func (r enqueueRequest) job(cfg config.AppConfig) (domain.DigestJob, error) {
	job := domain.DigestJob{
		Kind:         domain.DigestKind(r.kind),
		ChannelID:    r.channelID,
		Model:        model(cfg),
		NotifyChatID: r.notifyChatID,
	}
	if job.NotifyChatID == 0 {
		job.NotifyChatID = cfg.Telegram.NotifyChatID
	}
	var err error
	switch job.Kind {
	case domain.DigestKindDaily:
		job.Date, err = parseDate("date", r.date)
	case domain.DigestKindPeriod:
		if job.Start, err = parseDate("start-date", r.start); err != nil {
			return domain.DigestJob{}, err
		}
		if job.End, err = parseDate("end-date", r.end); err != nil {
			return domain.DigestJob{}, err
		}
		if job.Start.After(job.End) {
			err = domain.ErrInvalidWindow
		}
	default:
		err = fmt.Errorf("--kind: ожидается daily или period, получено %q", r.kind)
	}
	if err != nil {
		return domain.DigestJob{}, err
	}
	return job, nil
}

func runEnqueue(cmd *cobra.Command, req enqueueRequest) error {
	ctx, a, done, err := setup(cmd, app.Options{Queue: true})
	if err != nil {
		return err
	}
	defer done()

	job, err := req.job(a.Config)
	if err != nil {
		return err
	}
	if err := a.Queue.Enqueue(ctx, job); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Задача %s для канала %d поставлена в очередь\n", job.Kind, job.ChannelID)
	return nil
}

func runMigrate(cmd *cobra.Command) error {
	ctx, a, done, err := setup(cmd, app.Options{})
	if err != nil {
		return err
	}
	defer done()

	if err := a.Store.EnsureSchema(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Схема актуальна")
	return nil
}

func runLoadMessages(cmd *cobra.Command, path string) error {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	messages, err := decodeMessages(r)
	if err != nil {
		return err
	}

	ctx, a, done, err := setup(cmd, app.Options{})
	if err != nil {
		return err
	}
	defer done()

	n, err := a.Store.ReplaceMessages(ctx, messages)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Загружено сообщений: %d\n", n)
	return nil
}

// decodeMessages читает сообщения в формате JSON lines; пустые строки пропускаются.
func decodeMessages(r io.Reader) ([]domain.Message, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxMessageLine)
	var (
		messages []domain.Message
		line     int
	)
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var m domain.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("строка %d: %w", line, err)
		}
		if m.ChatID == 0 {
			return nil, fmt.Errorf("строка %d: нет chat_id", line)
		}
		messages = append(messages, m)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}
