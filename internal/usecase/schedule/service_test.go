package schedule

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"tg-digester/internal/domain"
	"tg-digester/internal/usecase/interval"
)

type fakeRunner struct {
	reqs   []interval.Request
	report interval.Report
	err    error
}

func (f *fakeRunner) Run(_ context.Context, req interval.Request) (interval.Report, error) {
	f.reqs = append(f.reqs, req)
	return f.report, f.err
}

type fakeMessages struct {
	start, end time.Time
	ids        []int64
}

func (f *fakeMessages) ChannelsWithMessages(_ context.Context, start, end time.Time) ([]int64, error) {
	f.start, f.end = start, end
	return f.ids, nil
}

type memQueue struct {
	jobs []domain.DigestJob
}

func (q *memQueue) Enqueue(_ context.Context, job domain.DigestJob) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *memQueue) Receive(context.Context) (domain.DigestJob, domain.DigestAckFunc, error) {
	return domain.DigestJob{}, nil, errors.New("not implemented")
}

func newTestService(runner IntervalRunner, messages domain.MessageRepo, q domain.DigestQueue, now time.Time) *Service {
	moscow := time.FixedZone("MSK", 3*60*60)
	s := NewService(runner, messages, q, Config{Location: moscow, Model: "yandex", PeriodDays: 7, NotifyChatID: 100}, zerolog.Nop())
	s.now = func() time.Time { return now }
	return s
}

func date(raw string) time.Time {
	d, _ := time.Parse(domain.DateLayout, raw)
	return d
}

func TestRunDailyUsesYesterdayInLocation(t *testing.T) {
	runner := &fakeRunner{report: interval.Report{Channels: []int64{1, 2}}}
	q := &memQueue{}
	// 22:30 UTC 10 января это уже 11 января по Москве
	s := newTestService(runner, &fakeMessages{}, q, time.Date(2024, 1, 10, 22, 30, 0, 0, time.UTC))

	if err := s.RunDaily(context.Background()); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(runner.reqs) != 1 || !runner.reqs[0].Start.Equal(date("2024-01-10")) || !runner.reqs[0].End.Equal(date("2024-01-10")) {
		t.Fatalf("ожидался прогон за 2024-01-10, получено %+v", runner.reqs)
	}
	if runner.reqs[0].ChannelID != nil {
		t.Fatal("ночной прогон должен идти по всем каналам")
	}
	if len(q.jobs) != 2 {
		t.Fatalf("ожидалось 2 задачи, получено %d", len(q.jobs))
	}
	job := q.jobs[1]
	if job.Kind != domain.DigestKindDaily || job.ChannelID != 2 || !job.Date.Equal(date("2024-01-10")) || job.NotifyChatID != 100 {
		t.Fatalf("неверная задача: %+v", job)
	}
}

func TestRunDailyIntervalError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("db down")}
	q := &memQueue{}
	s := newTestService(runner, &fakeMessages{}, q, time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC))

	if err := s.RunDaily(context.Background()); err == nil {
		t.Fatal("ожидалась ошибка")
	}
	if len(q.jobs) != 0 {
		t.Fatal("при ошибке прогона задачи ставиться не должны")
	}
}

func TestRunPeriodCoversLastDays(t *testing.T) {
	msgs := &fakeMessages{ids: []int64{7}}
	q := &memQueue{}
	s := newTestService(&fakeRunner{}, msgs, q, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	if err := s.RunPeriod(context.Background()); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !msgs.start.Equal(date("2024-02-23")) || !msgs.end.Equal(date("2024-02-29")) {
		t.Fatalf("неверное окно: %s – %s", msgs.start, msgs.end)
	}
	if len(q.jobs) != 1 || q.jobs[0].Kind != domain.DigestKindPeriod || !q.jobs[0].Start.Equal(date("2024-02-23")) {
		t.Fatalf("неверные задачи: %+v", q.jobs)
	}
}

func TestRegister(t *testing.T) {
	s := newTestService(&fakeRunner{}, &fakeMessages{}, &memQueue{}, time.Now())
	c := cron.New()
	if err := s.Register(context.Background(), c, "0 5 * * *", ""); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(c.Entries()) != 1 {
		t.Fatalf("ожидалось одно задание, получено %d", len(c.Entries()))
	}
	if err := s.Register(context.Background(), cron.New(), "не cron", ""); err == nil {
		t.Fatal("ожидалась ошибка разбора расписания")
	}
}

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation(" europe/moscow ")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if loc.String() != "Europe/Moscow" {
		t.Fatalf("ожидался Europe/Moscow, получено %s", loc)
	}
	if _, err := ParseLocation("Mars/Olympus"); !errors.Is(err, ErrInvalidTimezone) {
		t.Fatalf("ожидалась ErrInvalidTimezone, получено %v", err)
	}
}
