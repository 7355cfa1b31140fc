package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-digester/internal/domain"
	"tg-digester/internal/usecase/digest"
)

type fakeBuilder struct {
	res      digest.Result
	err      error
	daily    int
	period   int
	lastDate time.Time
}

func (f *fakeBuilder) BuildDaily(_ context.Context, _ int64, date time.Time, _ string) (digest.Result, error) {
	f.daily++
	f.lastDate = date
	return f.res, f.err
}

func (f *fakeBuilder) BuildPeriod(context.Context, int64, time.Time, time.Time, string) (digest.Result, error) {
	f.period++
	return f.res, f.err
}

type fakeNotifier struct {
	chatID int64
	key    string
	text   string
	err    error
}

func (f *fakeNotifier) Deliver(_ context.Context, chatID int64, key, text string) error {
	f.chatID, f.key, f.text = chatID, key, text
	return f.err
}

type ackRecorder struct {
	calls []domain.Ack
}

func (a *ackRecorder) ack(ack domain.Ack) error {
	a.calls = append(a.calls, ack)
	return nil
}

func (a *ackRecorder) only(want domain.Ack) bool {
	return len(a.calls) == 1 && a.calls[0] == want
}

func written() digest.Result {
	return digest.Result{
		Outcome: digest.OutcomeWritten,
		Channel: domain.Channel{ID: 42, Name: "Backend"},
		Record: domain.DigestRecord{
			DigestID:  "42_2024-01-10",
			ChannelID: 42,
			Window:    domain.DayWindow(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)),
			Text:      "🗣️ ОБСУЖДЕНИЯ:\n  • тема",
		},
	}
}

func TestProcessDailyWrittenAndDelivered(t *testing.T) {
	b := &fakeBuilder{res: written()}
	n := &fakeNotifier{}
	w := NewWorker(nil, b, n, zerolog.Nop())
	a := &ackRecorder{}

	w.Process(context.Background(), domain.DigestJob{ID: "j1", Kind: domain.DigestKindDaily, ChannelID: 42, NotifyChatID: 9}, a.ack)

	if b.daily != 1 || b.period != 0 {
		t.Fatalf("ожидался один дневной запуск, получено daily=%d period=%d", b.daily, b.period)
	}
	if !a.only(domain.AckDone) {
		t.Fatalf("задача должна быть подтверждена, получено %v", a.calls)
	}
	if n.chatID != 9 || n.key != "j1" || !strings.Contains(n.text, "📢 Канал: Backend") {
		t.Fatalf("неверная доставка: %+v", n)
	}
}

func TestProcessSkipsDeliveryWithoutChat(t *testing.T) {
	n := &fakeNotifier{}
	w := NewWorker(nil, &fakeBuilder{res: written()}, n, zerolog.Nop())
	a := &ackRecorder{}

	w.Process(context.Background(), domain.DigestJob{Kind: domain.DigestKindPeriod, ChannelID: 42}, a.ack)
	if n.text != "" {
		t.Fatal("без NotifyChatID доставки быть не должно")
	}
	if !a.only(domain.AckDone) {
		t.Fatalf("задача должна быть подтверждена, получено %v", a.calls)
	}
}

func TestProcessRetriesTransientError(t *testing.T) {
	b := &fakeBuilder{err: &domain.TransientError{Err: errors.New("timeout")}}
	w := NewWorker(nil, b, nil, zerolog.Nop())
	a := &ackRecorder{}

	w.Process(context.Background(), domain.DigestJob{Kind: domain.DigestKindDaily, Attempt: 1}, a.ack)
	if !a.only(domain.AckRetry) {
		t.Fatalf("задача должна вернуться в очередь, получено %v", a.calls)
	}
}

func TestProcessDropsAfterMaxAttempts(t *testing.T) {
	b := &fakeBuilder{err: errors.New("db down")}
	w := NewWorker(nil, b, nil, zerolog.Nop())
	a := &ackRecorder{}

	w.Process(context.Background(), domain.DigestJob{Kind: domain.DigestKindDaily, Attempt: MaxDeliveryAttempts - 1}, a.ack)
	if !a.only(domain.AckDone) {
		t.Fatalf("после последней попытки задача подтверждается, получено %v", a.calls)
	}
}

func TestProcessPermanentErrorNotRetried(t *testing.T) {
	b := &fakeBuilder{err: domain.ErrInvalidWindow}
	w := NewWorker(nil, b, nil, zerolog.Nop())
	a := &ackRecorder{}

	w.Process(context.Background(), domain.DigestJob{Kind: domain.DigestKindPeriod}, a.ack)
	if !a.only(domain.AckDone) {
		t.Fatalf("ошибка окна не повторяется, получено %v", a.calls)
	}
}

func TestProcessBusyPostponed(t *testing.T) {
	b := &fakeBuilder{res: digest.Result{Outcome: digest.OutcomeBusy}}
	w := NewWorker(nil, b, nil, zerolog.Nop())
	a := &ackRecorder{}

	w.Process(context.Background(), domain.DigestJob{Kind: domain.DigestKindDaily, Attempt: MaxDeliveryAttempts - 1}, a.ack)
	if !a.only(domain.AckPostpone) {
		t.Fatalf("занятый дайджест откладывается без счёта попыток, получено %v", a.calls)
	}
}

func TestProcessDeliveryFailureRetries(t *testing.T) {
	n := &fakeNotifier{err: errors.New("telegram down")}
	w := NewWorker(nil, &fakeBuilder{res: written()}, n, zerolog.Nop())
	a := &ackRecorder{}

	w.Process(context.Background(), domain.DigestJob{Kind: domain.DigestKindDaily, NotifyChatID: 1}, a.ack)
	if !a.only(domain.AckRetry) {
		t.Fatalf("ошибка доставки ведёт к повтору, получено %v", a.calls)
	}
	if n.key != "42_2024-01-10:1" {
		t.Fatalf("неверный ключ доставки: %s", n.key)
	}
}

type oneJobQueue struct {
	job    domain.DigestJob
	served bool
	cancel context.CancelFunc
	acked  []domain.Ack
}

func (q *oneJobQueue) Enqueue(context.Context, domain.DigestJob) error { return nil }

func (q *oneJobQueue) Receive(ctx context.Context) (domain.DigestJob, domain.DigestAckFunc, error) {
	if q.served {
		q.cancel()
		<-ctx.Done()
		return domain.DigestJob{}, nil, ctx.Err()
	}
	q.served = true
	return q.job, func(ack domain.Ack) error { q.acked = append(q.acked, ack); return nil }, nil
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := &oneJobQueue{job: domain.DigestJob{Kind: domain.DigestKindDaily}, cancel: cancel}
	b := &fakeBuilder{res: digest.Result{Outcome: digest.OutcomeNoTopics}}

	NewWorker(q, b, nil, zerolog.Nop()).Run(ctx)
	if b.daily != 1 || len(q.acked) != 1 || q.acked[0] != domain.AckDone {
		t.Fatalf("ожидалась одна обработанная задача, daily=%d acked=%v", b.daily, q.acked)
	}
}
