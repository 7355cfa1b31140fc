package domain

import (
	"context"
	"time"
)

// DigestKind определяет форму дайджеста.
type DigestKind string

const (
	// DigestKindDaily: дневной дайджест по категориям.
	DigestKindDaily DigestKind = "daily"
	// DigestKindPeriod: дайджест за произвольный период.
	DigestKindPeriod DigestKind = "period"
)

// DigestJob содержит информацию о задаче построения дайджеста.
type DigestJob struct {
	ID           string     `json:"job_id,omitempty"`
	Kind         DigestKind `json:"kind"`
	ChannelID    int64      `json:"channel_id"`
	Date         time.Time  `json:"date,omitempty"`
	Start        time.Time  `json:"start,omitempty"`
	End          time.Time  `json:"end,omitempty"`
	Model        string     `json:"model,omitempty"`
	NotifyChatID int64      `json:"notify_chat_id,omitempty"`
	RequestedAt  time.Time  `json:"requested_at"`
	Attempt      int        `json:"attempt,omitempty"`
	Postponed    int        `json:"postponed,omitempty"`
}

// DigestQueue описывает очередь задач на построение дайджестов.
type DigestQueue interface {
	Enqueue(ctx context.Context, job DigestJob) error
	Receive(ctx context.Context) (DigestJob, DigestAckFunc, error)
}

// Ack решение воркера по полученной задаче.
type Ack int

const (
	// AckDone удаляет задачу: она выполнена или снята.
	AckDone Ack = iota
	// AckRetry возвращает задачу в очередь с увеличенным счётчиком попыток.
	AckRetry
	// AckPostpone откладывает задачу на время без счёта попыток.
	AckPostpone
)

// DigestAckFunc сообщает очереди, что делать с полученной задачей.
type DigestAckFunc func(Ack) error
