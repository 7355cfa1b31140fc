package domain

import (
	"context"
	"time"
)

// ChannelRepo возвращает справочник каналов.
type ChannelRepo interface {
	GetChannel(ctx context.Context, channelID int64) (Channel, error)
}

// TopicRepo читает темы, подготовленные стадиями извлечения и резюмирования.
type TopicRepo interface {
	ListTopics(ctx context.Context, channelID int64, date time.Time) ([]Topic, error)
	ListPeriodItems(ctx context.Context, channelID int64, start, end time.Time) ([]PeriodItem, error)
	// ListTopicIDs возвращает идентификаторы тем, созданных извлечением за (канал, дату).
	// Отсутствие таблицы тем означает ноль тем, а не ошибку.
	ListTopicIDs(ctx context.Context, channelID int64, date time.Time) ([]string, error)
}

// MessageRepo описывает хранилище сырых сообщений.
type MessageRepo interface {
	ChannelsWithMessages(ctx context.Context, start, end time.Time) ([]int64, error)
}

// DigestRepo сохраняет дайджесты. Повторная запись с тем же DigestID заменяет строку.
type DigestRepo interface {
	UpsertDailyDigest(ctx context.Context, rec DigestRecord) error
	UpsertPeriodDigest(ctx context.Context, rec DigestRecord) error
}

// PostSource поставляет элементы периода из постов канала.
type PostSource interface {
	ListPostItems(ctx context.Context, channelID int64, start, end time.Time) ([]PeriodItem, error)
}

// ExtractRequest описывает запрос к стадии извлечения тем.
type ExtractRequest struct {
	Date      time.Time
	ChannelID int64
	Model     string
}

// ResumeRequest описывает запрос к стадии резюмирования темы.
type ResumeRequest struct {
	TopicID string
	Model   string
}

// Extractor превращает сырые сообщения (канал, день) в темы.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) error
}

// Resumator дополняет тему статусом, выводами и резюме.
type Resumator interface {
	Resume(ctx context.Context, req ResumeRequest) error
}

// Locker выдаёт эксклюзивную блокировку по ключу.
type Locker interface {
	// TryLock возвращает ok=false без ошибки, если ключ уже занят.
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}
