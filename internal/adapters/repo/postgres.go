package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"tg-digester/internal/domain"
	"tg-digester/internal/infra/metrics"
)

const (
	queryTimeout       = 5 * time.Second
	codeUndefinedTable = "42P01"
)

// pgxPool: подмножество *pgxpool.Pool, которым пользуется репозиторий.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Tables задаёт имена таблиц хранилища.
type Tables struct {
	Chats         string
	Messages      string
	DailyTopics   string
	TopicAnalysis string
	DailyDigest   string
	PeriodDigest  string
}

// Postgres реализует репозитории каналов, тем, сообщений и дайджестов.
type Postgres struct {
	pool   pgxPool
	tables Tables
	loc    *time.Location
}

var (
	_ domain.ChannelRepo = (*Postgres)(nil)
	_ domain.TopicRepo   = (*Postgres)(nil)
	_ domain.MessageRepo = (*Postgres)(nil)
	_ domain.DigestRepo  = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool pgxPool, tables Tables) *Postgres {
	return &Postgres{pool: pool, tables: tables, loc: time.UTC}
}

// WithLocation задаёт часовой пояс, в котором календарные дни переводятся в границы dttm.
func (p *Postgres) WithLocation(loc *time.Location) *Postgres {
	if loc != nil {
		p.loc = loc
	}
	return p
}

// dayStart возвращает полночь календарного дня date в часовом поясе хранилища.
func (p *Postgres) dayStart(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, p.loc)
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, queryTimeout)
}

// ident экранирует имя таблицы, допуская схему через точку.
func ident(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUndefinedTable
}

// GetChannel возвращает метаданные канала.
func (p *Postgres) GetChannel(ctx context.Context, channelID int64) (domain.Channel, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	ch := domain.Channel{ID: channelID}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT COALESCE(chat, ''), COALESCE(description, '') FROM `+ident(p.tables.Chats)+` WHERE chat_id = $1 LIMIT 1`, channelID).
		Scan(&ch.Name, &ch.Description)
	metrics.ObserveNetworkRequest("postgres", "channel_get", p.tables.Chats, start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Channel{}, fmt.Errorf("%w: %d", domain.ErrChannelNotFound, channelID)
	}
	if err != nil {
		return domain.Channel{}, err
	}
	return ch, nil
}

// ListTopics возвращает темы канала за дату в порядке topic_id.
func (p *Postgres) ListTopics(ctx context.Context, channelID int64, date time.Time) ([]domain.Topic, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT topic_id, channel_id, date, COALESCE(status, ''), COALESCE(conclusions, ''), COALESCE(resume, ''), COALESCE(summary, '')
FROM `+ident(p.tables.TopicAnalysis)+`
WHERE channel_id = $1 AND date = $2
ORDER BY topic_id
`, channelID, date)
	metrics.ObserveNetworkRequest("postgres", "topics_list", p.tables.TopicAnalysis, start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var topics []domain.Topic
	for rows.Next() {
		var t domain.Topic
		if err := rows.Scan(&t.TopicID, &t.ChannelID, &t.Date, &t.Status, &t.Conclusions, &t.Resume, &t.Summary); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// ListPeriodItems возвращает проекции тем канала с датой в [start, end].
func (p *Postgres) ListPeriodItems(ctx context.Context, channelID int64, startDate, endDate time.Time) ([]domain.PeriodItem, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT date, COALESCE(summary, ''), COALESCE(status, ''), COALESCE(conclusions, '')
FROM `+ident(p.tables.TopicAnalysis)+`
WHERE channel_id = $1 AND date BETWEEN $2 AND $3
ORDER BY date, topic_id
`, channelID, startDate, endDate)
	metrics.ObserveNetworkRequest("postgres", "period_items_list", p.tables.TopicAnalysis, start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.PeriodItem
	for rows.Next() {
		var (
			date time.Time
			item = domain.PeriodItem{Type: domain.PeriodItemTopic}
		)
		if err := rows.Scan(&date, &item.Summary, &item.Status, &item.Conclusions); err != nil {
			return nil, err
		}
		item.Date = date.Format(domain.DateLayout)
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListTopicIDs возвращает темы, созданные извлечением за (канал, дату).
// Если таблицы ещё нет, тем ноль.
func (p *Postgres) ListTopicIDs(ctx context.Context, channelID int64, date time.Time) ([]string, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT topic_id FROM `+ident(p.tables.DailyTopics)+` WHERE channel_id = $1 AND date = $2 ORDER BY topic_id`, channelID, date)
	metrics.ObserveNetworkRequest("postgres", "topic_ids_list", p.tables.DailyTopics, start, err)
	if isUndefinedTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, err
	}
	return ids, nil
}
