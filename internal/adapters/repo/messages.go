package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"tg-digester/internal/domain"
	"tg-digester/internal/infra/metrics"
)

var messageColumns = []string{"chat_id", "chat", "message", "author", "dttm"}

// ChannelsWithMessages возвращает каналы, у которых есть сообщения в днях [start, end].
// Границы дней берутся в часовом поясе хранилища.
func (p *Postgres) ChannelsWithMessages(ctx context.Context, startDate, endDate time.Time) ([]int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT DISTINCT chat_id
FROM `+ident(p.tables.Messages)+`
WHERE dttm >= $1 AND dttm < $2
ORDER BY chat_id
`, p.dayStart(startDate), p.dayStart(endDate).AddDate(0, 0, 1))
	metrics.ObserveNetworkRequest("postgres", "channels_with_messages", p.tables.Messages, start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReplaceMessages полностью перезаписывает таблицу сырых сообщений в одной транзакции.
func (p *Postgres) ReplaceMessages(ctx context.Context, messages []domain.Message) (int64, error) {
	start := time.Now()
	tx, err := p.pool.Begin(ctx)
	metrics.ObserveNetworkRequest("postgres", "begin_tx", p.tables.Messages, start, err)
	if err != nil {
		return 0, err
	}

	start = time.Now()
	_, err = tx.Exec(ctx, `TRUNCATE `+ident(p.tables.Messages))
	metrics.ObserveNetworkRequest("postgres", "messages_truncate", p.tables.Messages, start, err)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, fmt.Errorf("очистка сообщений: %w", err)
	}

	rows := make([][]any, 0, len(messages))
	for _, m := range messages {
		rows = append(rows, []any{m.ChatID, m.Chat, m.Message, m.Author, m.PostedAt})
	}
	start = time.Now()
	copied, err := tx.CopyFrom(ctx, pgx.Identifier(strings.Split(p.tables.Messages, ".")), messageColumns, pgx.CopyFromRows(rows))
	metrics.ObserveNetworkRequest("postgres", "messages_copy", p.tables.Messages, start, err)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, fmt.Errorf("запись сообщений: %w", err)
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", p.tables.Messages, start, err)
	if err != nil {
		return 0, err
	}
	return copied, nil
}
