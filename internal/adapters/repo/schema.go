package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tg-digester/internal/domain"
	"tg-digester/internal/infra/metrics"
)

var columnTypes = map[string]string{
	"string": "TEXT",
	"int64":  "BIGINT",
	"date":   "DATE",
}

// schemaStatements возвращает DDL всех таблиц хранилища.
func (p *Postgres) schemaStatements() ([]string, error) {
	t := p.tables
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + ident(t.Chats) + ` (
    chat_id     BIGINT PRIMARY KEY,
    chat        TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT ''
)`,
		`CREATE TABLE IF NOT EXISTS ` + ident(t.Messages) + ` (
    chat_id BIGINT NOT NULL,
    chat    TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL DEFAULT '',
    author  TEXT NOT NULL DEFAULT '',
    dttm    TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS ` + ident(indexName(t.Messages, "dttm")) + ` ON ` + ident(t.Messages) + ` (dttm, chat_id)`,
		`CREATE TABLE IF NOT EXISTS ` + ident(t.DailyTopics) + ` (
    topic_id   TEXT PRIMARY KEY,
    channel_id BIGINT NOT NULL,
    date       DATE NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS ` + ident(indexName(t.DailyTopics, "channel_date")) + ` ON ` + ident(t.DailyTopics) + ` (channel_id, date)`,
		`CREATE TABLE IF NOT EXISTS ` + ident(t.TopicAnalysis) + ` (
    topic_id    TEXT PRIMARY KEY,
    channel_id  BIGINT NOT NULL,
    date        DATE NOT NULL,
    status      TEXT,
    conclusions TEXT,
    resume      TEXT,
    summary     TEXT
)`,
		`CREATE INDEX IF NOT EXISTS ` + ident(indexName(t.TopicAnalysis, "channel_date")) + ` ON ` + ident(t.TopicAnalysis) + ` (channel_id, date)`,
	}
	for _, schema := range []domain.TableSchema{domain.DailyDigestSchema(t.DailyDigest), domain.PeriodDigestSchema(t.PeriodDigest)} {
		stmt, err := createTable(schema)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func indexName(table, suffix string) string {
	parts := strings.Split(table, ".")
	return "idx_" + parts[len(parts)-1] + "_" + suffix
}

// createTable строит CREATE TABLE по объявленной схеме; ключевые колонки образуют PRIMARY KEY.
func createTable(schema domain.TableSchema) (string, error) {
	defs := make([]string, 0, len(schema.Columns)+1)
	for _, c := range schema.Columns {
		sqlType, ok := columnTypes[c.Type]
		if !ok {
			return "", fmt.Errorf("%s.%s: неизвестный тип %q", schema.Name, c.Name, c.Type)
		}
		defs = append(defs, "    "+ident(c.Name)+" "+sqlType+" NOT NULL")
	}
	keys := schema.KeyColumns()
	if len(keys) == 0 {
		return "", fmt.Errorf("%s: %w", schema.Name, ErrNoKeyColumns)
	}
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = ident(k)
	}
	defs = append(defs, "    PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	return "CREATE TABLE IF NOT EXISTS " + ident(schema.Name) + " (\n" + strings.Join(defs, ",\n") + "\n)", nil
}

// EnsureSchema создаёт недостающие таблицы и индексы.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts, err := p.schemaStatements()
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		start := time.Now()
		_, err := p.pool.Exec(ctx, stmt)
		metrics.ObserveNetworkRequest("postgres", "ensure_schema", "schema", start, err)
		if err != nil {
			return fmt.Errorf("миграция схемы: %w", err)
		}
	}
	return nil
}
