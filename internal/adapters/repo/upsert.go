package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tg-digester/internal/domain"
	"tg-digester/internal/infra/metrics"
)

// ErrNoKeyColumns: у схемы нет колонок ключа, upsert невозможен.
var ErrNoKeyColumns = errors.New("в схеме нет ключевых колонок")

// Upsert вставляет строки в таблицу схемы, заменяя строки с тем же ключом.
// Значения каждой строки идут в порядке колонок схемы.
func (p *Postgres) Upsert(ctx context.Context, schema domain.TableSchema, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	query, args, err := buildUpsert(schema, rows)
	if err != nil {
		return err
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err = p.pool.Exec(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", "upsert", schema.Name, start, err)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", schema.Name, err)
	}
	return nil
}

func buildUpsert(schema domain.TableSchema, rows [][]any) (string, []any, error) {
	keys := schema.KeyColumns()
	if len(keys) == 0 {
		return "", nil, fmt.Errorf("%s: %w", schema.Name, ErrNoKeyColumns)
	}
	cols := schema.ColumnNames()
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}

	quotedCols := make([]string, len(cols))
	for i, c := range cols {
		quotedCols[i] = ident(c)
	}
	quotedKeys := make([]string, len(keys))
	for i, k := range keys {
		quotedKeys[i] = ident(k)
	}

	var b strings.Builder
	args := make([]any, 0, len(rows)*len(cols))
	b.WriteString("INSERT INTO ")
	b.WriteString(ident(schema.Name))
	b.WriteString(" (")
	b.WriteString(strings.Join(quotedCols, ", "))
	b.WriteString(") VALUES ")
	for r, row := range rows {
		if len(row) != len(cols) {
			return "", nil, fmt.Errorf("%s: строка %d содержит %d значений вместо %d", schema.Name, r, len(row), len(cols))
		}
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for i, v := range row {
			if i > 0 {
				b.WriteString(", ")
			}
			args = append(args, v)
			fmt.Fprintf(&b, "$%d", len(args))
		}
		b.WriteString(")")
	}
	b.WriteString(" ON CONFLICT (")
	b.WriteString(strings.Join(quotedKeys, ", "))
	b.WriteString(") ")

	var sets []string
	for _, c := range cols {
		if isKey[c] {
			continue
		}
		sets = append(sets, ident(c)+" = EXCLUDED."+ident(c))
	}
	if len(sets) == 0 {
		b.WriteString("DO NOTHING")
	} else {
		b.WriteString("DO UPDATE SET ")
		b.WriteString(strings.Join(sets, ", "))
	}
	return b.String(), args, nil
}

// UpsertDailyDigest сохраняет дневной дайджест.
func (p *Postgres) UpsertDailyDigest(ctx context.Context, rec domain.DigestRecord) error {
	return p.Upsert(ctx, domain.DailyDigestSchema(p.tables.DailyDigest), [][]any{{
		rec.DigestID, rec.ChannelID, rec.Window.Start.Format(domain.DateLayout), rec.Text,
	}})
}

// UpsertPeriodDigest сохраняет дайджест за период.
func (p *Postgres) UpsertPeriodDigest(ctx context.Context, rec domain.DigestRecord) error {
	return p.Upsert(ctx, domain.PeriodDigestSchema(p.tables.PeriodDigest), [][]any{{
		rec.DigestID, rec.ChannelID, rec.Window.Start.Format(domain.DateLayout), rec.Window.End.Format(domain.DateLayout), rec.Text,
	}})
}
