package domain

// Column описывает колонку выходной таблицы.
type Column struct {
	Name          string
	Type          string
	SortAscending bool
}

// TableSchema описывает объявленную схему таблицы для upsert по ключу.
// Колонки с SortAscending образуют ключ.
type TableSchema struct {
	Name    string
	Columns []Column
}

// KeyColumns возвращает имена ключевых колонок в порядке объявления.
func (s TableSchema) KeyColumns() []string {
	var keys []string
	for _, c := range s.Columns {
		if c.SortAscending {
			keys = append(keys, c.Name)
		}
	}
	return keys
}

// ColumnNames возвращает имена всех колонок.
func (s TableSchema) ColumnNames() []string {
	names := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		names = append(names, c.Name)
	}
	return names
}

// DailyDigestSchema возвращает схему таблицы дневных дайджестов.
func DailyDigestSchema(table string) TableSchema {
	return TableSchema{Name: table, Columns: []Column{
		{Name: "digest_id", Type: "string", SortAscending: true},
		{Name: "channel_id", Type: "int64"},
		{Name: "date", Type: "string"},
		{Name: "digest_text", Type: "string"},
	}}
}

// PeriodDigestSchema возвращает схему таблицы дайджестов за период.
func PeriodDigestSchema(table string) TableSchema {
	return TableSchema{Name: table, Columns: []Column{
		{Name: "digest_id", Type: "string", SortAscending: true},
		{Name: "channel_id", Type: "int64"},
		{Name: "start_date", Type: "string"},
		{Name: "end_date", Type: "string"},
		{Name: "digest_text", Type: "string"},
	}}
}
