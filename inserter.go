package rapidsql

import (
	"strings"
)

// Inserter 多行 INSERT，可附带冲突子句
type Inserter struct {
	*accumulator
	dialect *Dialect
	opts    *options
	keep    []int // 可插入字段在行中的下标
}

// NewInserter 创建插入操作
func NewInserter(dialect *Dialect, schema SchemaProvider, executor Executor, opts ...Option) *Inserter {
	i := &Inserter{
		dialect: dialect,
		opts:    newOptions(opts),
	}
	i.accumulator = newAccumulator(schema, executor, i)
	return i
}

// Mode 当前插入模式
func (i *Inserter) Mode() Mode {
	return i.opts.mode
}

func (i *Inserter) begin(fields []string) error {
	i.keep = i.keep[:0]
	for idx, f := range fields {
		if i.schema.IsInsertable(f) {
			i.keep = append(i.keep, idx)
		}
	}
	if len(i.keep) == 0 {
		return &ConfigurationError{Table: i.schema.TableName(), Reason: "no insertable fields in row"}
	}
	return nil
}

func (i *Inserter) tuple(fields []string, values []any) (string, error) {
	kf := make([]string, len(i.keep))
	kv := make([]any, len(i.keep))
	for n, idx := range i.keep {
		kf[n] = fields[idx]
		kv[n] = values[idx]
	}
	escaped, err := escapeValues(i.schema, i.dialect.Escaper, kf, kv)
	if err != nil {
		return "", err
	}
	return "(" + strings.Join(escaped, ", ") + ")", nil
}

func (i *Inserter) separator() string { return ",\n" }

func (i *Inserter) finish(fields []string, body string) (string, error) {
	insert := insertableFields(i.schema, fields)
	esc := i.dialect.Escaper

	conflict, err := i.conflictClause(insert)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(body) + 128)
	b.WriteString("INSERT INTO ")
	b.WriteString(esc.EscapeColumn(i.schema.TableName()))
	b.WriteString(" (")
	b.WriteString(joinEscaped(esc, columnsFor(i.schema, insert)))
	b.WriteString(") VALUES ")
	b.WriteString(body)
	if conflict != "" {
		b.WriteString(" ")
		b.WriteString(conflict)
	}
	b.WriteString(";")
	return b.String(), nil
}

func (i *Inserter) conflictClause(fields []string) (string, error) {
	if i.opts.mode == ModeNormal {
		return "", nil
	}
	esc := i.dialect.Escaper
	ids := conflictTarget(i.schema)
	if len(ids) == 0 {
		return "", &ConfigurationError{Table: i.schema.TableName(), Reason: "no identifier columns for conflict clause"}
	}
	escapedIDs := escapeAll(esc, ids)

	if i.opts.mode == ModeInsertNonExisting {
		return i.dialect.Platform.OnConflictNothing(escapedIDs), nil
	}

	selected, err := i.opts.selection.Apply(fields)
	if err != nil {
		return "", err
	}
	update := make([]string, 0, len(selected))
	for _, f := range selected {
		if i.schema.IsUpdatable(f) && !i.schema.IsIdentifier(f) {
			update = append(update, i.schema.ColumnFor(f))
		}
	}
	if len(update) == 0 {
		update = ids
	}
	return i.dialect.Platform.OnConflictUpdate(escapedIDs, escapeAll(esc, update)), nil
}

func (i *Inserter) script(sql string, _ []string, items int) Script {
	return Script{
		Table:         i.schema.TableName(),
		SQL:           sql,
		Transactional: i.opts.isTransactional(false),
		Items:         items,
	}
}

// conflictTarget 标识列，缺省时使用第一个唯一约束
func conflictTarget(schema SchemaProvider) []string {
	if ids := schema.IdentifierColumns(); len(ids) > 0 {
		return ids
	}
	if groups := schema.UniqueFieldGroups(); len(groups) > 0 {
		return columnsFor(schema, groups[0])
	}
	return nil
}

func escapeAll(esc Escaper, columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = esc.EscapeColumn(c)
	}
	return out
}
