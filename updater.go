package rapidsql

import (
	"slices"
	"strings"
)

// Updater 每行生成一条 UPDATE，按条件字段定位
type Updater struct {
	*accumulator
	dialect    *Dialect
	opts       *options
	conditions []string
	active     []string // 本批次的条件字段
}

// NewUpdater 创建更新操作；conditions 为空时使用表的标识字段
func NewUpdater(dialect *Dialect, schema SchemaProvider, executor Executor, conditions []string, opts ...Option) *Updater {
	u := &Updater{
		dialect:    dialect,
		opts:       newOptions(opts),
		conditions: slices.Clone(conditions),
	}
	u.accumulator = newAccumulator(schema, executor, u)
	return u
}

func (u *Updater) begin(fields []string) error {
	conditions := u.conditions
	if len(conditions) == 0 {
		for _, f := range fields {
			if u.schema.IsIdentifier(f) {
				conditions = append(conditions, f)
			}
		}
		if len(conditions) == 0 {
			return &ConfigurationError{Table: u.schema.TableName(), Reason: "no condition fields for update"}
		}
	}
	u.active = conditions
	return u.validate(fields)
}

func (u *Updater) validate(fields []string) error {
	var missing []string
	for _, c := range u.active {
		if !slices.Contains(fields, c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &SchemaMismatchError{Missing: missing, Expected: u.active, Given: fields}
	}
	for _, f := range fields {
		if !slices.Contains(u.active, f) && u.schema.IsUpdatable(f) {
			return nil
		}
	}
	return &EmptyValuesError{Table: u.schema.TableName(), Conditions: slices.Clone(u.active)}
}

func (u *Updater) tuple(fields []string, values []any) (string, error) {
	esc := u.dialect.Escaper
	set := make([]string, 0, len(fields))
	where := make([]string, 0, len(u.active))

	for _, c := range u.active {
		idx := slices.Index(fields, c)
		col := u.schema.ColumnFor(c)
		if values[idx] == nil {
			where = append(where, esc.EscapeColumn(col)+" IS NULL")
			continue
		}
		v, err := esc.EscapeValue(values[idx], col)
		if err != nil {
			return "", err
		}
		where = append(where, esc.EscapeColumn(col)+" = "+v)
	}
	for idx, f := range fields {
		if slices.Contains(u.active, f) || !u.schema.IsUpdatable(f) {
			continue
		}
		col := u.schema.ColumnFor(f)
		v, err := esc.EscapeValue(values[idx], col)
		if err != nil {
			return "", err
		}
		set = append(set, esc.EscapeColumn(col)+" = "+v)
	}

	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(esc.EscapeColumn(u.schema.TableName()))
	b.WriteString(" SET ")
	b.WriteString(strings.Join(set, ", "))
	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(where, " AND "))
	b.WriteString(";")
	return b.String(), nil
}

func (u *Updater) separator() string { return "\n" }

func (u *Updater) finish(_ []string, body string) (string, error) {
	return body, nil
}

// script 每行一条语句，执行器逐条执行并累加影响行数
func (u *Updater) script(sql string, parts []string, items int) Script {
	return Script{
		Table:         u.schema.TableName(),
		SQL:           sql,
		Statements:    slices.Clone(parts),
		Transactional: u.opts.isTransactional(true),
		Items:         items,
	}
}
