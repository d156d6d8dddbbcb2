package rapidsql

import (
	"fmt"
	"slices"
	"strings"
)

// OperationType 大批量操作类型
type OperationType int

const (
	// LargeInsert 只插入目标表中不存在的行
	LargeInsert OperationType = iota
	// LargeUpdate 只更新已存在的行
	LargeUpdate
	// LargeUpsert 先更新再插入
	LargeUpsert
)

func (t OperationType) String() string {
	switch t {
	case LargeInsert:
		return "insert"
	case LargeUpdate:
		return "update"
	case LargeUpsert:
		return "upsert"
	default:
		return "unknown"
	}
}

func (t OperationType) updates() bool { return t == LargeUpdate || t == LargeUpsert }
func (t OperationType) inserts() bool { return t == LargeInsert || t == LargeUpsert }

// LargeOperation 通过临时表暂存数据，再与目标表一次性合并
//
// 生成的脚本依次为：建临时表、写入临时表、连接更新、NOT EXISTS 插入、删临时表。
type LargeOperation struct {
	*accumulator
	typ       OperationType
	dialect   *Dialect
	opts      *options
	temporary TemporaryTableSchemaFactory
	tmpName   string
}

// NewLargeOperation 创建大批量操作
func NewLargeOperation(typ OperationType, dialect *Dialect, schema SchemaProvider, executor Executor, opts ...Option) *LargeOperation {
	o := newOptions(opts)
	temporary := o.temporary
	if temporary == nil {
		temporary = NewDDLFactory(dialect, o.tempOptions)
	}
	l := &LargeOperation{
		typ:       typ,
		dialect:   dialect,
		opts:      o,
		temporary: temporary,
	}
	l.accumulator = newAccumulator(schema, executor, l)
	return l
}

// Type 操作类型
func (l *LargeOperation) Type() OperationType {
	return l.typ
}

// TemporaryTableName 当前批次的临时表名，批次为空时为空字符串
func (l *LargeOperation) TemporaryTableName() string {
	if l.ItemCount() == 0 {
		return ""
	}
	return l.tmpName
}

func (l *LargeOperation) begin([]string) error {
	l.tmpName = l.opts.names.Generate(l.schema.TableName())
	return nil
}

func (l *LargeOperation) tuple(fields []string, values []any) (string, error) {
	escaped, err := escapeValues(l.schema, l.dialect.Escaper, fields, values)
	if err != nil {
		return "", err
	}
	return "(" + strings.Join(escaped, ", ") + ")", nil
}

func (l *LargeOperation) separator() string { return ",\n" }

func (l *LargeOperation) finish(fields []string, body string) (string, error) {
	ddl, err := l.ddl(fields)
	if err != nil {
		return "", err
	}
	esc := l.dialect.Escaper
	target := esc.EscapeColumn(l.schema.TableName())
	tmp := esc.EscapeColumn(l.tmpName)

	on, err := l.matchPredicate(fields)
	if err != nil {
		return "", err
	}

	steps := []string{
		ddl.Create,
		fmt.Sprintf("INSERT INTO %s (%s) VALUES %s;", tmp, joinEscaped(esc, columnsFor(l.schema, fields)), body),
	}

	if l.typ.updates() {
		set, err := l.updateColumns(fields)
		if err != nil {
			return "", err
		}
		steps = append(steps, l.dialect.Platform.JoinUpdate(target, tmp, on, escapeAll(esc, set))+";")
	}

	if l.typ.inserts() {
		insert := columnsFor(l.schema, insertableFields(l.schema, fields))
		if len(insert) == 0 {
			return "", &ConfigurationError{Table: l.schema.TableName(), Reason: "no insertable fields in row"}
		}
		selected := make([]string, len(insert))
		for i, col := range insert {
			selected[i] = sourceAlias + "." + esc.EscapeColumn(col)
		}
		steps = append(steps, fmt.Sprintf(
			"INSERT INTO %s (%s) SELECT %s FROM %s %s WHERE NOT EXISTS (SELECT 1 FROM %s %s WHERE %s);",
			target, joinEscaped(esc, insert), strings.Join(selected, ", "),
			tmp, sourceAlias, target, targetAlias, on))
	}

	steps = append(steps, ddl.Drop)
	return strings.Join(steps, "\n\n"), nil
}

func (l *LargeOperation) ddl(fields []string) (TemporaryDDL, error) {
	return l.temporary.Create(temporaryTableFor(l.schema, l.tmpName, fields))
}

// matchGroups 显式匹配字段，缺省为批次完整覆盖的唯一约束
func (l *LargeOperation) matchGroups(fields []string) ([][]string, error) {
	if len(l.opts.matchFields) == 0 {
		groups := coveredUniqueGroups(l.schema, fields)
		if len(groups) == 0 {
			return nil, &ConfigurationError{Table: l.schema.TableName(), Reason: "no match columns: no unique constraint is covered by the batch fields"}
		}
		return groups, nil
	}
	var missing []string
	for _, g := range l.opts.matchFields {
		for _, f := range g {
			if !slices.Contains(fields, f) && !slices.Contains(missing, f) {
				missing = append(missing, f)
			}
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaMismatchError{Missing: missing, Expected: flatten(l.opts.matchFields), Given: fields}
	}
	groups := make([][]string, 0, len(l.opts.matchFields))
	for _, g := range l.opts.matchFields {
		if len(g) > 0 {
			groups = append(groups, g)
		}
	}
	if len(groups) == 0 {
		return nil, &ConfigurationError{Table: l.schema.TableName(), Reason: "no match columns"}
	}
	return groups, nil
}

func (l *LargeOperation) matchPredicate(fields []string) (string, error) {
	groups, err := l.matchGroups(fields)
	if err != nil {
		return "", err
	}
	return matchPredicate(l.schema, l.dialect.Escaper, groups), nil
}

func (l *LargeOperation) updateColumns(fields []string) ([]string, error) {
	selected, err := l.opts.selection.Apply(fields)
	if err != nil {
		return nil, err
	}
	var set []string
	for _, f := range selected {
		if l.schema.IsUpdatable(f) && !l.schema.IsIdentifier(f) {
			set = append(set, l.schema.ColumnFor(f))
		}
	}
	if len(set) == 0 {
		return nil, &ConfigurationError{Table: l.schema.TableName(), Reason: "no update columns"}
	}
	return set, nil
}

func (l *LargeOperation) script(sql string, _ []string, items int) Script {
	cleanup := ""
	if ddl, err := l.ddl(l.fields); err == nil {
		cleanup = ddl.Cleanup
	}
	return Script{
		Table:         l.schema.TableName(),
		SQL:           sql,
		Transactional: l.opts.isTransactional(false),
		FixedCount:    items,
		Items:         items,
		Cleanup:       cleanup,
	}
}

// matchPredicate 组内 AND、组间 OR；t1 为目标表，t2 为临时表
func matchPredicate(schema SchemaProvider, esc Escaper, groups [][]string) string {
	parts := make([]string, len(groups))
	for i, g := range groups {
		conds := make([]string, len(g))
		for j, f := range g {
			col := esc.EscapeColumn(schema.ColumnFor(f))
			conds[j] = fmt.Sprintf("%s.%s = %s.%s", targetAlias, col, sourceAlias, col)
		}
		parts[i] = strings.Join(conds, " AND ")
		if len(groups) > 1 && len(g) > 1 {
			parts[i] = "(" + parts[i] + ")"
		}
	}
	return strings.Join(parts, " OR ")
}

func flatten(groups [][]string) []string {
	var out []string
	for _, g := range groups {
		for _, f := range g {
			if !slices.Contains(out, f) {
				out = append(out, f)
			}
		}
	}
	return out
}
