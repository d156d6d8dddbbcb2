package rapidsql

import (
	"context"
	"strings"
)

// serializer 把行序列化为脚本片段，由 accumulator 组合使用
type serializer interface {
	// begin 在批次第一行时调用，fields 为已确定的字段顺序
	begin(fields []string) error
	// tuple 渲染一行
	tuple(fields []string, values []any) (string, error)
	separator() string
	// finish 用已渲染的行组装完整脚本
	finish(fields []string, body string) (string, error)
	// script 执行参数（事务、固定计数、清理语句）；parts 为逐行渲染的片段
	script(sql string, parts []string, items int) Script
}

// accumulator 行累加器：校验字段顺序并把每行追加到 SQL 缓冲
type accumulator struct {
	schema   SchemaProvider
	executor Executor
	ser      serializer
	fields   []string
	parts    []string
}

func newAccumulator(schema SchemaProvider, executor Executor, ser serializer) *accumulator {
	return &accumulator{schema: schema, executor: executor, ser: ser}
}

func (a *accumulator) Add(row *Row) error {
	fields := row.Fields()
	if len(a.parts) == 0 {
		if len(fields) == 0 {
			return &ConfigurationError{Table: a.schema.TableName(), Reason: "row has no fields"}
		}
		if err := a.ser.begin(fields); err != nil {
			return err
		}
	} else if err := checkFields(a.fields, fields); err != nil {
		return err
	}

	t, err := a.ser.tuple(fields, row.Values())
	if err != nil {
		return err
	}
	if len(a.parts) == 0 {
		a.fields = fields
	}
	a.parts = append(a.parts, t)
	return nil
}

// AddRaw 按批次已确定的顺序（首行时按表声明顺序）排列 map 的键
func (a *accumulator) AddRaw(values map[string]any) error {
	order := a.fields
	if len(a.parts) == 0 {
		if t, ok := a.schema.(interface{ FieldNames() []string }); ok {
			order = t.FieldNames()
		}
	}
	return a.Add(RowFromMap(values, order))
}

func (a *accumulator) SQL() (string, error) {
	if len(a.parts) == 0 {
		return "", nil
	}
	return a.ser.finish(a.fields, strings.Join(a.parts, a.ser.separator()))
}

func (a *accumulator) ItemCount() int {
	return len(a.parts)
}

// Execute 执行并重置；空缓冲不访问执行器
func (a *accumulator) Execute(ctx context.Context) (int, error) {
	if len(a.parts) == 0 {
		return 0, nil
	}
	sql, err := a.SQL()
	if err != nil {
		return 0, err
	}
	script := a.ser.script(sql, a.parts, len(a.parts))
	a.reset()
	return a.executor.Execute(ctx, script)
}

func (a *accumulator) reset() {
	a.fields = nil
	a.parts = nil
}

func escapeValues(schema SchemaProvider, esc Escaper, fields []string, values []any) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		s, err := esc.EscapeValue(v, schema.ColumnFor(fields[i]))
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
