package rapidsql

import (
	"context"
	"slices"
)

// SchemaProvider 提供目标表的字段 -> 列映射及约束信息
type SchemaProvider interface {
	// TableName 目标表名（未转义）
	TableName() string
	// ColumnFor 字段对应的列名
	ColumnFor(field string) string
	// IdentifierColumns 标识列（主键）的列名
	IdentifierColumns() []string
	// UniqueFieldGroups 唯一约束，每组为字段名列表
	UniqueFieldGroups() [][]string
	IsInsertable(field string) bool
	IsUpdatable(field string) bool
	IsIdentifier(field string) bool
	// ColumnType 列的 SQL 类型，用于临时表 DDL；未知时返回空字符串
	ColumnType(field string) string
}

// Field 静态字段定义
type Field struct {
	Name          string
	Column        string
	Type          string
	Identifier    bool
	AutoIncrement bool
	NotInsertable bool
	NotUpdatable  bool
}

// Table 静态表结构，实现 SchemaProvider
type Table struct {
	name   string
	fields []Field
	byName map[string]int
	unique [][]string
}

// NewTable 创建表结构
func NewTable(name string, fields ...Field) *Table {
	t := &Table{
		name:   name,
		byName: make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		t.AddField(f)
	}
	return t
}

// AddField 添加字段（链式调用）；同名字段覆盖
func (t *Table) AddField(f Field) *Table {
	if f.Column == "" {
		f.Column = f.Name
	}
	if i, ok := t.byName[f.Name]; ok {
		t.fields[i] = f
		return t
	}
	t.byName[f.Name] = len(t.fields)
	t.fields = append(t.fields, f)
	return t
}

// WithUnique 添加唯一约束（链式调用）
func (t *Table) WithUnique(fields ...string) *Table {
	if len(fields) > 0 {
		t.unique = append(t.unique, slices.Clone(fields))
	}
	return t
}

// TableName 获取表名
func (t *Table) TableName() string {
	return t.name
}

// FieldNames 按声明顺序返回字段名
func (t *Table) FieldNames() []string {
	names := make([]string, len(t.fields))
	for i, f := range t.fields {
		names[i] = f.Name
	}
	return names
}

// Field 按名称获取字段定义
func (t *Table) Field(name string) (Field, bool) {
	if i, ok := t.byName[name]; ok {
		return t.fields[i], true
	}
	return Field{}, false
}

func (t *Table) ColumnFor(field string) string {
	if f, ok := t.Field(field); ok {
		return f.Column
	}
	return field
}

func (t *Table) IdentifierColumns() []string {
	var cols []string
	for _, f := range t.fields {
		if f.Identifier {
			cols = append(cols, f.Column)
		}
	}
	return cols
}

// UniqueFieldGroups 返回显式唯一约束；非自增主键本身也是一个唯一组
func (t *Table) UniqueFieldGroups() [][]string {
	groups := make([][]string, 0, len(t.unique)+1)
	var ids []string
	auto := false
	for _, f := range t.fields {
		if f.Identifier {
			ids = append(ids, f.Name)
			auto = auto || f.AutoIncrement
		}
	}
	if len(ids) > 0 && !auto {
		groups = append(groups, ids)
	}
	for _, g := range t.unique {
		if !containsGroup(groups, g) {
			groups = append(groups, slices.Clone(g))
		}
	}
	return groups
}

func (t *Table) IsInsertable(field string) bool {
	f, ok := t.Field(field)
	return !ok || !f.NotInsertable
}

func (t *Table) IsUpdatable(field string) bool {
	f, ok := t.Field(field)
	return !ok || !f.NotUpdatable
}

func (t *Table) IsIdentifier(field string) bool {
	f, ok := t.Field(field)
	return ok && f.Identifier
}

func (t *Table) ColumnType(field string) string {
	f, _ := t.Field(field)
	return f.Type
}

func containsGroup(groups [][]string, g []string) bool {
	for _, existing := range groups {
		if slices.Equal(existing, g) {
			return true
		}
	}
	return false
}

// columnsFor maps fields to their columns
func columnsFor(schema SchemaProvider, fields []string) []string {
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = schema.ColumnFor(f)
	}
	return cols
}

// insertableFields 过滤掉不可插入的字段
func insertableFields(schema SchemaProvider, fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if schema.IsInsertable(f) {
			out = append(out, f)
		}
	}
	return out
}

// updatableFields 过滤掉不可更新的字段
func updatableFields(schema SchemaProvider, fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if schema.IsUpdatable(f) {
			out = append(out, f)
		}
	}
	return out
}

// coveredUniqueGroups 返回字段完全出现在 fields 中的唯一组
func coveredUniqueGroups(schema SchemaProvider, fields []string) [][]string {
	var out [][]string
	for _, g := range schema.UniqueFieldGroups() {
		covered := true
		for _, f := range g {
			if !slices.Contains(fields, f) {
				covered = false
				break
			}
		}
		if covered {
			out = append(out, g)
		}
	}
	return out
}

// Operation 批量数据变更操作
type Operation interface {
	// AddRaw 添加一行无序数据
	AddRaw(values map[string]any) error
	// Add 添加一行
	Add(row *Row) error
	// Execute 执行并重置；空缓冲返回 0 且不访问执行器
	Execute(ctx context.Context) (int, error)
	// SQL 当前缓冲生成的脚本
	SQL() (string, error)
	// ItemCount 当前已添加的行数
	ItemCount() int
}

// AddAll 使用提取函数把领域对象逐个加入操作
func AddAll[T any](op Operation, items []T, extract func(T) *Row) error {
	for _, item := range items {
		if err := op.Add(extract(item)); err != nil {
			return err
		}
	}
	return nil
}
