package rapidsql

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// NameGenerator 为临时表生成名称
type NameGenerator interface {
	Generate(original string) string
}

// RandomNameGenerator 原表名 + "_tmp_" + 随机十六进制后缀
type RandomNameGenerator struct{}

func (RandomNameGenerator) Generate(original string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_tmp_%s", original, hex.EncodeToString(id[:8]))
}

// SuffixNameGenerator 确定性名称，适用于测试；Sequence 为 true 时追加递增序号
type SuffixNameGenerator struct {
	Suffix   string
	Sequence bool
	counter  atomic.Int64
}

// NewSuffixNameGenerator 创建后缀名称生成器
func NewSuffixNameGenerator(suffix string) *SuffixNameGenerator {
	return &SuffixNameGenerator{Suffix: suffix}
}

func (g *SuffixNameGenerator) Generate(original string) string {
	suffix := g.Suffix
	if suffix == "" {
		suffix = "_tmp"
	}
	if g.Sequence {
		return fmt.Sprintf("%s%s%d", original, suffix, g.counter.Add(1))
	}
	return original + suffix
}

// TemporaryColumn 临时表列
type TemporaryColumn struct {
	Name string
	Type string
}

// TemporaryTable 临时表定义；名称与列名均未转义
type TemporaryTable struct {
	Name    string
	Columns []TemporaryColumn
	// Unique 需要复制到临时表的唯一约束（列名）
	Unique [][]string
}

// TemporaryDDL 临时表的建表、删除与失败清理语句
type TemporaryDDL struct {
	Create  string
	Drop    string
	Cleanup string
}

// TemporaryTableSchemaFactory 生成临时表 DDL
type TemporaryTableSchemaFactory interface {
	Create(table TemporaryTable) (TemporaryDDL, error)
	// CreateForExistence 额外带位置列，并把 Unique 中的列组建为普通索引
	CreateForExistence(table TemporaryTable, positionColumn string) (TemporaryDDL, error)
}

// TemporaryTableOptions 临时表选项
type TemporaryTableOptions struct {
	Collation string `yaml:"collation"`
}

// DDLFactory 基于方言的临时表 DDL 生成器
type DDLFactory struct {
	dialect *Dialect
	options TemporaryTableOptions
}

// NewDDLFactory 创建 DDL 生成器
func NewDDLFactory(dialect *Dialect, options TemporaryTableOptions) *DDLFactory {
	return &DDLFactory{dialect: dialect, options: options}
}

func (f *DDLFactory) Create(table TemporaryTable) (TemporaryDDL, error) {
	if len(table.Columns) == 0 {
		return TemporaryDDL{}, &ConfigurationError{Table: table.Name, Reason: "temporary table requires at least one column"}
	}
	esc := f.dialect.Escaper
	defs, err := f.columnDefinitions(table)
	if err != nil {
		return TemporaryDDL{}, err
	}
	for _, group := range table.Unique {
		defs = append(defs, "UNIQUE ("+joinEscaped(esc, group)+")")
	}
	return f.build(table.Name, defs, nil), nil
}

func (f *DDLFactory) CreateForExistence(table TemporaryTable, positionColumn string) (TemporaryDDL, error) {
	if len(table.Columns) == 0 {
		return TemporaryDDL{}, &ConfigurationError{Table: table.Name, Reason: "temporary table requires at least one column"}
	}
	esc := f.dialect.Escaper
	posType := f.dialect.Temporary.PositionType
	if posType == "" {
		posType = "INTEGER"
	}
	columns, err := f.columnDefinitions(table)
	if err != nil {
		return TemporaryDDL{}, err
	}
	defs := append([]string{esc.EscapeColumn(positionColumn) + " " + posType}, columns...)

	indexes := make([]string, 0, len(table.Unique))
	for i, group := range table.Unique {
		indexes = append(indexes, fmt.Sprintf("CREATE INDEX %s ON %s (%s);",
			esc.EscapeColumn(fmt.Sprintf("%s_idx%d", table.Name, i)),
			esc.EscapeColumn(table.Name),
			joinEscaped(esc, group)))
	}
	return f.build(table.Name, defs, indexes), nil
}

// columnDefinitions 未声明类型的列按是否参与唯一约束选择默认类型
func (f *DDLFactory) columnDefinitions(table TemporaryTable) ([]string, error) {
	style := f.dialect.Temporary
	esc := f.dialect.Escaper
	keys := make(map[string]bool)
	for _, group := range table.Unique {
		for _, c := range group {
			keys[c] = true
		}
	}

	defs := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		typ := c.Type
		if typ == "" {
			if style.RequireColumnType {
				return nil, &ConfigurationError{
					Table:  table.Name,
					Reason: fmt.Sprintf("column %s has no type; %s requires typed columns", c.Name, f.dialect.Name),
				}
			}
			typ = style.DefaultColumnType
			if keys[c.Name] && style.DefaultKeyColumnType != "" {
				typ = style.DefaultKeyColumnType
			}
		}
		defs[i] = strings.TrimSpace(esc.EscapeColumn(c.Name) + " " + typ)
	}
	return defs, nil
}

func (f *DDLFactory) build(name string, defs, indexes []string) TemporaryDDL {
	style := f.dialect.Temporary
	escaped := f.dialect.Escaper.EscapeColumn(name)

	var b strings.Builder
	b.WriteString(fmt.Sprintf(style.Create, escaped))
	b.WriteString(" (")
	b.WriteString(strings.Join(defs, ", "))
	b.WriteString(")")
	if f.options.Collation != "" && style.Collation != "" {
		b.WriteString(" ")
		b.WriteString(fmt.Sprintf(style.Collation, f.options.Collation))
	}
	b.WriteString(";")
	for _, idx := range indexes {
		b.WriteString("\n")
		b.WriteString(idx)
	}

	return TemporaryDDL{
		Create:  b.String(),
		Drop:    fmt.Sprintf(style.Drop, escaped) + ";",
		Cleanup: fmt.Sprintf(style.DropIfExists, escaped) + ";",
	}
}

// temporaryTableFor 为 fields 构建临时表定义，复制被完整覆盖的唯一约束
func temporaryTableFor(schema SchemaProvider, name string, fields []string) TemporaryTable {
	table := TemporaryTable{Name: name, Columns: make([]TemporaryColumn, len(fields))}
	for i, field := range fields {
		table.Columns[i] = TemporaryColumn{Name: schema.ColumnFor(field), Type: schema.ColumnType(field)}
	}
	for _, group := range coveredUniqueGroups(schema, fields) {
		table.Unique = append(table.Unique, columnsFor(schema, group))
	}
	return table
}

func joinEscaped(esc Escaper, columns []string) string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = esc.EscapeColumn(c)
	}
	return strings.Join(out, ", ")
}
