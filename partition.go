package rapidsql

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// PositionColumn 存在性查询临时表中记录行位置的列
const PositionColumn = "__pos"

// ExistencePartitioner 把候选行划分为目标表中已存在 / 不存在两部分
type ExistencePartitioner struct {
	dialect   *Dialect
	querier   PositionQuerier
	opts      *options
	temporary TemporaryTableSchemaFactory
}

// NewExistencePartitioner 创建存在性划分器
func NewExistencePartitioner(dialect *Dialect, querier PositionQuerier, opts ...Option) *ExistencePartitioner {
	o := newOptions(opts)
	temporary := o.temporary
	if temporary == nil {
		temporary = NewDDLFactory(dialect, o.tempOptions)
	}
	return &ExistencePartitioner{
		dialect:   dialect,
		querier:   querier,
		opts:      o,
		temporary: temporary,
	}
}

// Find 返回 rows 中已存在于目标表的位置
// matchGroups 组内 AND、组间 OR，为空时使用第一行的全部字段
func (p *ExistencePartitioner) Find(ctx context.Context, schema SchemaProvider, matchGroups [][]string, rows []*Row) (*PartitionIndex, error) {
	if len(rows) == 0 {
		return newPartitionIndex(0, nil), nil
	}

	groups := normalizeGroups(matchGroups, rows[0])
	query, err := p.buildQuery(schema, groups, flatten(groups), rows)
	if err != nil {
		return nil, err
	}

	positions, err := p.querier.QueryPositions(ctx, query)
	if err != nil {
		return nil, err
	}
	p.opts.logger.Debug().
		Str("table", schema.TableName()).
		Int("candidates", len(rows)).
		Int("existing", len(positions)).
		Msg("existence partition")
	return newPartitionIndex(len(rows), positions), nil
}

// FindRaw 与 Find 相同，接受无序 map
func (p *ExistencePartitioner) FindRaw(ctx context.Context, schema SchemaProvider, matchGroups [][]string, values []map[string]any) (*PartitionIndex, error) {
	var order []string
	if t, ok := schema.(interface{ FieldNames() []string }); ok {
		order = t.FieldNames()
	}
	rows := make([]*Row, len(values))
	for i, v := range values {
		rows[i] = RowFromMap(v, order)
	}
	return p.Find(ctx, schema, matchGroups, rows)
}

// Query 生成 Find 将要执行的语句，便于检查
func (p *ExistencePartitioner) Query(schema SchemaProvider, matchGroups [][]string, rows []*Row) (PositionQuery, error) {
	if len(rows) == 0 {
		return PositionQuery{}, nil
	}
	groups := normalizeGroups(matchGroups, rows[0])
	return p.buildQuery(schema, groups, flatten(groups), rows)
}

func normalizeGroups(matchGroups [][]string, first *Row) [][]string {
	groups := make([][]string, 0, len(matchGroups))
	for _, g := range matchGroups {
		if len(g) > 0 {
			groups = append(groups, g)
		}
	}
	if len(groups) == 0 {
		groups = [][]string{first.Fields()}
	}
	return groups
}

func (p *ExistencePartitioner) buildQuery(schema SchemaProvider, groups [][]string, fields []string, rows []*Row) (PositionQuery, error) {
	esc := p.dialect.Escaper
	name := p.opts.names.Generate(schema.TableName())

	table := TemporaryTable{Name: name, Columns: make([]TemporaryColumn, len(fields))}
	for i, f := range fields {
		table.Columns[i] = TemporaryColumn{Name: schema.ColumnFor(f), Type: schema.ColumnType(f)}
	}
	for _, g := range groups {
		table.Unique = append(table.Unique, columnsFor(schema, g))
	}
	ddl, err := p.temporary.CreateForExistence(table, PositionColumn)
	if err != nil {
		return PositionQuery{}, err
	}

	tuples := make([]string, len(rows))
	for i, row := range rows {
		projected, err := row.Project(fields)
		if err != nil {
			return PositionQuery{}, fmt.Errorf("row %d: %w", i, err)
		}
		escaped, err := escapeValues(schema, esc, fields, projected.Values())
		if err != nil {
			return PositionQuery{}, fmt.Errorf("row %d: %w", i, err)
		}
		tuples[i] = fmt.Sprintf("(%d, %s)", i, strings.Join(escaped, ", "))
	}

	tmp := esc.EscapeColumn(name)
	pos := esc.EscapeColumn(PositionColumn)
	columns := append([]string{PositionColumn}, columnsFor(schema, fields)...)

	setup := ddl.Create + "\n" +
		fmt.Sprintf("INSERT INTO %s (%s) VALUES %s;", tmp, joinEscaped(esc, columns), strings.Join(tuples, ",\n"))
	query := fmt.Sprintf("SELECT %s.%s FROM %s %s WHERE EXISTS (SELECT 1 FROM %s %s WHERE %s) ORDER BY %s.%s",
		sourceAlias, pos, tmp, sourceAlias,
		esc.EscapeColumn(schema.TableName()), targetAlias, matchPredicate(schema, esc, groups),
		sourceAlias, pos)

	return PositionQuery{
		Table:    schema.TableName(),
		Setup:    setup,
		Query:    query,
		Teardown: ddl.Cleanup,
	}, nil
}

// PartitionIndex 已存在行的位置集合（从 0 开始）
type PartitionIndex struct {
	size      int
	positions map[int]struct{}
}

func newPartitionIndex(size int, positions []int) *PartitionIndex {
	idx := &PartitionIndex{size: size, positions: make(map[int]struct{}, len(positions))}
	for _, p := range positions {
		if p >= 0 && p < size {
			idx.positions[p] = struct{}{}
		}
	}
	return idx
}

// NewPartitionIndex 由已知位置构建索引，越界位置被忽略
func NewPartitionIndex(size int, positions ...int) *PartitionIndex {
	return newPartitionIndex(size, positions)
}

// Contains 位置 i 的行是否存在
func (p *PartitionIndex) Contains(i int) bool {
	_, ok := p.positions[i]
	return ok
}

// Len 已存在的行数
func (p *PartitionIndex) Len() int {
	return len(p.positions)
}

// Size 候选行总数
func (p *PartitionIndex) Size() int {
	return p.size
}

// Positions 已存在行的位置，升序
func (p *PartitionIndex) Positions() []int {
	out := make([]int, 0, len(p.positions))
	for pos := range p.positions {
		out = append(out, pos)
	}
	slices.Sort(out)
	return out
}

// Partition 划分结果
type Partition[T any] struct {
	Existing []T
	Missing  []T
}

// Existing 按原顺序返回已存在的元素
func Existing[T any](idx *PartitionIndex, items []T) []T {
	return Partitions(idx, items).Existing
}

// Missing 按原顺序返回不存在的元素
func Missing[T any](idx *PartitionIndex, items []T) []T {
	return Partitions(idx, items).Missing
}

// Partitions 一次遍历得到两部分
func Partitions[T any](idx *PartitionIndex, items []T) Partition[T] {
	var out Partition[T]
	for i, item := range items {
		if idx.Contains(i) {
			out.Existing = append(out.Existing, item)
		} else {
			out.Missing = append(out.Missing, item)
		}
	}
	return out
}
