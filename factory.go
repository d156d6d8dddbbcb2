package rapidsql

import (
	"slices"
)

// Factory 按方言创建各类操作，共享执行器与默认选项
type Factory struct {
	dialect  *Dialect
	executor Executor
	defaults []Option
}

// NewFactory 创建工厂；未注册的方言返回 UnsupportedPlatformError
func NewFactory(dialectName string, executor Executor, defaults ...Option) (*Factory, error) {
	dialect, err := LookupDialect(dialectName)
	if err != nil {
		return nil, err
	}
	return &Factory{dialect: dialect, executor: executor, defaults: defaults}, nil
}

// Dialect 当前方言
func (f *Factory) Dialect() *Dialect {
	return f.dialect
}

func (f *Factory) options(opts []Option) []Option {
	return append(slices.Clone(f.defaults), opts...)
}

// Insert 普通插入
func (f *Factory) Insert(schema SchemaProvider, opts ...Option) *Inserter {
	return NewInserter(f.dialect, schema, f.executor, f.options(append(opts, WithMode(ModeNormal)))...)
}

// UniqueInsert 冲突时忽略
func (f *Factory) UniqueInsert(schema SchemaProvider, opts ...Option) *Inserter {
	return NewInserter(f.dialect, schema, f.executor, f.options(append(opts, WithMode(ModeInsertNonExisting)))...)
}

// Upsert 冲突时按 selection 更新
func (f *Factory) Upsert(schema SchemaProvider, selection FieldSelection, opts ...Option) *Inserter {
	return NewInserter(f.dialect, schema, f.executor,
		f.options(append(opts, WithMode(ModeUpsert), WithSelection(selection)))...)
}

// Update 按条件字段更新
func (f *Factory) Update(schema SchemaProvider, conditions []string, opts ...Option) *Updater {
	return NewUpdater(f.dialect, schema, f.executor, conditions, f.options(opts)...)
}

// LargeInsert 经临时表插入目标表中不存在的行
func (f *Factory) LargeInsert(schema SchemaProvider, opts ...Option) *LargeOperation {
	return NewLargeOperation(LargeInsert, f.dialect, schema, f.executor, f.options(opts)...)
}

// LargeUpdate 经临时表连接更新
func (f *Factory) LargeUpdate(schema SchemaProvider, selection FieldSelection, opts ...Option) *LargeOperation {
	return NewLargeOperation(LargeUpdate, f.dialect, schema, f.executor,
		f.options(append(opts, WithSelection(selection)))...)
}

// LargeUpsert 经临时表先更新再插入
func (f *Factory) LargeUpsert(schema SchemaProvider, selection FieldSelection, opts ...Option) *LargeOperation {
	return NewLargeOperation(LargeUpsert, f.dialect, schema, f.executor,
		f.options(append(opts, WithSelection(selection)))...)
}

// Batched 包装操作，每 size 行自动执行
func (f *Factory) Batched(op Operation, size int) (*Batched, error) {
	return NewBatched(op, size)
}

// Partitioner 存在性划分器；执行器需实现 PositionQuerier
func (f *Factory) Partitioner(opts ...Option) (*ExistencePartitioner, error) {
	querier, ok := f.executor.(PositionQuerier)
	if !ok {
		return nil, &ConfigurationError{Reason: "executor does not support position queries"}
	}
	return NewExistencePartitioner(f.dialect, querier, f.options(opts)...), nil
}
