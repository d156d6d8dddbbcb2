package rapidsql

import (
	"github.com/rs/zerolog"
)

// Mode 插入模式
type Mode int

const (
	// ModeNormal 普通插入
	ModeNormal Mode = iota
	// ModeUpsert 冲突时更新
	ModeUpsert
	// ModeInsertNonExisting 冲突时忽略
	ModeInsertNonExisting
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeUpsert:
		return "upsert"
	case ModeInsertNonExisting:
		return "insert_non_existing"
	default:
		return "unknown"
	}
}

type options struct {
	mode          Mode
	selection     FieldSelection
	matchFields   [][]string
	names         NameGenerator
	transactional *bool
	temporary     TemporaryTableSchemaFactory
	tempOptions   TemporaryTableOptions
	logger        zerolog.Logger
}

// Option 操作选项
type Option func(*options)

func newOptions(opts []Option) *options {
	o := &options{
		selection: AllFields(),
		names:     RandomNameGenerator{},
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) isTransactional(def bool) bool {
	if o.transactional == nil {
		return def
	}
	return *o.transactional
}

// WithMode 设置插入模式
func WithMode(mode Mode) Option {
	return func(o *options) { o.mode = mode }
}

// WithSelection 设置冲突更新的字段选择
func WithSelection(selection FieldSelection) Option {
	return func(o *options) {
		if selection != nil {
			o.selection = selection
		}
	}
}

// WithMatchFields 设置匹配字段组，组内 AND、组间 OR
func WithMatchFields(groups ...[]string) Option {
	return func(o *options) { o.matchFields = groups }
}

// WithNameGenerator 设置临时表名称生成器
func WithNameGenerator(g NameGenerator) Option {
	return func(o *options) {
		if g != nil {
			o.names = g
		}
	}
}

// WithTransactional 覆盖操作默认的事务设置
func WithTransactional(transactional bool) Option {
	return func(o *options) { o.transactional = &transactional }
}

// WithTemporaryTableFactory 自定义临时表 DDL 生成器
func WithTemporaryTableFactory(f TemporaryTableSchemaFactory) Option {
	return func(o *options) { o.temporary = f }
}

// WithTemporaryTableOptions 设置默认 DDL 生成器的选项
func WithTemporaryTableOptions(opts TemporaryTableOptions) Option {
	return func(o *options) { o.tempOptions = opts }
}

// WithLogger 设置日志
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}
