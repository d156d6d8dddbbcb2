package rapidsql

import (
	"context"
	"fmt"
)

// Batched 包装一个操作，每累计 size 行自动执行一次
//
// Add 可能触发执行，因此需要 context；Batched 本身不实现 Operation。
type Batched struct {
	inner   Operation
	size    int
	pending int
	total   int
	items   int
}

// NewBatched 创建批量包装器；size <= 0 时返回错误
func NewBatched(inner Operation, size int) (*Batched, error) {
	if inner == nil {
		return nil, &ConfigurationError{Reason: "batched operation requires an inner operation"}
	}
	if size <= 0 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("batch size must be positive, got %d", size)}
	}
	return &Batched{inner: inner, size: size}, nil
}

// Add 添加一行，达到批次大小时执行内部操作
func (b *Batched) Add(ctx context.Context, row *Row) error {
	if err := b.inner.Add(row); err != nil {
		return err
	}
	return b.added(ctx)
}

// AddRaw 添加一行无序数据，达到批次大小时执行内部操作
func (b *Batched) AddRaw(ctx context.Context, values map[string]any) error {
	if err := b.inner.AddRaw(values); err != nil {
		return err
	}
	return b.added(ctx)
}

func (b *Batched) added(ctx context.Context) error {
	b.items++
	b.pending++
	if b.pending < b.size {
		return nil
	}
	return b.flush(ctx)
}

func (b *Batched) flush(ctx context.Context) error {
	b.pending = 0
	n, err := b.inner.Execute(ctx)
	if err != nil {
		return err
	}
	b.total += n
	return nil
}

// Execute 执行剩余的行，返回自上次 Execute 以来的累计影响行数并清零
func (b *Batched) Execute(ctx context.Context) (int, error) {
	if err := b.flush(ctx); err != nil {
		return 0, err
	}
	total := b.total
	b.total = 0
	return total, nil
}

// SQL 内部操作当前缓冲的脚本
func (b *Batched) SQL() (string, error) {
	return b.inner.SQL()
}

// ItemCount 累计添加过的行数
func (b *Batched) ItemCount() int {
	return b.items
}

// Inner 内部操作
func (b *Batched) Inner() Operation {
	return b.inner
}
