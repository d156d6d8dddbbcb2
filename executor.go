package rapidsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Script 一次执行的完整 SQL 脚本
type Script struct {
	Table string
	SQL   string
	// Statements 非空时逐条执行并累加影响行数，SQL 仅用于日志与指标
	Statements    []string
	Transactional bool
	// FixedCount 大于 0 时作为返回的影响行数，忽略驱动上报的值
	FixedCount int
	// Items 脚本包含的行数（用于日志与指标）
	Items int
	// Cleanup 脚本失败后在同一连接上执行的幂等清理语句
	Cleanup string
}

// Executor 执行 SQL 脚本
type Executor interface {
	Execute(ctx context.Context, script Script) (int, error)
}

// PositionQuery 建表、查询、删表在同一连接上执行
type PositionQuery struct {
	Table    string
	Setup    string
	Query    string
	Teardown string
}

// PositionQuerier 执行位置查询，返回第一列的整数值
type PositionQuerier interface {
	QueryPositions(ctx context.Context, query PositionQuery) ([]int, error)
}

const cleanupTimeout = 5 * time.Second

// SQLExecutor 基于 database/sql 的执行器
// 每个脚本独占一个连接，保证会话级临时表在脚本内可见
type SQLExecutor struct {
	db              *sql.DB
	metricsReporter MetricsReporter
	semaphore       chan struct{} // 可选信号量，用于限制并发
	logger          zerolog.Logger
}

// NewSQLExecutor 创建执行器
func NewSQLExecutor(db *sql.DB) *SQLExecutor {
	return &SQLExecutor{
		db:              db,
		metricsReporter: NewNoopMetricsReporter(),
		logger:          zerolog.Nop(),
	}
}

// WithMetricsReporter 设置指标报告器
func (e *SQLExecutor) WithMetricsReporter(metricsReporter MetricsReporter) *SQLExecutor {
	if metricsReporter == nil {
		metricsReporter = NewNoopMetricsReporter()
	}
	e.metricsReporter = metricsReporter
	// 注入 reporter 后，立即上报一次当前并发度
	e.metricsReporter.SetConcurrency(cap(e.semaphore))
	return e
}

// WithConcurrencyLimit 设置并发上限（limit <= 0 表示不启用限流）
func (e *SQLExecutor) WithConcurrencyLimit(limit int) *SQLExecutor {
	if limit > 0 {
		e.semaphore = make(chan struct{}, limit)
	} else {
		e.semaphore = nil
	}
	e.metricsReporter.SetConcurrency(cap(e.semaphore))
	return e
}

// WithLogger 设置日志
func (e *SQLExecutor) WithLogger(logger zerolog.Logger) *SQLExecutor {
	e.logger = logger
	return e
}

func (e *SQLExecutor) acquire(ctx context.Context) (func(), error) {
	if e.semaphore == nil {
		return func() {}, nil
	}
	select {
	case e.semaphore <- struct{}{}:
		return func() { <-e.semaphore }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Execute 执行脚本；失败时执行清理语句并返回 ExecutionError
func (e *SQLExecutor) Execute(ctx context.Context, script Script) (int, error) {
	if script.SQL == "" {
		return 0, nil
	}
	release, err := e.acquire(ctx)
	if err != nil {
		return 0, &ExecutionError{Table: script.Table, Err: err}
	}
	defer release()

	e.metricsReporter.IncInflight()
	defer e.metricsReporter.DecInflight()
	e.metricsReporter.ObserveScriptSize(script.Table, len(script.SQL))

	startTime := time.Now()
	affected, err := e.execute(ctx, script)
	duration := time.Since(startTime)

	if err != nil {
		e.metricsReporter.IncError(script.Table, "execute")
		e.metricsReporter.ObserveExecuteDuration(script.Table, script.Items, duration, "fail")
		e.logger.Error().Err(err).
			Str("table", script.Table).
			Int("items", script.Items).
			Dur("duration", duration).
			Msg("script execution failed")
		return 0, &ExecutionError{Table: script.Table, Err: err}
	}

	e.metricsReporter.ObserveExecuteDuration(script.Table, script.Items, duration, "success")
	e.logger.Debug().
		Str("table", script.Table).
		Int("items", script.Items).
		Int("bytes", len(script.SQL)).
		Int("affected", affected).
		Dur("duration", duration).
		Msg("script executed")
	return affected, nil
}

func (e *SQLExecutor) execute(ctx context.Context, script Script) (int, error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	affected, err := e.run(ctx, conn, script)
	if err != nil {
		if cleanupErr := e.cleanup(ctx, conn, script); cleanupErr != nil {
			err = errors.Join(err, cleanupErr)
		}
		return 0, err
	}
	if script.FixedCount > 0 {
		return script.FixedCount, nil
	}
	return affected, nil
}

func (e *SQLExecutor) run(ctx context.Context, conn *sql.Conn, script Script) (int, error) {
	var execer interface {
		ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	} = conn
	var tx *sql.Tx
	if script.Transactional {
		var err error
		tx, err = conn.BeginTx(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("begin transaction: %w", err)
		}
		execer = tx
	}

	statements := script.Statements
	if len(statements) == 0 {
		statements = []string{script.SQL}
	}
	affected := 0
	for _, stmt := range statements {
		res, err := execer.ExecContext(ctx, stmt)
		if err == nil && script.FixedCount == 0 {
			var n int64
			if n, err = res.RowsAffected(); err != nil {
				err = fmt.Errorf("rows affected: %w", err)
			}
			affected += int(n)
		}
		if err != nil {
			if tx != nil {
				if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
					err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
				}
			}
			return 0, err
		}
	}
	if tx != nil {
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("commit: %w", err)
		}
	}
	if script.FixedCount > 0 {
		return script.FixedCount, nil
	}
	return affected, nil
}

// cleanup 在原连接上执行清理，不受调用方取消影响
func (e *SQLExecutor) cleanup(ctx context.Context, conn *sql.Conn, script Script) error {
	if script.Cleanup == "" {
		return nil
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if _, err := conn.ExecContext(cctx, script.Cleanup); err != nil {
		e.metricsReporter.IncError(script.Table, "cleanup")
		e.logger.Warn().Err(err).Str("table", script.Table).Msg("cleanup failed")
		return fmt.Errorf("cleanup: %w", err)
	}
	return nil
}

// QueryPositions 在同一连接上依次执行建表、查询、删表；删表总会执行
func (e *SQLExecutor) QueryPositions(ctx context.Context, query PositionQuery) (positions []int, err error) {
	release, err := e.acquire(ctx)
	if err != nil {
		return nil, &ExecutionError{Table: query.Table, Err: err}
	}
	defer release()

	e.metricsReporter.IncInflight()
	defer e.metricsReporter.DecInflight()

	startTime := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "fail"
			e.metricsReporter.IncError(query.Table, "query")
		}
		e.metricsReporter.ObserveExecuteDuration(query.Table, len(positions), time.Since(startTime), status)
	}()

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, &ExecutionError{Table: query.Table, Err: fmt.Errorf("acquire connection: %w", err)}
	}
	defer conn.Close()

	positions, err = e.queryPositions(ctx, conn, query)
	if query.Teardown != "" {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if _, tdErr := conn.ExecContext(cctx, query.Teardown); tdErr != nil {
			e.logger.Warn().Err(tdErr).Str("table", query.Table).Msg("teardown failed")
			err = errors.Join(err, fmt.Errorf("teardown: %w", tdErr))
		}
	}
	if err != nil {
		return nil, &ExecutionError{Table: query.Table, Err: err}
	}
	e.logger.Debug().Str("table", query.Table).Int("positions", len(positions)).Msg("positions queried")
	return positions, nil
}

func (e *SQLExecutor) queryPositions(ctx context.Context, conn *sql.Conn, query PositionQuery) ([]int, error) {
	if query.Setup != "" {
		if _, err := conn.ExecContext(ctx, query.Setup); err != nil {
			return nil, fmt.Errorf("setup: %w", err)
		}
	}
	rows, err := conn.QueryContext(ctx, query.Query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var positions []int
	for rows.Next() {
		var pos int
		if err := rows.Scan(&pos); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return positions, nil
}

// MockExecutor 记录脚本的模拟执行器（用于测试）
type MockExecutor struct {
	mu        sync.RWMutex
	scripts   []Script
	queries   []PositionQuery
	Err       error
	Positions []int
}

// NewMockExecutor 创建模拟执行器
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{}
}

// Execute 记录脚本；返回 FixedCount 或行数
func (e *MockExecutor) Execute(_ context.Context, script Script) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scripts = append(e.scripts, script)
	if e.Err != nil {
		return 0, &ExecutionError{Table: script.Table, Err: e.Err}
	}
	if script.FixedCount > 0 {
		return script.FixedCount, nil
	}
	return script.Items, nil
}

// QueryPositions 记录查询并返回预设位置
func (e *MockExecutor) QueryPositions(_ context.Context, query PositionQuery) ([]int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queries = append(e.queries, query)
	if e.Err != nil {
		return nil, &ExecutionError{Table: query.Table, Err: e.Err}
	}
	out := make([]int, len(e.Positions))
	copy(out, e.Positions)
	return out, nil
}

// SnapshotScripts 返回一次性快照，避免并发读写竞态
func (e *MockExecutor) SnapshotScripts() []Script {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Script, len(e.scripts))
	copy(out, e.scripts)
	return out
}

// SnapshotQueries 返回已执行的位置查询
func (e *MockExecutor) SnapshotQueries() []PositionQuery {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]PositionQuery, len(e.queries))
	copy(out, e.queries)
	return out
}
