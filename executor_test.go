package rapidsql_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/rushairer/rapidsql"
)

// recordingReporter 记录回调的测试用 MetricsReporter
type recordingReporter struct {
	mu          sync.Mutex
	inflight    int
	maxInflight int
	statuses    []string
	errors      []string
	sizes       []int
	concurrency int
}

func (r *recordingReporter) ObserveExecuteDuration(_ string, _ int, _ time.Duration, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *recordingReporter) ObserveScriptSize(_ string, bytes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sizes = append(r.sizes, bytes)
}

func (r *recordingReporter) IncInflight() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inflight++
	if r.inflight > r.maxInflight {
		r.maxInflight = r.inflight
	}
}

func (r *recordingReporter) DecInflight() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inflight--
}

func (r *recordingReporter) IncError(_ string, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, kind)
}

func (r *recordingReporter) SetConcurrency(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.concurrency = n
}

func newMock(t *testing.T) (*rapidsql.SQLExecutor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return rapidsql.NewSQLExecutor(db), mock
}

func TestSQLExecutorExecute(t *testing.T) {
	executor, mock := newMock(t)
	reporter := &recordingReporter{}
	executor.WithMetricsReporter(reporter).WithConcurrencyLimit(4)

	const stmt = "INSERT INTO `post` (`id`) VALUES (1),\n(2);"
	mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := executor.Execute(context.Background(), rapidsql.Script{Table: "post", SQL: stmt, Items: 2})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 affected, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}

	if reporter.inflight != 0 || reporter.maxInflight != 1 {
		t.Fatalf("unexpected inflight accounting: now=%d max=%d", reporter.inflight, reporter.maxInflight)
	}
	if len(reporter.statuses) != 1 || reporter.statuses[0] != "success" {
		t.Fatalf("unexpected statuses: %v", reporter.statuses)
	}
	if len(reporter.sizes) != 1 || reporter.sizes[0] != len(stmt) {
		t.Fatalf("unexpected script sizes: %v", reporter.sizes)
	}
	if reporter.concurrency != 4 {
		t.Fatalf("expected concurrency 4, got %d", reporter.concurrency)
	}
}

func TestSQLExecutorTransactional(t *testing.T) {
	executor, mock := newMock(t)

	const stmt = "UPDATE `post` SET `title` = 'a' WHERE `id` = 1;"
	mock.ExpectBegin()
	mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := executor.Execute(context.Background(), rapidsql.Script{Table: "post", SQL: stmt, Transactional: true, Items: 1})
	if err != nil || n != 1 {
		t.Fatalf("expected 1, nil; got %d, %v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// TestSQLExecutorStatements 逐条执行并累加每条语句的影响行数
func TestSQLExecutorStatements(t *testing.T) {
	executor, mock := newMock(t)

	statements := []string{
		"UPDATE `post` SET `title` = 'a' WHERE `id` = 1;",
		"UPDATE `post` SET `title` = 'b' WHERE `id` = 2;",
		"UPDATE `post` SET `title` = 'z' WHERE `id` = 99;",
	}
	mock.ExpectBegin()
	mock.ExpectExec(statements[0]).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(statements[1]).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(statements[2]).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	n, err := executor.Execute(context.Background(), rapidsql.Script{
		Table:         "post",
		SQL:           strings.Join(statements, "\n"),
		Statements:    statements,
		Transactional: true,
		Items:         3,
	})
	if err != nil || n != 2 {
		t.Fatalf("expected 2, nil; got %d, %v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// TestSQLExecutorStatementsRollback 中途失败时回滚，后续语句不再执行
func TestSQLExecutorStatementsRollback(t *testing.T) {
	executor, mock := newMock(t)

	cause := errors.New("lock wait timeout")
	statements := []string{"UPDATE t SET a = 1 WHERE id = 1;", "UPDATE t SET a = 2 WHERE id = 2;", "UPDATE t SET a = 3 WHERE id = 3;"}
	mock.ExpectBegin()
	mock.ExpectExec(statements[0]).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(statements[1]).WillReturnError(cause)
	mock.ExpectRollback()

	_, err := executor.Execute(context.Background(), rapidsql.Script{
		Table:         "t",
		SQL:           strings.Join(statements, "\n"),
		Statements:    statements,
		Transactional: true,
	})
	if !errors.Is(err, cause) || !errors.Is(err, rapidsql.ErrExecution) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSQLExecutorRollbackAndCleanup(t *testing.T) {
	executor, mock := newMock(t)
	reporter := &recordingReporter{}
	executor.WithMetricsReporter(reporter)

	cause := errors.New("duplicate entry")
	const stmt = "CREATE TEMPORARY TABLE `post_tmp` (`id` INT);\n\nINSERT INTO `post_tmp` (`id`) VALUES (1);"
	const cleanup = "DROP TEMPORARY TABLE IF EXISTS `post_tmp`;"
	mock.ExpectBegin()
	mock.ExpectExec(stmt).WillReturnError(cause)
	mock.ExpectRollback()
	mock.ExpectExec(cleanup).WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := executor.Execute(context.Background(), rapidsql.Script{
		Table:         "post",
		SQL:           stmt,
		Transactional: true,
		FixedCount:    1,
		Items:         1,
		Cleanup:       cleanup,
	})
	if !errors.Is(err, rapidsql.ErrExecution) {
		t.Fatalf("expected ErrExecution, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected the driver error in the chain, got %v", err)
	}
	var execErr *rapidsql.ExecutionError
	if !errors.As(err, &execErr) || execErr.Table != "post" {
		t.Fatalf("expected ExecutionError for post, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
	if len(reporter.errors) != 1 || reporter.errors[0] != "execute" {
		t.Fatalf("unexpected error kinds: %v", reporter.errors)
	}
	if reporter.statuses[0] != "fail" {
		t.Fatalf("expected fail status, got %v", reporter.statuses)
	}
}

func TestSQLExecutorFixedCount(t *testing.T) {
	executor, mock := newMock(t)
	const stmt = "SELECT 1;"
	mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := executor.Execute(context.Background(), rapidsql.Script{SQL: stmt, FixedCount: 5})
	if err != nil || n != 5 {
		t.Fatalf("expected 5, nil; got %d, %v", n, err)
	}
}

func TestSQLExecutorEmptyScript(t *testing.T) {
	executor, mock := newMock(t)
	n, err := executor.Execute(context.Background(), rapidsql.Script{})
	if err != nil || n != 0 {
		t.Fatalf("expected 0, nil; got %d, %v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// startedReporter 第一个脚本开始执行时关闭 started
type startedReporter struct {
	rapidsql.NoopMetricsReporter
	once    sync.Once
	started chan struct{}
}

func (r *startedReporter) IncInflight() {
	r.once.Do(func() { close(r.started) })
}

func TestSQLExecutorWaitsForSlot(t *testing.T) {
	executor, mock := newMock(t)
	reporter := &startedReporter{started: make(chan struct{})}
	executor.WithMetricsReporter(reporter).WithConcurrencyLimit(1)

	mock.ExpectExec("SELECT 1;").WillDelayFor(200 * time.Millisecond).WillReturnResult(sqlmock.NewResult(0, 1))

	done := make(chan error, 1)
	go func() {
		_, err := executor.Execute(context.Background(), rapidsql.Script{SQL: "SELECT 1;"})
		done <- err
	}()
	<-reporter.started

	// 唯一的槽位被占用，等待超时
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := executor.Execute(ctx, rapidsql.Script{Table: "post", SQL: "SELECT 2;"})
	if !errors.Is(err, rapidsql.ErrExecution) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded while waiting, got %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("first script: %v", err)
	}
}

func TestSQLExecutorQueryPositions(t *testing.T) {
	executor, mock := newMock(t)

	query := rapidsql.PositionQuery{
		Table:    "users",
		Setup:    "CREATE TEMP TABLE \"users_tmp\" (\"__pos\" INTEGER, \"email\" TEXT);",
		Query:    "SELECT t2.\"__pos\" FROM \"users_tmp\" t2",
		Teardown: "DROP TABLE IF EXISTS temp.\"users_tmp\";",
	}
	mock.ExpectExec(query.Setup).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(query.Query).WillReturnRows(sqlmock.NewRows([]string{"__pos"}).AddRow(0).AddRow(2))
	mock.ExpectExec(query.Teardown).WillReturnResult(sqlmock.NewResult(0, 0))

	positions, err := executor.QueryPositions(context.Background(), query)
	if err != nil {
		t.Fatalf("query positions: %v", err)
	}
	if len(positions) != 2 || positions[0] != 0 || positions[1] != 2 {
		t.Fatalf("unexpected positions: %v", positions)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// TestSQLExecutorTeardownAfterFailure 查询失败时仍然删表
func TestSQLExecutorTeardownAfterFailure(t *testing.T) {
	executor, mock := newMock(t)

	query := rapidsql.PositionQuery{
		Table:    "users",
		Setup:    "CREATE TEMP TABLE x (a INTEGER);",
		Query:    "SELECT a FROM x",
		Teardown: "DROP TABLE IF EXISTS temp.x;",
	}
	cause := errors.New("no such column")
	mock.ExpectExec(query.Setup).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(query.Query).WillReturnError(cause)
	mock.ExpectExec(query.Teardown).WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := executor.QueryPositions(context.Background(), query)
	if !errors.Is(err, cause) || !errors.Is(err, rapidsql.ErrExecution) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// TestPartitionerWithSQLExecutor 划分器通过执行器在同一连接上完成查询
func TestPartitionerWithSQLExecutor(t *testing.T) {
	executor, mock := newMock(t)
	p := rapidsql.NewExistencePartitioner(rapidsql.SQLiteDialect, executor,
		rapidsql.WithNameGenerator(rapidsql.NewSuffixNameGenerator("_tmp")))

	rows := []*rapidsql.Row{
		rapidsql.RowOf("email", "a@x"),
		rapidsql.RowOf("email", "b@x"),
		rapidsql.RowOf("email", "c@x"),
	}
	q, err := p.Query(userTable(), nil, rows)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	mock.ExpectExec(q.Setup).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery(q.Query).WillReturnRows(sqlmock.NewRows([]string{"__pos"}).AddRow(2))
	mock.ExpectExec(q.Teardown).WillReturnResult(sqlmock.NewResult(0, 0))

	index, err := p.Find(context.Background(), userTable(), nil, rows)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	missing := rapidsql.Missing(index, rows)
	if len(missing) != 2 || missing[0] != rows[0] || missing[1] != rows[1] {
		t.Fatalf("unexpected missing rows: %v", missing)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
