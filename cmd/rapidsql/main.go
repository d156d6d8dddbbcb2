package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushairer/rapidsql"
	"github.com/rushairer/rapidsql/drivers/mysql"
	"github.com/rushairer/rapidsql/drivers/postgresql"
	"github.com/rushairer/rapidsql/drivers/redis"
	"github.com/rushairer/rapidsql/drivers/sqlite"
	"github.com/rushairer/rapidsql/monitoring"
)

// 支持的模式
const (
	modeInsert        = "insert"
	modeInsertMissing = "insert-missing"
	modeUpsert        = "upsert"
	modeUpdate        = "update"
	modeLargeInsert   = "large-insert"
	modeLargeUpdate   = "large-update"
	modeLargeUpsert   = "large-upsert"
	modePartition     = "partition"
)

// cliOptions 命令行参数
type cliOptions struct {
	ConfigPath string
	Table      string
	Mode       string
	Match      string // "a,b;c" 组内逗号，组间分号
	Include    string
	Exclude    string
	Conditions string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "rapidsql: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (*cliOptions, error) {
	opts := &cliOptions{}
	fs := flag.NewFlagSet("rapidsql", flag.ContinueOnError)
	fs.StringVar(&opts.ConfigPath, "config", "rapidsql.yaml", "配置文件路径")
	fs.StringVar(&opts.Table, "table", "", "目标表（需在配置中定义）")
	fs.StringVar(&opts.Mode, "mode", modeInsert, "insert | insert-missing | upsert | update | large-insert | large-update | large-upsert | partition")
	fs.StringVar(&opts.Match, "match", "", "匹配字段组，如 \"email;first,last\"")
	fs.StringVar(&opts.Include, "include", "", "冲突更新只包含这些字段（逗号分隔）")
	fs.StringVar(&opts.Exclude, "exclude", "", "冲突更新排除这些字段（逗号分隔）")
	fs.StringVar(&opts.Conditions, "conditions", "", "update 模式的条件字段（逗号分隔），默认使用主键")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.Table == "" {
		return nil, errors.New("-table is required")
	}
	if opts.Include != "" && opts.Exclude != "" {
		return nil, errors.New("-include and -exclude are mutually exclusive")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	config, err := rapidsql.LoadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	logger := newLogger(config.Log)

	tableConfig, ok := config.FindTable(opts.Table)
	if !ok {
		return fmt.Errorf("table %q is not defined in %s", opts.Table, opts.ConfigPath)
	}
	table := tableConfig.Table()

	db, err := openDatabase(config.Dialect, config.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	executor := rapidsql.NewSQLExecutor(db).
		WithLogger(logger).
		WithConcurrencyLimit(config.MaxConcurrency)

	if config.Metrics.Enabled {
		reporter := monitoring.NewPrometheusReporter(config.Dialect)
		executor.WithMetricsReporter(reporter)
		server := monitoring.NewServer(reporter, logger)
		if err := server.Start(config.Metrics.Addr); err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(sctx)
		}()
	}

	operationOptions := []rapidsql.Option{
		rapidsql.WithLogger(logger),
		rapidsql.WithTemporaryTableOptions(config.Temporary),
	}
	if config.NameSequence.Enabled {
		client := redis.NewClient(config.NameSequence.Addr, config.NameSequence.DB)
		defer client.Close()
		names := redis.NewNameGenerator(client).
			WithKeyPrefix(config.NameSequence.Key).
			WithTimeout(config.NameSequence.Timeout).
			WithLogger(logger)
		operationOptions = append(operationOptions, rapidsql.WithNameGenerator(names))
	}
	if groups := parseGroups(opts.Match); len(groups) > 0 {
		operationOptions = append(operationOptions, rapidsql.WithMatchFields(groups...))
	}

	factory, err := rapidsql.NewFactory(config.Dialect, executor, operationOptions...)
	if err != nil {
		return err
	}

	rows, err := readRows(stdin, table)
	if err != nil {
		return err
	}
	logger.Info().Str("table", opts.Table).Str("mode", opts.Mode).Int("rows", len(rows)).Msg("rows loaded")

	if opts.Mode == modePartition {
		return runPartition(ctx, factory, table, parseGroups(opts.Match), rows, stdout)
	}

	op, err := buildOperation(factory, table, opts)
	if err != nil {
		return err
	}
	batched, err := factory.Batched(op, config.BatchSize)
	if err != nil {
		return err
	}
	for i, row := range rows {
		if err := batched.Add(ctx, row); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	affected, err := batched.Execute(ctx)
	if err != nil {
		return err
	}
	logger.Info().Int("items", batched.ItemCount()).Int("affected", affected).Msg("done")
	_, err = fmt.Fprintf(stdout, "affected=%d\n", affected)
	return err
}

func buildOperation(factory *rapidsql.Factory, table *rapidsql.Table, opts *cliOptions) (rapidsql.Operation, error) {
	selection := rapidsql.AllFields()
	switch {
	case opts.Include != "":
		selection = rapidsql.Include(splitList(opts.Include)...)
	case opts.Exclude != "":
		selection = rapidsql.Exclude(splitList(opts.Exclude)...)
	}

	switch opts.Mode {
	case modeInsert:
		return factory.Insert(table), nil
	case modeInsertMissing:
		return factory.UniqueInsert(table), nil
	case modeUpsert:
		return factory.Upsert(table, selection), nil
	case modeUpdate:
		return factory.Update(table, splitList(opts.Conditions)), nil
	case modeLargeInsert:
		return factory.LargeInsert(table), nil
	case modeLargeUpdate:
		return factory.LargeUpdate(table, selection), nil
	case modeLargeUpsert:
		return factory.LargeUpsert(table, selection), nil
	default:
		return nil, fmt.Errorf("unknown mode %q", opts.Mode)
	}
}

func runPartition(ctx context.Context, factory *rapidsql.Factory, table *rapidsql.Table, groups [][]string, rows []*rapidsql.Row, stdout io.Writer) error {
	partitioner, err := factory.Partitioner()
	if err != nil {
		return err
	}
	index, err := partitioner.Find(ctx, table, groups, rows)
	if err != nil {
		return err
	}
	parts := rapidsql.Partitions(index, rows)
	_, err = fmt.Fprintf(stdout, "existing=%d missing=%d\n", len(parts.Existing), len(parts.Missing))
	return err
}

func openDatabase(dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case "mysql", "mariadb":
		return mysql.Open(dsn)
	case "postgresql", "postgres":
		return postgresql.Open(dsn)
	case "sqlite", "sqlite3":
		return sqlite.Open(dsn)
	default:
		return nil, &rapidsql.UnsupportedPlatformError{Name: dialect}
	}
}

// readRows 读取 NDJSON，每行一个 JSON 对象
func readRows(r io.Reader, table *rapidsql.Table) ([]*rapidsql.Row, error) {
	var rows []*rapidsql.Row
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	order := table.FieldNames()
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		decoder := json.NewDecoder(strings.NewReader(text))
		decoder.UseNumber()
		var values map[string]any
		if err := decoder.Decode(&values); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		for k, v := range values {
			values[k] = normalizeJSON(v)
		}
		rows = append(rows, rapidsql.RowFromMap(values, order))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return rows, nil
}

// normalizeJSON 数字转换为 int64 / float64，嵌套结构转换为 JSON 文本
func normalizeJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return nil
		}
		return string(b)
	default:
		return v
	}
}

func newLogger(config rapidsql.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || config.Level == "" {
		level = zerolog.InfoLevel
	}
	var w io.Writer = os.Stderr
	if config.Console {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseGroups(s string) [][]string {
	var groups [][]string
	for _, g := range strings.Split(s, ";") {
		if fields := splitList(g); len(fields) > 0 {
			groups = append(groups, fields)
		}
	}
	return groups
}
