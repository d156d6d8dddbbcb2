package rapidsql_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rushairer/rapidsql"
)

func postTable() *rapidsql.Table {
	return rapidsql.NewTable("post",
		rapidsql.Field{Name: "id", Type: "INT", Identifier: true},
		rapidsql.Field{Name: "title", Type: "VARCHAR(100)"},
	)
}

func postRows() []*rapidsql.Row {
	return []*rapidsql.Row{
		rapidsql.RowOf("id", 1, "title", "foo"),
		rapidsql.RowOf("id", 2, "title", "bar"),
	}
}

func TestLargeOperationMySQL(t *testing.T) {
	const (
		create = "CREATE TEMPORARY TABLE `post_tmp` (`id` INT, `title` VARCHAR(100), UNIQUE (`id`));"
		stage  = "INSERT INTO `post_tmp` (`id`, `title`) VALUES (1, 'foo'),\n(2, 'bar');"
		update = "UPDATE `post` t1 INNER JOIN `post_tmp` t2 ON t1.`id` = t2.`id` SET t1.`title` = t2.`title`;"
		insert = "INSERT INTO `post` (`id`, `title`) SELECT t2.`id`, t2.`title` FROM `post_tmp` t2 WHERE NOT EXISTS (SELECT 1 FROM `post` t1 WHERE t1.`id` = t2.`id`);"
		drop   = "DROP TEMPORARY TABLE `post_tmp`;"
	)

	tests := []struct {
		typ  rapidsql.OperationType
		want []string
	}{
		{rapidsql.LargeInsert, []string{create, stage, insert, drop}},
		{rapidsql.LargeUpdate, []string{create, stage, update, drop}},
		{rapidsql.LargeUpsert, []string{create, stage, update, insert, drop}},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			executor := rapidsql.NewMockExecutor()
			op := rapidsql.NewLargeOperation(tt.typ, rapidsql.MySQLDialect, postTable(), executor,
				rapidsql.WithNameGenerator(rapidsql.NewSuffixNameGenerator("_tmp")))
			addAll(t, op, postRows())

			got, err := op.SQL()
			if err != nil {
				t.Fatalf("sql: %v", err)
			}
			if want := strings.Join(tt.want, "\n\n"); got != want {
				t.Fatalf("expected\n%s\ngot\n%s", want, got)
			}

			n, err := op.Execute(context.Background())
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			if n != 2 {
				t.Fatalf("expected fixed count 2, got %d", n)
			}
			scripts := executor.SnapshotScripts()
			if len(scripts) != 1 {
				t.Fatalf("expected 1 script, got %d", len(scripts))
			}
			if scripts[0].FixedCount != 2 || scripts[0].Transactional {
				t.Fatalf("unexpected script flags: %+v", scripts[0])
			}
			if scripts[0].Cleanup != "DROP TEMPORARY TABLE IF EXISTS `post_tmp`;" {
				t.Fatalf("unexpected cleanup: %q", scripts[0].Cleanup)
			}
		})
	}
}

func TestLargeOperationSQLite(t *testing.T) {
	table := rapidsql.NewTable("users",
		rapidsql.Field{Name: "id", Identifier: true, AutoIncrement: true, NotInsertable: true},
		rapidsql.Field{Name: "email", Type: "TEXT"},
		rapidsql.Field{Name: "first", Type: "TEXT"},
		rapidsql.Field{Name: "last", Type: "TEXT"},
	).WithUnique("email")

	op := rapidsql.NewLargeOperation(rapidsql.LargeUpsert, rapidsql.SQLiteDialect, table, rapidsql.NewMockExecutor(),
		rapidsql.WithNameGenerator(rapidsql.NewSuffixNameGenerator("_tmp")),
		rapidsql.WithMatchFields([]string{"email"}, []string{"first", "last"}),
		rapidsql.WithSelection(rapidsql.Exclude("email")),
	)
	if err := op.Add(rapidsql.RowOf("email", "a@x", "first", "A", "last", "Z")); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := op.SQL()
	if err != nil {
		t.Fatalf("sql: %v", err)
	}
	on := `t1."email" = t2."email" OR (t1."first" = t2."first" AND t1."last" = t2."last")`
	want := strings.Join([]string{
		`CREATE TEMP TABLE "users_tmp" ("email" TEXT, "first" TEXT, "last" TEXT, UNIQUE ("email"));`,
		`INSERT INTO "users_tmp" ("email", "first", "last") VALUES ('a@x', 'A', 'Z');`,
		`UPDATE "users" AS t1 SET "first" = t2."first", "last" = t2."last" FROM "users_tmp" AS t2 WHERE ` + on + `;`,
		`INSERT INTO "users" ("email", "first", "last") SELECT t2."email", t2."first", t2."last" FROM "users_tmp" t2 WHERE NOT EXISTS (SELECT 1 FROM "users" t1 WHERE ` + on + `);`,
		`DROP TABLE temp."users_tmp";`,
	}, "\n\n")
	if got != want {
		t.Fatalf("expected\n%s\ngot\n%s", want, got)
	}
}

func TestLargeOperationConfigurationErrors(t *testing.T) {
	t.Run("no match columns", func(t *testing.T) {
		op := rapidsql.NewLargeOperation(rapidsql.LargeInsert, rapidsql.MySQLDialect, postTable(), rapidsql.NewMockExecutor())
		if err := op.Add(rapidsql.RowOf("title", "foo")); err != nil {
			t.Fatalf("add: %v", err)
		}
		if _, err := op.SQL(); !errors.Is(err, rapidsql.ErrConfiguration) {
			t.Fatalf("expected ErrConfiguration, got %v", err)
		}
	})

	t.Run("no update columns", func(t *testing.T) {
		op := rapidsql.NewLargeOperation(rapidsql.LargeUpdate, rapidsql.MySQLDialect, postTable(), rapidsql.NewMockExecutor(),
			rapidsql.WithSelection(rapidsql.Exclude("title")))
		addAll(t, op, postRows())
		if _, err := op.SQL(); !errors.Is(err, rapidsql.ErrConfiguration) {
			t.Fatalf("expected ErrConfiguration, got %v", err)
		}
	})

	t.Run("match field missing from batch", func(t *testing.T) {
		op := rapidsql.NewLargeOperation(rapidsql.LargeUpdate, rapidsql.MySQLDialect, postTable(), rapidsql.NewMockExecutor(),
			rapidsql.WithMatchFields([]string{"slug"}))
		addAll(t, op, postRows())
		if _, err := op.SQL(); !errors.Is(err, rapidsql.ErrSchemaMismatch) {
			t.Fatalf("expected ErrSchemaMismatch, got %v", err)
		}
	})

	t.Run("failed build does not reach the executor", func(t *testing.T) {
		executor := rapidsql.NewMockExecutor()
		op := rapidsql.NewLargeOperation(rapidsql.LargeInsert, rapidsql.MySQLDialect, postTable(), executor)
		if err := op.Add(rapidsql.RowOf("title", "foo")); err != nil {
			t.Fatalf("add: %v", err)
		}
		if _, err := op.Execute(context.Background()); err == nil {
			t.Fatal("expected error")
		}
		if len(executor.SnapshotScripts()) != 0 {
			t.Fatal("executor must not be called")
		}
	})
}

// TestLargeOperationFreshNamePerCycle 每个批次生成新的临时表名
func TestLargeOperationFreshNamePerCycle(t *testing.T) {
	names := rapidsql.NewSuffixNameGenerator("_tmp")
	names.Sequence = true
	op := rapidsql.NewLargeOperation(rapidsql.LargeInsert, rapidsql.MySQLDialect, postTable(), rapidsql.NewMockExecutor(),
		rapidsql.WithNameGenerator(names))

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		addAll(t, op, postRows())
		name := op.TemporaryTableName()
		if seen[name] {
			t.Fatalf("temporary table name %s reused", name)
		}
		seen[name] = true
		if _, err := op.Execute(context.Background()); err != nil {
			t.Fatalf("execute: %v", err)
		}
	}
	if op.TemporaryTableName() != "" {
		t.Fatal("empty operation has no temporary table")
	}
}

func TestRandomNameGenerator(t *testing.T) {
	g := rapidsql.RandomNameGenerator{}
	a, b := g.Generate("post"), g.Generate("post")
	if a == b {
		t.Fatalf("expected distinct names, got %s twice", a)
	}
	if !strings.HasPrefix(a, "post_tmp_") || len(a) != len("post_tmp_")+16 {
		t.Fatalf("unexpected name %s", a)
	}
}

func TestTemporaryTableCollation(t *testing.T) {
	factory := rapidsql.NewDDLFactory(rapidsql.MySQLDialect, rapidsql.TemporaryTableOptions{Collation: "utf8mb4_bin"})
	ddl, err := factory.Create(rapidsql.TemporaryTable{
		Name:    "x_tmp",
		Columns: []rapidsql.TemporaryColumn{{Name: "code"}, {Name: "note"}},
		Unique:  [][]string{{"code"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// 唯一约束列需要定长类型，其余列不限长度
	if want := "CREATE TEMPORARY TABLE `x_tmp` (`code` VARCHAR(255), `note` LONGTEXT, UNIQUE (`code`)) COLLATE=utf8mb4_bin;"; ddl.Create != want {
		t.Fatalf("expected %q, got %q", want, ddl.Create)
	}

	if _, err := factory.Create(rapidsql.TemporaryTable{Name: "empty"}); !errors.Is(err, rapidsql.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}

	existence, err := factory.CreateForExistence(rapidsql.TemporaryTable{
		Name:    "x_tmp",
		Columns: []rapidsql.TemporaryColumn{{Name: "code"}},
		Unique:  [][]string{{"code"}},
	}, rapidsql.PositionColumn)
	if err != nil {
		t.Fatalf("create for existence: %v", err)
	}
	if !strings.Contains(existence.Create, "`code` VARCHAR(255)") {
		t.Fatalf("indexed column must use a bounded type: %s", existence.Create)
	}
}
