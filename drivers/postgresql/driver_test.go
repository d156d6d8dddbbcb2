package postgresql_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lib/pq"

	"github.com/rushairer/rapidsql"
	"github.com/rushairer/rapidsql/drivers/postgresql"
)

func TestEscaper(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{"it's", `'it''s'`},
		{true, "TRUE"},
		{false, "FALSE"},
		{[]byte{0xde, 0xad}, `'\xdead'::bytea`},
		{nil, "NULL"},
		{42, "42"},
	}
	for _, tt := range tests {
		got, err := postgresql.Escaper.EscapeValue(tt.value, "c")
		if err != nil {
			t.Fatalf("%v: %v", tt.value, err)
		}
		if got != tt.want {
			t.Fatalf("%v: expected %s, got %s", tt.value, tt.want, got)
		}
	}
	if got := postgresql.Escaper.EscapeColumn(`we"ird`); got != `"we""ird"` {
		t.Fatalf("unexpected identifier %s", got)
	}
}

func TestDialectRegistered(t *testing.T) {
	for _, name := range []string{"postgresql", "postgres"} {
		d, err := rapidsql.LookupDialect(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if d != postgresql.Dialect {
			t.Fatalf("%s resolved to %s", name, d.Name)
		}
	}
}

func TestLargeUpsertSQL(t *testing.T) {
	table := rapidsql.NewTable("post",
		rapidsql.Field{Name: "id", Type: "BIGINT", Identifier: true},
		rapidsql.Field{Name: "title", Type: "TEXT"},
	)
	op := rapidsql.NewLargeOperation(rapidsql.LargeUpsert, postgresql.Dialect, table, rapidsql.NewMockExecutor(),
		rapidsql.WithNameGenerator(rapidsql.NewSuffixNameGenerator("_tmp")))
	if err := op.Add(rapidsql.RowOf("id", 1, "title", "a")); err != nil {
		t.Fatalf("add: %v", err)
	}
	got, err := op.SQL()
	if err != nil {
		t.Fatalf("sql: %v", err)
	}
	for _, want := range []string{
		`CREATE TEMPORARY TABLE "post_tmp" ("id" BIGINT, "title" TEXT, UNIQUE ("id"));`,
		`UPDATE "post" AS t1 SET "title" = t2."title" FROM "post_tmp" AS t2 WHERE t1."id" = t2."id";`,
		`DROP TABLE "post_tmp";`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %s in\n%s", want, got)
		}
	}
}

// TestUntypedColumnRejected 未声明类型的列不能默认为 TEXT，否则与整数列比较失败
func TestUntypedColumnRejected(t *testing.T) {
	factory := rapidsql.NewDDLFactory(postgresql.Dialect, rapidsql.TemporaryTableOptions{})
	_, err := factory.Create(rapidsql.TemporaryTable{
		Name:    "post_tmp",
		Columns: []rapidsql.TemporaryColumn{{Name: "id", Type: "BIGINT"}, {Name: "author_id"}},
	})
	if !errors.Is(err, rapidsql.ErrConfiguration) || !strings.Contains(err.Error(), "author_id") {
		t.Fatalf("expected ErrConfiguration naming author_id, got %v", err)
	}
	if _, err := factory.CreateForExistence(rapidsql.TemporaryTable{
		Name:    "post_tmp",
		Columns: []rapidsql.TemporaryColumn{{Name: "author_id"}},
	}, rapidsql.PositionColumn); !errors.Is(err, rapidsql.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}

	config := "dialect: postgres\ndsn: \"postgres://localhost/app\"\ntables:\n  - name: post\n    fields:\n      - {name: id, type: BIGINT}\n      - {name: author_id}\n"
	if _, err := rapidsql.ParseConfig([]byte(config)); !errors.Is(err, rapidsql.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for untyped field, got %v", err)
	}
	typed := strings.Replace(config, "{name: author_id}", "{name: author_id, type: BIGINT}", 1)
	if _, err := rapidsql.ParseConfig([]byte(typed)); err != nil {
		t.Fatalf("typed config: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := &rapidsql.ExecutionError{Table: "post", Err: fmt.Errorf("exec: %w", &pq.Error{Code: "23505"})}
	if !postgresql.IsUniqueViolation(err) {
		t.Fatal("expected unique violation")
	}
	if postgresql.IsUniqueViolation(&pq.Error{Code: "40P01"}) {
		t.Fatal("deadlock is not a unique violation")
	}
	if postgresql.IsUniqueViolation(errors.New("23505")) {
		t.Fatal("plain errors are not unique violations")
	}
}
