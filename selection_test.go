package rapidsql_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/rushairer/rapidsql"
)

func TestFieldSelection(t *testing.T) {
	known := []string{"id", "title", "body"}

	tests := []struct {
		name      string
		selection rapidsql.FieldSelection
		want      []string
	}{
		{"all", rapidsql.AllFields(), []string{"id", "title", "body"}},
		{"include", rapidsql.Include("body", "extra"), []string{"body", "extra"}},
		{"exclude", rapidsql.Exclude("title"), []string{"id", "body"}},
		{"exclude nothing", rapidsql.Exclude(), []string{"id", "title", "body"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.selection.Apply(known)
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// TestExcludeUnknownFields 一个错误列出所有不存在的字段
func TestExcludeUnknownFields(t *testing.T) {
	_, err := rapidsql.Exclude("x", "title", "y").Apply([]string{"id", "title"})
	if !errors.Is(err, rapidsql.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}

	var unknown *rapidsql.UnknownFieldError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownFieldError, got %T", err)
	}
	if !reflect.DeepEqual(unknown.Fields, []string{"x", "y"}) {
		t.Fatalf("expected both unknown fields, got %v", unknown.Fields)
	}
	if want := "the following fields to exclude do not exist: x, y"; err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestSelectionDoesNotAliasInput(t *testing.T) {
	known := []string{"id", "title"}
	got, _ := rapidsql.AllFields().Apply(known)
	got[0] = "changed"
	if known[0] != "id" {
		t.Fatal("AllFields must return a copy")
	}
}
