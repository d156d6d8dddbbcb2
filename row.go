package rapidsql

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Row is an ordered field -> value record. The order in which fields are set is
// the order in which columns are emitted.
type Row struct {
	fields []string
	values []any
}

// NewRow creates an empty row
func NewRow() *Row {
	return &Row{}
}

// RowOf builds a row from alternating field/value pairs, e.g. RowOf("id", 1, "title", "foo").
func RowOf(pairs ...any) *Row {
	if len(pairs)%2 != 0 {
		panic("rapidsql: RowOf requires field/value pairs")
	}
	r := &Row{
		fields: make([]string, 0, len(pairs)/2),
		values: make([]any, 0, len(pairs)/2),
	}
	for i := 0; i < len(pairs); i += 2 {
		field, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("rapidsql: RowOf field at position %d is %T, not string", i, pairs[i]))
		}
		r.Set(field, pairs[i+1])
	}
	return r
}

// Set sets a value for the given field, keeping the original position when the
// field already exists.
func (r *Row) Set(field string, value any) *Row {
	if i := r.index(field); i >= 0 {
		r.values[i] = value
		return r
	}
	r.fields = append(r.fields, field)
	r.values = append(r.values, value)
	return r
}

// Get gets a value for the given field
func (r *Row) Get(field string) (any, bool) {
	if i := r.index(field); i >= 0 {
		return r.values[i], true
	}
	return nil, false
}

// Has reports whether the field is present
func (r *Row) Has(field string) bool {
	return r.index(field) >= 0
}

// Len returns the number of fields
func (r *Row) Len() int {
	return len(r.fields)
}

// Fields returns the field names in order
func (r *Row) Fields() []string {
	return slices.Clone(r.fields)
}

// Values returns the values in field order
func (r *Row) Values() []any {
	return slices.Clone(r.values)
}

// Without returns a copy of the row with the given fields removed
func (r *Row) Without(fields ...string) *Row {
	out := &Row{}
	for i, f := range r.fields {
		if slices.Contains(fields, f) {
			continue
		}
		out.fields = append(out.fields, f)
		out.values = append(out.values, r.values[i])
	}
	return out
}

// Project returns a copy of the row restricted to the given fields in the given
// order. Missing fields are reported as a SchemaMismatchError.
func (r *Row) Project(fields []string) (*Row, error) {
	out := &Row{
		fields: make([]string, 0, len(fields)),
		values: make([]any, 0, len(fields)),
	}
	var missing []string
	for _, f := range fields {
		v, ok := r.Get(f)
		if !ok {
			missing = append(missing, f)
			continue
		}
		out.fields = append(out.fields, f)
		out.values = append(out.values, v)
	}
	if len(missing) > 0 {
		return nil, &SchemaMismatchError{Missing: missing, Expected: fields, Given: r.Fields()}
	}
	return out, nil
}

// String returns a string representation of the row
func (r *Row) String() string {
	parts := make([]string, len(r.fields))
	for i, f := range r.fields {
		parts[i] = fmt.Sprintf("%s: %v", f, r.values[i])
	}
	return "Row{" + strings.Join(parts, ", ") + "}"
}

func (r *Row) index(field string) int {
	return slices.Index(r.fields, field)
}

// RowFromMap orders the keys of an unordered map. Keys listed in order come
// first, in that order; remaining keys follow sorted by name.
func RowFromMap(values map[string]any, order []string) *Row {
	r := &Row{
		fields: make([]string, 0, len(values)),
		values: make([]any, 0, len(values)),
	}
	seen := make(map[string]struct{}, len(values))
	for _, f := range order {
		v, ok := values[f]
		if !ok {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		r.fields = append(r.fields, f)
		r.values = append(r.values, v)
	}
	rest := make([]string, 0, len(values)-len(seen))
	for f := range values {
		if _, ok := seen[f]; !ok {
			rest = append(rest, f)
		}
	}
	sort.Strings(rest)
	for _, f := range rest {
		r.fields = append(r.fields, f)
		r.values = append(r.values, values[f])
	}
	return r
}

// checkFields validates that given matches the established field order exactly.
func checkFields(established, given []string) error {
	if slices.Equal(established, given) {
		return nil
	}
	var missing, extra []string
	for _, f := range established {
		if !slices.Contains(given, f) {
			missing = append(missing, f)
		}
	}
	for _, f := range given {
		if !slices.Contains(established, f) {
			extra = append(extra, f)
		}
	}
	return &SchemaMismatchError{
		Missing:  missing,
		Extra:    extra,
		Expected: slices.Clone(established),
		Given:    slices.Clone(given),
	}
}
