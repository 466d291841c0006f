// Package table holds the row-oriented tables API responses are normalized
// into. Columns are the union of keys seen across all rows, in first-seen
// order; a cell that a row never set reads as nil.
package table

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Row is one flattened record keyed by column name.
type Row map[string]any

// Table accumulates rows and tracks the union of their columns.
type Table struct {
	columns []string
	index   map[string]int
	rows    []Row
}

// New returns an empty table with the given columns declared up front.
func New(columns ...string) *Table {
	t := &Table{index: make(map[string]int)}
	for _, c := range columns {
		t.addColumn(c)
	}
	return t
}

// FromRecords flattens each record and returns them as a table.
func FromRecords(records []map[string]any) *Table {
	t := New()
	for _, r := range records {
		t.Append(Normalize(r))
	}
	return t
}

func (t *Table) addColumn(name string) {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if _, ok := t.index[name]; ok {
		return
	}
	t.index[name] = len(t.columns)
	t.columns = append(t.columns, name)
}

// Append adds rows, extending the column set with any new keys. Keys are
// registered in sorted order per row so column order is deterministic.
func (t *Table) Append(rows ...Row) {
	for _, r := range rows {
		keys := make([]string, 0, len(r))
		for k := range r {
			if _, ok := t.index[k]; !ok {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			t.addColumn(k)
		}
		t.rows = append(t.rows, r)
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Columns returns a copy of the column names.
func (t *Table) Columns() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// HasColumn reports whether any row has ever set name.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.index[name]
	return ok
}

// Rows returns the underlying rows. Callers must not mutate them.
func (t *Table) Rows() []Row {
	if t == nil {
		return nil
	}
	return t.rows
}

// Row returns row i as a full record, with nil for columns it never set.
func (t *Table) Row(i int) Row {
	out := make(Row, len(t.columns))
	for _, c := range t.columns {
		out[c] = t.rows[i][c]
	}
	return out
}

// Value returns the cell at row i, column name. Missing cells are nil.
func (t *Table) Value(i int, name string) any {
	return t.rows[i][name]
}

// Column returns every value of a column, nil-filled.
func (t *Table) Column(name string) []any {
	out := make([]any, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[name]
	}
	return out
}

// Concat returns a new table holding the rows of t followed by the rows of
// others. Nil tables are skipped.
func Concat(tables ...*Table) *Table {
	out := New()
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.columns {
			out.addColumn(c)
		}
		out.rows = append(out.rows, t.rows...)
	}
	return out
}

// Filter returns the rows for which keep returns true.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := New(t.columns...)
	for _, r := range t.rows {
		if keep(r) {
			out.rows = append(out.rows, r)
		}
	}
	return out
}

// Select returns a table restricted to columns, in the given order. Columns
// the table never had are kept and read as nil.
func (t *Table) Select(columns ...string) *Table {
	out := New(columns...)
	for _, r := range t.rows {
		nr := make(Row, len(columns))
		for _, c := range columns {
			if v, ok := r[c]; ok {
				nr[c] = v
			}
		}
		out.rows = append(out.rows, nr)
	}
	return out
}

// Drop returns a table without the named columns.
func (t *Table) Drop(columns ...string) *Table {
	drop := make(map[string]bool, len(columns))
	for _, c := range columns {
		drop[c] = true
	}
	keep := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		if !drop[c] {
			keep = append(keep, c)
		}
	}
	return t.Select(keep...)
}

// Rename returns a table with columns renamed according to names.
func (t *Table) Rename(names map[string]string) *Table {
	rename := func(c string) string {
		if n, ok := names[c]; ok {
			return n
		}
		return c
	}
	cols := make([]string, len(t.columns))
	for i, c := range t.columns {
		cols[i] = rename(c)
	}
	out := New(cols...)
	for _, r := range t.rows {
		nr := make(Row, len(r))
		for k, v := range r {
			nr[rename(k)] = v
		}
		out.rows = append(out.rows, nr)
	}
	return out
}

// WithColumn returns a table with name set on every row to fn(row).
func (t *Table) WithColumn(name string, fn func(Row) any) *Table {
	out := New(t.columns...)
	out.addColumn(name)
	for _, r := range t.rows {
		nr := make(Row, len(r)+1)
		for k, v := range r {
			nr[k] = v
		}
		nr[name] = fn(r)
		out.rows = append(out.rows, nr)
	}
	return out
}

// DropNil returns the rows whose value for column is not nil.
func (t *Table) DropNil(column string) *Table {
	return t.Filter(func(r Row) bool { return r[column] != nil })
}

// Distinct returns the distinct non-nil values of a column in first-seen
// order.
func (t *Table) Distinct(column string) []any {
	seen := make(map[string]bool)
	var out []any
	for _, r := range t.rows {
		v := r[column]
		if v == nil {
			continue
		}
		k := Key(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

// Merge inner-joins t with other on every column they share, like a
// dataframe merge with no explicit keys. Without shared columns the result
// is empty.
func (t *Table) Merge(other *Table) *Table {
	var on []string
	for _, c := range t.columns {
		if other.HasColumn(c) {
			on = append(on, c)
		}
	}
	out := New(t.columns...)
	for _, c := range other.columns {
		out.addColumn(c)
	}
	if len(on) == 0 {
		return out
	}

	lookup := make(map[string][]Row)
	for _, r := range other.rows {
		k := joinKey(r, on)
		lookup[k] = append(lookup[k], r)
	}
	for _, l := range t.rows {
		for _, r := range lookup[joinKey(l, on)] {
			nr := make(Row, len(l)+len(r))
			for k, v := range l {
				nr[k] = v
			}
			for k, v := range r {
				nr[k] = v
			}
			out.rows = append(out.rows, nr)
		}
	}
	return out
}

func joinKey(r Row, on []string) string {
	parts := make([]string, len(on))
	for i, c := range on {
		parts[i] = Key(r[c])
	}
	return strings.Join(parts, "\x1f")
}

// Key renders a cell as a comparable string. Numbers print without a
// trailing ".0" so 3 and 3.0 compare equal.
func Key(v any) string {
	switch x := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return x
	case float64:
		return fmt.Sprintf("%g", x)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// MarshalJSON encodes the table as an array of objects carrying every column.
func (t *Table) MarshalJSON() ([]byte, error) {
	out := make([]Row, len(t.rows))
	for i := range t.rows {
		out[i] = t.Row(i)
	}
	return json.Marshal(out)
}
