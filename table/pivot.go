package table

import (
	"fmt"
)

// MalformedListFeedError reports an advanced-list feed that does not split
// into groups holding every name exactly once.
type MalformedListFeedError struct {
	Position int
	Name     string
	Reason   string
}

func (e *MalformedListFeedError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("malformed list feed: entry %d: %s", e.Position, e.Reason)
	}
	return fmt.Sprintf("malformed list feed: entry %d has name %q: %s", e.Position, e.Name, e.Reason)
}

// CleanAdvancedList pivots the long (name, value) rows returned by the legacy
// list endpoint into one row per logical record. Every ncol-th entry starts a
// new record, where ncol is the number of distinct names; each name becomes a
// column. Within a group values are placed by name, so groups may list their
// names in any order, but each group must hold every name exactly once. The
// first group fixes the column order.
func CleanAdvancedList(long *Table) (*Table, error) {
	return Pivot(long, "name", "value")
}

// Pivot is CleanAdvancedList over arbitrary name and value columns.
func Pivot(long *Table, nameCol, valueCol string) (*Table, error) {
	if long.Len() == 0 {
		return New(), nil
	}

	names := long.Distinct(nameCol)
	ncol := len(names)
	if ncol == 0 {
		return New(), nil
	}
	if long.Len()%ncol != 0 {
		return nil, &MalformedListFeedError{
			Position: long.Len(),
			Reason:   fmt.Sprintf("entries do not divide into groups of %d names", ncol),
		}
	}

	order := make([]string, ncol)
	known := make(map[string]bool, ncol)
	for i, n := range names {
		order[i] = Key(n)
		known[order[i]] = true
	}

	out := New(order...)
	var current Row
	for i, r := range long.Rows() {
		pos := i % ncol
		if pos == 0 {
			current = make(Row, ncol)
		}
		name := Key(r[nameCol])
		if r[nameCol] == nil || !known[name] {
			return nil, &MalformedListFeedError{Position: i, Name: name, Reason: "no name"}
		}
		if _, dup := current[name]; dup {
			return nil, &MalformedListFeedError{Position: i, Name: name, Reason: "repeated within its group"}
		}
		current[name] = r[valueCol]
		if pos == ncol-1 {
			out.rows = append(out.rows, current)
		}
	}
	return out, nil
}
