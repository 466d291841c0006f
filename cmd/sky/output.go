package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"text/tabwriter"

	"github.com/Seann-Moser/sky/export"
	"github.com/Seann-Moser/sky/school"
	"github.com/Seann-Moser/sky/table"
)

const (
	formatJSON = "json"
	formatCSV  = "csv"
	formatText = "text"
)

type output struct {
	format string
	sqlite string
}

func (o output) table(ctx context.Context, w io.Writer, name string, t *table.Table) error {
	if o.sqlite != "" {
		return o.toSQLite(ctx, w, map[string]*table.Table{name: t})
	}
	switch o.format {
	case formatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	case formatCSV:
		return export.WriteCSV(w, t)
	case formatText:
		return writeText(w, t)
	default:
		return fmt.Errorf("unknown output format %q", o.format)
	}
}

func (o output) summary(ctx context.Context, w io.Writer, e *school.Enrollments) error {
	parts := []struct {
		name string
		t    *table.Table
	}{
		{"academics", e.Academics},
		{"advisory", e.Advisory},
		{"athletics", e.Athletics},
	}
	if o.sqlite != "" {
		tables := make(map[string]*table.Table, len(parts))
		for _, p := range parts {
			tables[p.name] = p.t
		}
		return o.toSQLite(ctx, w, tables)
	}
	if o.format == formatJSON || o.format == "" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(e)
	}
	for i, p := range parts {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "# %s\n", p.name)
		if err := o.table(ctx, w, p.name, p.t); err != nil {
			return err
		}
	}
	return nil
}

func (o output) toSQLite(ctx context.Context, w io.Writer, tables map[string]*table.Table) error {
	db, err := export.OpenSQLite(o.sqlite)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()
	for name, t := range tables {
		if err := export.WriteSQLite(ctx, db, name, t); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %d rows to %s.%s\n", t.Len(), o.sqlite, name)
	}
	return nil
}

func writeText(w io.Writer, t *table.Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	cols := t.Columns()
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	for _, r := range t.Rows() {
		cells := make([]string, len(cols))
		for i, c := range cols {
			if v := r[c]; v != nil {
				cells[i] = table.Key(v)
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

var nonIdent = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// tableName turns an endpoint like "users/extended?x=1" into "users_extended".
func tableName(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	name := strings.Trim(nonIdent.ReplaceAllString(endpoint, "_"), "_")
	if name == "" {
		return "result"
	}
	return name
}
