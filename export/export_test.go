package export

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/Seann-Moser/sky/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *table.Table {
	t := table.New()
	t.Append(
		table.Row{"id": float64(1), "name": "Ada, Countess", "active": true, "tags": []any{"a", "b"}},
		table.Row{"id": float64(2.5), "email": "g@example.edu"},
	)
	return t
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()))

	want := "active,id,name,tags,email\n" +
		"true,1,\"Ada, Countess\",\"[\"\"a\"\",\"\"b\"\"]\",\n" +
		",2.5,,,g@example.edu\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table.New("a", "b")))
	assert.Equal(t, "a,b\n", buf.String())
}

func TestWriteSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "sky.db"))
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	require.NoError(t, WriteSQLite(ctx, db, "users", sample()))
	// a second write replaces the table
	require.NoError(t, WriteSQLite(ctx, db, "users", sample()))

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "users"`).Scan(&n))
	assert.Equal(t, 2, n)

	var (
		name   string
		active int
		tags   string
	)
	require.NoError(t, db.QueryRowContext(ctx, `SELECT name, active, tags FROM "users" WHERE id = 1`).Scan(&name, &active, &tags))
	assert.Equal(t, "Ada, Countess", name)
	assert.Equal(t, 1, active)
	assert.JSONEq(t, `["a","b"]`, tags)

	var email *string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT email FROM "users" WHERE id = 1`).Scan(&email))
	assert.Nil(t, email)
}
