package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/tenantdb/internal/store"
	_ "github.com/dropDatabas3/tenantdb/internal/store/adapters/sqlite"
)

func TestSQLiteConnQueryExec(t *testing.T) {
	ctx := context.Background()
	conn, err := store.Open(ctx, store.Config{Driver: "sqlite3", URL: ":memory:"})
	require.NoError(t, err)
	defer conn.Close()

	require.Equal(t, "sqlite", conn.Driver())
	require.NoError(t, conn.Ping(ctx))

	_, err = conn.Exec(ctx, `CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)
	n, err := conn.Exec(ctx, `INSERT INTO t (name) VALUES (?), (?)`, "a", "b")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	rows, err := conn.Query(ctx, `SELECT name FROM t ORDER BY id`)
	require.NoError(t, err)
	var names []string
	for rows.Next() {
		var s string
		require.NoError(t, rows.Scan(&s))
		names = append(names, s)
	}
	rows.Close()
	require.NoError(t, rows.Err())
	require.Equal(t, []string{"a", "b"}, names)
}

func TestSQLiteEmptyURL(t *testing.T) {
	_, err := store.Open(context.Background(), store.Config{Driver: "sqlite"})
	require.Error(t, err)
}
