// Package sqlitetest opens throwaway SQLite stores for tests.
package sqlitetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/koustreak/ffiload/internal/database"
	"github.com/koustreak/ffiload/internal/database/sqlite"
	"github.com/stretchr/testify/require"
)

// Open creates a store in t's temp dir, applies ddl and closes it on cleanup.
func Open(t testing.TB, ddl ...string) *sqlite.Driver {
	t.Helper()

	ctx := context.Background()
	cfg := database.DefaultConfig(database.DriverSQLite, filepath.Join(t.TempDir(), "ffi.db"))
	db, err := sqlite.New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	for _, stmt := range ddl {
		_, err := db.Exec(ctx, stmt)
		require.NoError(t, err, stmt)
	}
	return db
}

// Count returns the number of rows in table.
func Count(t testing.TB, db database.DB, table string) int {
	t.Helper()

	rows, err := db.Query(context.Background(),
		"SELECT COUNT(*) AS n FROM "+db.Dialect().QuoteIdent(table))
	require.NoError(t, err)
	res, err := database.ScanRows(rows)
	require.NoError(t, err)
	require.Len(t, res, 1)
	n, ok := res[0]["n"].(int64)
	require.True(t, ok)
	return int(n)
}
