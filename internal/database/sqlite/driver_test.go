package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/koustreak/ffiload/internal/database"
	"github.com/koustreak/ffiload/internal/database/sqlite/sqlitetest"
	"github.com/koustreak/ffiload/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ddl = []string{
	`CREATE TABLE RegistrationUnit (
		RegistrationUnit_GUID TEXT PRIMARY KEY,
		RegistrationUnit_Name TEXT NOT NULL
	)`,
	`CREATE TABLE MacroPlot (
		MacroPlot_GUID TEXT PRIMARY KEY,
		MacroPlot_RegistrationUnit_GUID TEXT REFERENCES RegistrationUnit(RegistrationUnit_GUID),
		MacroPlot_Name TEXT
	)`,
	`CREATE TABLE LU_List (
		LU_ID INTEGER PRIMARY KEY,
		LU_Name TEXT
	)`,
	`CREATE TABLE Composite (
		b TEXT,
		a INTEGER,
		v TEXT,
		lu INTEGER REFERENCES LU_List,
		PRIMARY KEY (a, b)
	)`,
}

func TestInspectSchema(t *testing.T) {
	db := sqlitetest.Open(t, ddl...)

	schema, err := db.InspectSchema(context.Background())
	require.NoError(t, err)
	require.Len(t, schema.Tables, 4)

	plot := schema.Tables["MacroPlot"]
	require.NotNil(t, plot)
	assert.Equal(t, []string{"MacroPlot_GUID"}, plot.PrimaryKey)
	require.Len(t, plot.ForeignKeys, 1)
	assert.Equal(t, database.ForeignKey{
		Column:    "MacroPlot_RegistrationUnit_GUID",
		RefTable:  "RegistrationUnit",
		RefColumn: "RegistrationUnit_GUID",
	}, *plot.ForeignKeys[0])

	comp := schema.Tables["Composite"]
	assert.Equal(t, []string{"a", "b"}, comp.PrimaryKey, "declared key order")
	require.Len(t, comp.ForeignKeys, 1)
	assert.Equal(t, "LU_ID", comp.ForeignKeys[0].RefColumn, "implicit parent key")
	assert.True(t, comp.Column("a").IsPrimary)
	assert.False(t, comp.Column("v").IsPrimary)

	assert.True(t, schema.Tables["LU_List"].Column("LU_ID").IsIdentity)
	assert.True(t, database.IsIntegerType(schema.Tables["LU_List"].Column("lu_id").DataType))
}

func TestWriteRows_AppendAndReplace(t *testing.T) {
	ctx := context.Background()
	db := sqlitetest.Open(t, ddl...)

	cols := []string{"LU_ID", "LU_Name"}
	n, err := database.WriteRows(ctx, db, db.Dialect(), "LU_List", cols,
		[][]any{{1, "one"}, {2, "two"}}, database.WriteAppend)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 2, sqlitetest.Count(t, db, "LU_List"))

	n, err = database.WriteRows(ctx, db, db.Dialect(), "LU_List", cols,
		[][]any{{9, "nine"}}, database.WriteReplace)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, sqlitetest.Count(t, db, "LU_List"))
}

func TestWriteRows_SplitsByParameterCeiling(t *testing.T) {
	ctx := context.Background()
	db := sqlitetest.Open(t, ddl...)

	rows := make([][]any, 1500)
	for i := range rows {
		rows[i] = []any{i + 1, fmt.Sprintf("n%d", i)}
	}
	n, err := database.WriteRows(ctx, db, db.Dialect(), "LU_List", []string{"LU_ID", "LU_Name"}, rows, database.WriteAppend)

	require.NoError(t, err)
	assert.Equal(t, int64(1500), n)
	assert.Equal(t, 1500, sqlitetest.Count(t, db, "LU_List"))
}

func TestSession_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := sqlitetest.Open(t, ddl...)
	boom := errors.New("boom")

	err := db.Session(ctx, func(s database.Session) error {
		if _, err := database.WriteRows(ctx, s, db.Dialect(), "LU_List", []string{"LU_ID"}, [][]any{{1}}, database.WriteAppend); err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, sqlitetest.Count(t, db, "LU_List"))
}

func TestErrorMapping(t *testing.T) {
	ctx := context.Background()
	db := sqlitetest.Open(t, ddl...)

	_, err := db.Query(ctx, `SELECT * FROM "Nope"`)
	assert.True(t, errs.IsNotFound(err), err)

	_, err = db.Exec(ctx, `INSERT INTO RegistrationUnit (RegistrationUnit_GUID) VALUES ('x')`)
	assert.True(t, errs.IsTypeMismatch(err), err)

	_, err = db.Exec(ctx, `INSERT INTO MacroPlot (MacroPlot_GUID, MacroPlot_RegistrationUnit_GUID) VALUES ('p', 'missing')`)
	assert.True(t, errs.IsTypeMismatch(err), "foreign key enforcement: %v", err)
}

func TestSetIdentityInsert_Unsupported(t *testing.T) {
	ctx := context.Background()
	db := sqlitetest.Open(t, ddl...)

	err := db.Session(ctx, func(s database.Session) error {
		return db.SetIdentityInsert(ctx, s, "LU_List", true)
	})
	assert.True(t, errs.IsUnsupported(err))
}
