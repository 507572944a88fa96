package database

import (
	"testing"

	"github.com/koustreak/ffiload/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialect_PlaceholderAndQuote(t *testing.T) {
	tests := []struct {
		dialect Dialect
		ph      string
		quoted  string
	}{
		{DialectPostgres, "$3", `"Macro""Plot"`},
		{DialectMySQL, "?", "`Macro\"Plot`"},
		{DialectSQLServer, "@p3", `[Macro"Plot]`},
		{DialectSQLite, "?", `"Macro""Plot"`},
	}

	for _, tt := range tests {
		t.Run(tt.dialect.String(), func(t *testing.T) {
			assert.Equal(t, tt.ph, tt.dialect.Placeholder(3))
			assert.Equal(t, tt.quoted, tt.dialect.QuoteIdent(`Macro"Plot`))
		})
	}

	assert.Equal(t, "[a]]b]", DialectSQLServer.QuoteIdent("a]b"))
}

func TestSelect_WhereIn(t *testing.T) {
	sql, args, err := Select("MacroPlot", DialectSQLServer).
		Columns("MacroPlot_Name").
		WhereIn("MacroPlot_Name", []any{"Plot1", "Plot2"}).
		Build()

	require.NoError(t, err)
	assert.Equal(t, "SELECT [MacroPlot_Name] FROM [MacroPlot] WHERE [MacroPlot_Name] IN (@p1, @p2)", sql)
	assert.Equal(t, []any{"Plot1", "Plot2"}, args)
}

func TestSelect_EmptyInMatchesNothing(t *testing.T) {
	sql, args, err := Select("A", DialectSQLite).WhereIn("id", nil).Build()

	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "A" WHERE 1 = 0`, sql)
	assert.Empty(t, args)
}

func TestSelect_WhereAnyTuple(t *testing.T) {
	sql, args, err := Select("T", DialectPostgres).
		Columns("a", "b").
		WhereAnyTuple([]string{"a", "b"}, [][]any{{1, "x"}, {2, "y"}}).
		Build()

	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "a", "b" FROM "T" WHERE (("a" = $1 AND "b" = $2) OR ("a" = $3 AND "b" = $4))`, sql)
	assert.Equal(t, []any{1, "x", 2, "y"}, args)
}

func TestSelect_TupleArityMismatch(t *testing.T) {
	_, _, err := Select("T", DialectPostgres).
		WhereAnyTuple([]string{"a", "b"}, [][]any{{1}}).
		Build()

	assert.True(t, errs.IsInvalidInput(err))
}

func TestSelect_WhereAndOrder(t *testing.T) {
	sql, args, err := Select("Last_Modified_Date", DialectMySQL).
		Where("Machine_Name", "=", "HOST").
		Where("last_edit_date", ">=", "2020-01-01").
		OrderBy("last_edit_date", Desc).
		Build()

	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM `Last_Modified_Date` WHERE `Machine_Name` = ? AND `last_edit_date` >= ? ORDER BY `last_edit_date` DESC", sql)
	assert.Len(t, args, 2)
}

func TestSelect_RejectsOperator(t *testing.T) {
	_, _, err := Select("A", DialectPostgres).Where("id", "; DROP", 1).Build()
	assert.True(t, errs.IsInvalidInput(err))
}

func TestInsert_Build(t *testing.T) {
	sql, args, err := Insert("A", DialectSQLServer).
		Columns("id", "name").
		Values(1, "one").
		Values(2, nil).
		Build()

	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO [A] ([id], [name]) VALUES (@p1, @p2), (@p3, @p4)", sql)
	assert.Equal(t, []any{1, "one", 2, nil}, args)
}

func TestInsert_Validation(t *testing.T) {
	_, _, err := Insert("A", DialectSQLite).Build()
	assert.True(t, errs.IsInvalidInput(err))

	_, _, err = Insert("A", DialectSQLite).Columns("id").Build()
	assert.True(t, errs.IsInvalidInput(err))

	_, _, err = Insert("A", DialectSQLite).Columns("id", "name").Values(1).Build()
	assert.True(t, errs.IsInvalidInput(err))
}

func TestDelete_Build(t *testing.T) {
	sql, args, err := Delete("Last_Modified_Date", DialectPostgres).Build()
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "Last_Modified_Date"`, sql)
	assert.Empty(t, args)

	sql, args, err = Delete("A", DialectPostgres).Where("id", "=", 4).Build()
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "A" WHERE "id" = $1`, sql)
	assert.Equal(t, []any{4}, args)
}
