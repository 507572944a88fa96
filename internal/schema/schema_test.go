package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/koustreak/ffiload/internal/database"
	"github.com/koustreak/ffiload/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReader struct {
	calls  int
	schema *database.Schema
	err    error
}

func (c *countingReader) InspectSchema(context.Context) (*database.Schema, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.schema, nil
}

func fixture() *database.Schema {
	return &database.Schema{Tables: map[string]*database.TableInfo{
		"A": {Name: "A", PrimaryKey: []string{"A_ID"}},
		"B": {
			Name:       "B",
			PrimaryKey: []string{"B_ID", "B_Seq"},
			ForeignKeys: []*database.ForeignKey{
				{Column: "B_A_ID", RefTable: "A", RefColumn: "A_ID"},
				{Column: "B_A_ID", RefTable: "A2", RefColumn: "A2_ID"},
				{Column: "B_Other", RefTable: "A", RefColumn: "A_Alt"},
			},
		},
	}}
}

func TestIntrospector_Memoizes(t *testing.T) {
	src := &countingReader{schema: fixture()}
	in := New(src)
	ctx := context.Background()

	pk, err := in.PrimaryKeys(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"B_ID", "B_Seq"}, pk)

	_, err = in.ForeignKeys(ctx, "B")
	require.NoError(t, err)
	_, err = in.PrimaryKeys(ctx, "A")
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)

	in.Reset()
	_, err = in.PrimaryKeys(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestIntrospector_ForeignKeys(t *testing.T) {
	in := New(&countingReader{schema: fixture()})

	fks, err := in.ForeignKeys(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, map[string][]Ref{
		"B_A_ID":  {{Table: "A", Column: "A_ID"}, {Table: "A2", Column: "A2_ID"}},
		"B_Other": {{Table: "A", Column: "A_Alt"}},
	}, fks)

	refs, err := in.ReferencedTables(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "A2"}, refs)
}

func TestIntrospector_UnknownTable(t *testing.T) {
	in := New(&countingReader{schema: fixture()})

	_, err := in.PrimaryKeys(context.Background(), "Missing")
	assert.True(t, errs.IsNotFound(err))
	assert.Contains(t, err.Error(), "table not found")

	ok, err := in.Has(context.Background(), "Missing")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestIntrospector_CaseInsensitiveFallback(t *testing.T) {
	in := New(&countingReader{schema: fixture()})

	tbl, err := in.Table(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "B", tbl.Name)
}

func TestIntrospector_ReturnsCopies(t *testing.T) {
	in := New(&countingReader{schema: fixture()})
	ctx := context.Background()

	pk, err := in.PrimaryKeys(ctx, "B")
	require.NoError(t, err)
	pk[0] = "mutated"

	again, err := in.PrimaryKeys(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, "B_ID", again[0])
}

func TestIntrospector_LoadFailureNotCached(t *testing.T) {
	src := &countingReader{err: errs.Wrap(errs.ErrKindConnectionFailed, "down", errors.New("refused"))}
	in := New(src)

	_, err := in.PrimaryKeys(context.Background(), "A")
	assert.True(t, errs.IsConnectionFailed(err))

	src.err = nil
	src.schema = fixture()
	_, err = in.PrimaryKeys(context.Background(), "A")
	assert.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}
