package database

import (
	"errors"
	"testing"

	"github.com/koustreak/ffiload/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceRows serves fixed rows through the Rows interface.
type sliceRows struct {
	cols   []string
	data   [][]any
	i      int
	err    error
	closed bool
}

func (r *sliceRows) Next() bool {
	if r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}

func (r *sliceRows) Scan(dest ...any) error {
	for i, v := range r.data[r.i-1] {
		*(dest[i].(*any)) = v
	}
	return nil
}

func (r *sliceRows) Columns() ([]string, error) { return r.cols, nil }
func (r *sliceRows) Err() error                 { return r.err }
func (r *sliceRows) Close()                     { r.closed = true }

func TestScanRows(t *testing.T) {
	rows := &sliceRows{
		cols: []string{"MacroPlot_GUID", "MacroPlot_Name", "Elevation"},
		data: [][]any{
			{[]byte("3F2504E0-4F89-11D3-9A0C-0305E82C3301"), "Plot1", int64(1520)},
			{"4F2504E0-4F89-11D3-9A0C-0305E82C3302", nil, nil},
		},
	}

	got, err := ScanRows(rows)
	require.NoError(t, err)
	assert.True(t, rows.closed)
	assert.Equal(t, []map[string]any{
		{"MacroPlot_GUID": "3F2504E0-4F89-11D3-9A0C-0305E82C3301", "MacroPlot_Name": "Plot1", "Elevation": int64(1520)},
		{"MacroPlot_GUID": "4F2504E0-4F89-11D3-9A0C-0305E82C3302", "MacroPlot_Name": nil, "Elevation": nil},
	}, got)
}

func TestScanRows_Empty(t *testing.T) {
	got, err := ScanRows(&sliceRows{cols: []string{"a"}})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestScanRows_IterationError(t *testing.T) {
	rows := &sliceRows{cols: []string{"a"}, err: errors.New("connection lost")}
	_, err := ScanRows(rows)
	require.Error(t, err)
	assert.True(t, errs.IsQueryFailed(err))
	assert.True(t, rows.closed)
}
