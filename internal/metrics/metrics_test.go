package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(nil)

	m.RowsWritten("MacroPlot", 3)
	m.RowsWritten("MacroPlot", 2)
	m.RowsWritten("MacroPlot", 0)
	m.RowsExisting("MacroPlot", 4)
	m.TableFailed("Trees_Attribute", "type mismatch")
	m.FileDone("success", 2*time.Second)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.rowsWritten.WithLabelValues("MacroPlot")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.rowsExisting.WithLabelValues("MacroPlot")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tableFailed.WithLabelValues("Trees_Attribute", "type mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.files.WithLabelValues("success")))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RowsWritten("t", 1)
		m.RowsExisting("t", 1)
		m.TableFailed("t", "x")
		m.FileDone("failure", time.Second)
	})
	assert.Nil(t, m.Registry())
	assert.NotNil(t, m.Handler())
}

func TestMetrics_Handler(t *testing.T) {
	m := New(nil)
	m.RowsWritten("MacroPlot", 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `ffiload_rows_written_total{table="MacroPlot"} 1`)
}
