package ffixml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/koustreak/ffiload/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const export = `<?xml version="1.0" encoding="utf-8"?>
<FFIExport xmlns="http://www.fire.org/FFI/Export.xsd">
  <Schema_Version>
    <Schema_Version>1.05.13</Schema_Version>
  </Schema_Version>
  <MacroPlot>
    <MacroPlot_GUID>3f2504e0-4f89-11d3-9a0c-0305e82c3301</MacroPlot_GUID>
    <MacroPlot_Name>Plot1</MacroPlot_Name>
    <MacroPlot_DateIn>2020-01-01T08:30:00-07:00</MacroPlot_DateIn>
    <MacroPlot_Comment></MacroPlot_Comment>
  </MacroPlot>
  <MacroPlot>
    <MacroPlot_GUID>4F2504E0-4F89-11D3-9A0C-0305E82C3302</MacroPlot_GUID>
    <MacroPlot_Name>Plot2</MacroPlot_Name>
    <MacroPlot_Elevation>1520</MacroPlot_Elevation>
  </MacroPlot>
  <SampleEvent>
    <SampleEvent_GUID>aaaaaaaa-0000-0000-0000-000000000001</SampleEvent_GUID>
    <SampleEvent_Date>2020-01-01T00:00:00</SampleEvent_Date>
  </SampleEvent>
</FFIExport>`

var mst = time.FixedZone("MST", -7*3600)

func TestParse(t *testing.T) {
	doc, err := Parse(strings.NewReader(export), Options{Location: mst})
	require.NoError(t, err)

	assert.Equal(t, "1.05.13", doc.Version)
	assert.Equal(t, []string{"Schema_Version", "MacroPlot", "SampleEvent"}, doc.Entities.Names())

	plots, ok := doc.Entities.Get("MacroPlot")
	require.True(t, ok)
	require.Equal(t, 2, plots.Len())
	assert.Equal(t, []string{
		"MacroPlot_GUID", "MacroPlot_Name", "MacroPlot_DateIn", "MacroPlot_Comment", "MacroPlot_Elevation",
	}, plots.Columns, "document order")

	first := plots.Records[0]
	assert.Equal(t, "3F2504E0-4F89-11D3-9A0C-0305E82C3301", first["MacroPlot_GUID"])
	assert.Equal(t, "2020-01-01T08:30:00.000", first["MacroPlot_DateIn"])
	assert.Nil(t, first["MacroPlot_Comment"])
	_, has := first["MacroPlot_Elevation"]
	assert.False(t, has)

	assert.Equal(t, "1520", plots.Records[1]["MacroPlot_Elevation"])

	events, _ := doc.Entities.Get("SampleEvent")
	assert.Equal(t, "2020-01-01T00:00:00.000", events.Records[0]["SampleEvent_Date"])
}

func TestParse_ConvertsOffsetsToLocation(t *testing.T) {
	doc, err := Parse(strings.NewReader(export), Options{Location: time.UTC})
	require.NoError(t, err)

	plots, _ := doc.Entities.Get("MacroPlot")
	assert.Equal(t, "2020-01-01T15:30:00.000", plots.Records[0]["MacroPlot_DateIn"])
}

func TestParse_NoVersion(t *testing.T) {
	doc, err := Parse(strings.NewReader(`<Root><A><A_ID>1</A_ID></A></Root>`), Options{})
	require.NoError(t, err)
	assert.Empty(t, doc.Version)
	assert.Equal(t, 1, doc.Entities.Len())
}

func TestParse_Malformed(t *testing.T) {
	for _, in := range []string{
		`<Root><A><A_ID>1</A_ID></Root>`,
		`<Root><A><A_ID>1</A_ID></A>`,
	} {
		_, err := Parse(strings.NewReader(in), Options{})
		require.Error(t, err, in)
		assert.True(t, errs.IsInvalidInput(err), in)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Unit A export.xml")
	require.NoError(t, os.WriteFile(path, []byte(export), 0o600))

	doc, err := ParseFile(path, Options{Location: mst})
	require.NoError(t, err)
	assert.Equal(t, "Unit A export", doc.Name)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.xml"), Options{})
	assert.True(t, errs.IsNotFound(err))
}

func TestTimestamp(t *testing.T) {
	assert.Equal(t, "2020-06-01T12:00:00.000", Timestamp("6/1/2020 12:00:00 PM", mst))
	assert.Equal(t, "not a date", Timestamp("not a date", mst))
}
