package database

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestKeyString(t *testing.T) {
	guid := "3f2504e0-4f89-11d3-9a0c-0305e82c3301"
	upper := "3F2504E0-4F89-11D3-9A0C-0305E82C3301"

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"lower guid", guid, upper},
		{"braced guid", "{" + guid + "}", upper},
		{"guid bytes", []byte(guid), upper},
		{"uuid value", uuid.MustParse(guid), upper},
		{"int64", int64(42), "42"},
		{"int", 42, "42"},
		{"integral float", float64(42), "42"},
		{"fraction", 4.5, "4.5"},
		{"text", "Plot1", "Plot1"},
		{"time", time.Date(2020, 1, 1, 13, 4, 5, 250e6, time.UTC), "2020-01-01T13:04:05.250"},
		{"bool", true, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KeyString(tt.in))
		})
	}
}

func TestKeyString_NullDistinct(t *testing.T) {
	assert.NotEqual(t, KeyString(nil), KeyString(""))
	assert.NotEqual(t, KeyString(nil), KeyString("null"))
}

func TestTupleKey(t *testing.T) {
	assert.Equal(t, TupleKey([]any{int64(1), "a"}), TupleKey([]any{"1", "a"}))
	assert.NotEqual(t, TupleKey([]any{"a b", "c"}), TupleKey([]any{"a", "b c"}))
}

func TestCanonicalGUID(t *testing.T) {
	g, ok := CanonicalGUID(" 3f2504e0-4f89-11d3-9a0c-0305e82c3301 ")
	assert.True(t, ok)
	assert.Equal(t, "3F2504E0-4F89-11D3-9A0C-0305E82C3301", g)

	_, ok = CanonicalGUID("not-a-guid")
	assert.False(t, ok)
}

func TestIsIntegerType(t *testing.T) {
	for _, typ := range []string{"int", "INTEGER", "bigint", "int(11)", "bigint unsigned", "smallint"} {
		assert.True(t, IsIntegerType(typ), typ)
	}
	for _, typ := range []string{"uniqueidentifier", "nvarchar", "real", "text", ""} {
		assert.False(t, IsIntegerType(typ), typ)
	}
}

func TestParseTimestamp(t *testing.T) {
	mst := time.FixedZone("MST", -7*3600)
	want := time.Date(2020, 1, 2, 13, 4, 5, 0, mst)

	for _, in := range []string{
		"2020-01-02T13:04:05.000",
		"2020-01-02T13:04:05",
		"2020-01-02 13:04:05",
		"1/2/2020 1:04:05 PM",
	} {
		got, ok := ParseTimestamp(in, mst)
		assert.True(t, ok, in)
		assert.True(t, want.Equal(got), in)
	}

	got, ok := ParseTimestamp("2020-01-02", nil)
	assert.True(t, ok)
	assert.Equal(t, time.UTC, got.Location())

	_, ok = ParseTimestamp("yesterday", nil)
	assert.False(t, ok)
	_, ok = ParseTimestamp("  ", nil)
	assert.False(t, ok)
}

func TestDateKey(t *testing.T) {
	assert.Equal(t, "2020-01-01T00:00:00.000", DateKey("2020-01-01"))
	assert.Equal(t, "2020-01-01T00:00:00.000", DateKey("2020-01-01T00:00:00.000"))
	assert.Equal(t, "2020-01-01T00:00:00.000", DateKey([]byte("2020-01-01 00:00:00")))
	assert.Equal(t, "2020-01-01T00:00:00.000", DateKey(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "not a date", DateKey("not a date"))
	assert.Equal(t, KeyString(nil), DateKey(nil))
}
