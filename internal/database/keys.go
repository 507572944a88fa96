package database

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the canonical text form of store and export timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000"

const (
	nullKey  = "\x00null"
	tupleSep = "\x1f"
)

// KeyString renders a key value in a canonical text form so that a value
// read back from the store and the same value taken from an export compare
// equal: GUIDs upper-cased, integral numbers in decimal, timestamps in
// TimestampLayout, byte slices as text.
func KeyString(v any) string {
	switch x := v.(type) {
	case nil:
		return nullKey
	case string:
		return canonicalText(x)
	case []byte:
		return canonicalText(string(x))
	case uuid.UUID:
		return strings.ToUpper(x.String())
	case [16]byte:
		return strings.ToUpper(uuid.UUID(x).String())
	case int:
		return strconv.FormatInt(int64(x), 10)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return formatFloat(float64(x))
	case float64:
		return formatFloat(x)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case time.Time:
		return x.Format(TimestampLayout)
	case interface{ String() string }:
		return canonicalText(x.String())
	default:
		return canonicalText(fmt.Sprint(v))
	}
}

// timestampLayouts are the forms exports and stores use for dates, tried in
// order. Zone-less forms are read in the caller's location.
var timestampLayouts = []string{
	TimestampLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"1/2/2006 3:04:05 PM",
	"1/2/2006",
}

// ParseTimestamp parses s in any known export or store layout. Values without
// a zone are read in loc (UTC when nil).
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DateKey renders a date-valued identity in TimestampLayout, using the wall
// clock of the value. Text that does not parse falls back to KeyString.
func DateKey(v any) string {
	switch x := v.(type) {
	case time.Time:
		return x.Format(TimestampLayout)
	case string:
		if t, ok := ParseTimestamp(x, nil); ok {
			return t.Format(TimestampLayout)
		}
	case []byte:
		return DateKey(string(x))
	}
	return KeyString(v)
}

// TupleKey joins the canonical forms of a composite key.
func TupleKey(vals []any) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = KeyString(v)
	}
	return strings.Join(parts, tupleSep)
}

// CanonicalGUID returns s as an upper-case hyphenated GUID, accepting braces
// and any case. ok is false when s is not a GUID.
func CanonicalGUID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 36 && len(s) != 38 {
		return "", false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return strings.ToUpper(id.String()), true
}

func canonicalText(s string) string {
	if g, ok := CanonicalGUID(s); ok {
		return g
	}
	return s
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e18 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
