package inserter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToInt(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"text", "42", int64(42)},
		{"padded text", " 7 ", int64(7)},
		{"integral float text", "3.0", int64(3)},
		{"fractional text", "3.5", "3.5"},
		{"bytes", []byte("9"), int64(9)},
		{"integral float", float64(12), int64(12)},
		{"fractional float", 1.25, 1.25},
		{"float beyond int64", 1e19, 1e19},
		{"negative float beyond int64", -1e19, -1e19},
		{"float text beyond int64", "1e19", "1e19"},
		{"int", 5, int64(5)},
		{"int32", int32(6), int64(6)},
		{"guid passes through", "A0000000-0000-0000-0000-000000000001", "A0000000-0000-0000-0000-000000000001"},
		{"nil", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toInt(tt.in))
		})
	}
}
