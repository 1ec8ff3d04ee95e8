package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToInt64(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
	}{
		{"Nil", nil, 0},
		{"Int", 5, 5},
		{"Float", float64(12), 12},
		{"String", "42", 42},
		{"QuotedFloat", "3.0", 3},
		{"Bytes", []byte("7"), 7},
		{"Garbage", "n/a", 0},
		{"True", true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToInt64(tt.in))
		})
	}
}

func TestToBool(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want bool
	}{
		{"Bool", true, true},
		{"JSONZero", float64(0), false},
		{"JSONOne", float64(1), true},
		{"IntOne", 1, true},
		{"StringOne", "1", true},
		{"StringTrue", "TRUE", true},
		{"StringZero", "0", false},
		{"Nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToBool(tt.in))
		})
	}
}

func TestToFloat(t *testing.T) {
	f, ok := ToFloat(float64(1500.5))
	assert.True(t, ok)
	assert.Equal(t, 1500.5, f)

	f, ok = ToFloat(" 99 ")
	assert.True(t, ok)
	assert.Equal(t, float64(99), f)

	_, ok = ToFloat(map[string]any{})
	assert.False(t, ok)
}
