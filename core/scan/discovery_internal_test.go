package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefine(t *testing.T) {
	tests := []struct {
		name   string
		runs   []Range
		margin int64
		want   []Range
	}{
		{"Empty", nil, 20, nil},
		{"ClampsAtOne", []Range{{Start: 5, End: 15}}, 20, []Range{{Start: 1, End: 35}}},
		{"Disjoint", []Range{{Start: 100, End: 110}, {Start: 500, End: 500}}, 10, []Range{{Start: 90, End: 120}, {Start: 490, End: 510}}},
		{"Overlapping", []Range{{Start: 100, End: 110}, {Start: 130, End: 140}}, 10, []Range{{Start: 90, End: 150}}},
		{"Adjacent", []Range{{Start: 100, End: 100}, {Start: 121, End: 121}}, 10, []Range{{Start: 90, End: 131}}},
		{"Unsorted", []Range{{Start: 300, End: 300}, {Start: 100, End: 100}}, 0, []Range{{Start: 100, End: 100}, {Start: 300, End: 300}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, refine(tt.runs, tt.margin))
		})
	}
}

func TestRangeLen(t *testing.T) {
	assert.Equal(t, int64(10), Range{Start: 1, End: 10}.Len())
	assert.Equal(t, int64(0), Range{Start: 5, End: 4}.Len())
	assert.Equal(t, "[1,10]", Range{Start: 1, End: 10}.String())
}
