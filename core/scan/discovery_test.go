package scan_test

import (
	"context"
	"testing"

	"catalog-sync/core/catalog"
	"catalog-sync/core/scan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover(t *testing.T) {
	var listings []catalog.Record
	var want []int64
	for id := int64(1000); id <= 1100; id++ {
		stock := 1
		if id%7 == 0 {
			stock = 0
		}
		listings = append(listings, sell(id, stock))
		if stock > 0 {
			want = append(want, id)
		}
	}
	for id := int64(5000); id <= 5050; id++ {
		listings = append(listings, sell(id, 2))
		want = append(want, id)
	}
	f := newFixture(t, newFakeProber(listings...))

	sum, err := f.engine.Discover(context.Background(), scan.DiscoverOptions{
		Start:         1,
		Ceiling:       100000,
		Step:          10,
		EmptyRunLimit: 400,
		Margin:        20,
		BatchSize:     50,
	})
	require.NoError(t, err)

	assert.Equal(t, []scan.Range{{Start: 981, End: 1111}, {Start: 4981, End: 5061}}, sum.Ranges)
	assert.Equal(t, want, recordIDs(f.engine.CurrentCatalog().Records()))
	assert.Equal(t, int64(1), sum.StartID)
	assert.Equal(t, int64(5061), sum.EndID)
}

func TestDiscoverStopsAfterEmptyRun(t *testing.T) {
	var listings []catalog.Record
	for id := int64(1); id <= 30; id++ {
		listings = append(listings, sell(id, 1))
	}
	// Far beyond the cutoff; never reached.
	listings = append(listings, sell(900, 1))
	f := newFixture(t, newFakeProber(listings...))

	sum, err := f.engine.Discover(context.Background(), scan.DiscoverOptions{
		Start:         1,
		Ceiling:       1000,
		Step:          10,
		EmptyRunLimit: 5,
		Margin:        20,
		BatchSize:     100,
	})
	require.NoError(t, err)

	assert.Equal(t, []scan.Range{{Start: 1, End: 41}}, sum.Ranges)
	assert.Equal(t, 30, f.engine.CurrentCatalog().Len())
	_, ok := f.engine.CurrentCatalog().Get(900)
	assert.False(t, ok)
}

func TestDiscoverNothingFound(t *testing.T) {
	f := newFixture(t, newFakeProber())

	sum, err := f.engine.Discover(context.Background(), scan.DiscoverOptions{
		Start: 1, Ceiling: 100, Step: 10, EmptyRunLimit: 3, Margin: 5, BatchSize: 10,
	})
	require.NoError(t, err)
	assert.Empty(t, sum.Ranges)
	assert.Equal(t, 0, sum.Batches)
	assert.Equal(t, 0, f.engine.CurrentCatalog().Len())
}

func TestDiscoverInvalidOptions(t *testing.T) {
	f := newFixture(t, newFakeProber())

	_, err := f.engine.Discover(context.Background(), scan.DiscoverOptions{Start: 1, Ceiling: 10, Step: 0, EmptyRunLimit: 1, BatchSize: 1})
	assert.ErrorIs(t, err, scan.ErrInvalidRange)
}
