package marketplace_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"catalog-sync/core/catalog"
	"catalog-sync/core/scan"
	"catalog-sync/feature/marketplace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	kind      scan.Kind
	start     int64
	end       int64
	batch     int
	window    int64
	threshold int
}

type fakeEngine struct {
	mu      sync.Mutex
	catalog *catalog.Catalog
	calls   []call
	release chan struct{}
	done    chan struct{}
}

func newFakeEngine(records ...catalog.Record) *fakeEngine {
	return &fakeEngine{catalog: catalog.New(records), done: make(chan struct{}, 8)}
}

func (e *fakeEngine) CurrentCatalog() *catalog.Catalog {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog
}

func (e *fakeEngine) Status() scan.Status {
	return scan.Status{State: scan.StateIdle, Records: e.CurrentCatalog().Len()}
}

func (e *fakeEngine) run(ctx context.Context, c call) (scan.Summary, error) {
	e.mu.Lock()
	e.calls = append(e.calls, c)
	release := e.release
	e.mu.Unlock()
	defer func() { e.done <- struct{}{} }()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return scan.Summary{Kind: c.kind, Canceled: true}, ctx.Err()
		}
	}
	return scan.Summary{Kind: c.kind}, nil
}

func (e *fakeEngine) FullRescan(ctx context.Context, start, end int64, batch int) (scan.Summary, error) {
	return e.run(ctx, call{kind: scan.KindFull, start: start, end: end, batch: batch})
}

func (e *fakeEngine) IncrementalUpdate(ctx context.Context, window int64, batch int) (scan.Summary, error) {
	return e.run(ctx, call{kind: scan.KindIncremental, window: window, batch: batch})
}

func (e *fakeEngine) Discover(ctx context.Context, opts scan.DiscoverOptions) (scan.Summary, error) {
	return e.run(ctx, call{kind: scan.KindDiscover, start: opts.Start, end: opts.Ceiling, batch: opts.BatchSize})
}

func (e *fakeEngine) RefreshLowStock(ctx context.Context, threshold int) (scan.Summary, error) {
	return e.run(ctx, call{kind: scan.KindRefresh, threshold: threshold})
}

func (e *fakeEngine) Dedupe(ctx context.Context) (scan.Summary, error) {
	return e.run(ctx, call{kind: scan.KindDedupe})
}

func (e *fakeEngine) lastCall(t *testing.T) call {
	t.Helper()
	select {
	case <-e.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not finish")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	require.NotEmpty(t, e.calls)
	return e.calls[len(e.calls)-1]
}

func testConfig() scan.Config {
	return scan.Config{
		BatchSize:         2000,
		WindowSize:        30000,
		DiscoveryStart:    1,
		DiscoveryStep:     10,
		DiscoveryCeiling:  1000000,
		EmptyRunLimit:     200,
		RefineMargin:      20,
		LowStockThreshold: 2,
	}
}

func listing(id int64, title string, price float64, stock int) catalog.Record {
	return catalog.Record{ID: id, Title: title, Price: &price, InStock: stock, Direction: catalog.DirectionSell}
}

func TestSearch(t *testing.T) {
	engine := newFakeEngine(
		listing(1, "Gladius LTI", 300, 1),
		listing(2, "Gladius Valiant", 100, 2),
		catalog.Record{ID: 3, Name: "gladius pirate", InStock: 1, Direction: catalog.DirectionSell},
		catalog.Record{ID: 4, Slug: "gladius-buy", Price: ptr(50), Direction: catalog.DirectionBuy},
		listing(5, "Hornet", 10, 3),
		catalog.Record{ID: 6, Slug: "gladius-blade", Price: ptr(200), InStock: 1, Direction: catalog.DirectionSell},
	)
	svc := marketplace.NewService(engine, nil, testConfig(), "", nil)

	results := svc.Search("  GLADIUS ")
	assert.Equal(t, []int64{2, 6, 1}, ids(results))
	assert.Empty(t, svc.Search("idris"))
}

func TestPaginate(t *testing.T) {
	records := make([]catalog.Record, 12)
	for i := range records {
		records[i] = listing(int64(i+1), "x", float64(i), 1)
	}

	first := marketplace.Paginate(records, 1, marketplace.PageSize)
	assert.Equal(t, 3, first.Pages)
	assert.Equal(t, 12, first.Total)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids(first.Results))

	last := marketplace.Paginate(records, 9, marketplace.PageSize)
	assert.Equal(t, 3, last.Page)
	assert.Equal(t, []int64{11, 12}, ids(last.Results))

	empty := marketplace.Paginate(nil, 1, marketplace.PageSize)
	assert.Equal(t, 0, empty.Pages)
	assert.NotNil(t, empty.Results)
	assert.Empty(t, empty.Results)
}

func TestStats(t *testing.T) {
	engine := newFakeEngine(
		listing(1, "a", 100, 2),
		listing(2, "b", 50.5, 1),
		catalog.Record{ID: 9, Direction: catalog.DirectionBuy},
	)
	svc := marketplace.NewService(engine, nil, testConfig(), "", nil)

	st := svc.Stats()
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.InStock)
	assert.Equal(t, 150.5, st.TotalValue)
	assert.Equal(t, int64(9), st.Cursor)
}

func TestStartJobDefaults(t *testing.T) {
	engine := newFakeEngine(listing(1, "a", 1, 1))
	svc := marketplace.NewService(engine, nil, testConfig(), "", nil)
	t.Cleanup(svc.Shutdown)

	tests := []struct {
		kind   scan.Kind
		params marketplace.JobParams
		want   call
	}{
		{scan.KindFull, marketplace.JobParams{Start: 10, End: 20}, call{kind: scan.KindFull, start: 10, end: 20, batch: 2000}},
		{scan.KindIncremental, marketplace.JobParams{}, call{kind: scan.KindIncremental, window: 30000, batch: 2000}},
		{scan.KindIncremental, marketplace.JobParams{Window: 50, BatchSize: 10}, call{kind: scan.KindIncremental, window: 50, batch: 10}},
		{scan.KindDiscover, marketplace.JobParams{End: 5000}, call{kind: scan.KindDiscover, start: 1, end: 5000, batch: 2000}},
		{scan.KindRefresh, marketplace.JobParams{}, call{kind: scan.KindRefresh, threshold: 2}},
		{scan.KindDedupe, marketplace.JobParams{}, call{kind: scan.KindDedupe}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			job, err := svc.StartJob(tt.kind, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, job.Kind)
			assert.Equal(t, tt.want, engine.lastCall(t))
			require.Eventually(t, func() bool { return !svc.Running() }, time.Second, 5*time.Millisecond)
		})
	}
}

func TestStartJobValidation(t *testing.T) {
	svc := marketplace.NewService(newFakeEngine(), nil, testConfig(), "", nil)
	t.Cleanup(svc.Shutdown)

	_, err := svc.StartJob(scan.KindFull, marketplace.JobParams{Start: 20, End: 10})
	assert.ErrorIs(t, err, scan.ErrInvalidRange)

	_, err = svc.StartJob(scan.KindIncremental, marketplace.JobParams{})
	assert.ErrorIs(t, err, scan.ErrEmptyCatalog)

	_, err = svc.StartJob(scan.KindRefresh, marketplace.JobParams{})
	assert.ErrorIs(t, err, scan.ErrEmptyCatalog)

	_, err = svc.StartJob(scan.KindFull, marketplace.JobParams{BatchSize: -1})
	assert.ErrorIs(t, err, scan.ErrInvalidRange)

	_, err = svc.StartJob("rebuild", marketplace.JobParams{})
	assert.ErrorIs(t, err, marketplace.ErrUnknownKind)
}

func TestStartJobBusy(t *testing.T) {
	engine := newFakeEngine()
	engine.release = make(chan struct{})
	svc := marketplace.NewService(engine, nil, testConfig(), "", nil)

	_, err := svc.StartJob(scan.KindDedupe, marketplace.JobParams{})
	require.NoError(t, err)

	_, err = svc.StartJob(scan.KindFull, marketplace.JobParams{})
	assert.ErrorIs(t, err, scan.ErrBusy)

	close(engine.release)
	engine.lastCall(t)
	svc.Shutdown()
}

func TestShutdownCancelsRunningJob(t *testing.T) {
	engine := newFakeEngine()
	engine.release = make(chan struct{})
	svc := marketplace.NewService(engine, nil, testConfig(), "", nil)

	_, err := svc.StartJob(scan.KindDedupe, marketplace.JobParams{})
	require.NoError(t, err)

	svc.Shutdown()
	assert.Equal(t, scan.KindDedupe, engine.lastCall(t).kind)
}

func ids(records []catalog.Record) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
