package scan_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"catalog-sync/core/catalog"
	"catalog-sync/core/probe"
	"catalog-sync/core/scan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProber answers from a fixed listing table.
type fakeProber struct {
	mu       sync.Mutex
	listings map[int64]catalog.Record
	calls    []int64
	hook     func(id int64)
}

func newFakeProber(records ...catalog.Record) *fakeProber {
	p := &fakeProber{listings: map[int64]catalog.Record{}}
	for _, r := range records {
		p.listings[r.ID] = r
	}
	return p
}

func (p *fakeProber) Probe(_ context.Context, id int64) probe.Result {
	p.mu.Lock()
	p.calls = append(p.calls, id)
	r, ok := p.listings[id]
	hook := p.hook
	p.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	if !ok {
		return probe.Result{ID: id, Outcome: probe.OutcomeNotFound, Attempts: 1}
	}
	outcome := probe.OutcomeInactive
	if r.IsActive() {
		outcome = probe.OutcomeActive
	}
	return probe.Result{ID: id, Outcome: outcome, Record: &r, Attempts: 1}
}

func (p *fakeProber) set(r catalog.Record) {
	p.mu.Lock()
	p.listings[r.ID] = r
	p.mu.Unlock()
}

func (p *fakeProber) remove(id int64) {
	p.mu.Lock()
	delete(p.listings, id)
	p.mu.Unlock()
}

func (p *fakeProber) probed() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.calls...)
}

type fakeMirror struct {
	mu        sync.Mutex
	published [][]byte
	latest    []byte
}

func (m *fakeMirror) Publish(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, data)
	m.latest = data
	return nil
}

func (m *fakeMirror) Restore(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, nil
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []scan.Summary
	errs []error
}

func (r *fakeRecorder) Record(_ context.Context, s scan.Summary, runErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, s)
	r.errs = append(r.errs, runErr)
	return nil
}

type fixture struct {
	dir      string
	store    *catalog.SnapshotStore
	staging  *catalog.StagingStore
	prober   *fakeProber
	mirror   *fakeMirror
	recorder *fakeRecorder
	engine   *scan.Engine
}

func newFixture(t *testing.T, prober *fakeProber, persisted ...catalog.Record) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:      dir,
		store:    catalog.NewSnapshotStore(dir, "catalog.json"),
		staging:  catalog.NewStagingStore(dir, "staging.jsonl", nil),
		prober:   prober,
		mirror:   &fakeMirror{},
		recorder: &fakeRecorder{},
	}
	if len(persisted) > 0 {
		require.NoError(t, f.store.Save(persisted))
	}
	f.engine = scan.New(f.store, f.staging, prober, scan.Options{
		ChunkSize: 10,
		Mirror:    f.mirror,
		Recorder:  f.recorder,
	})
	require.NoError(t, f.engine.Open(context.Background()))
	t.Cleanup(func() { _ = f.engine.Close() })
	return f
}

func sell(id int64, stock int) catalog.Record {
	return catalog.Record{ID: id, Title: "listing", InStock: stock, Direction: catalog.DirectionSell}
}

func recordIDs(records []catalog.Record) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestOpen(t *testing.T) {
	t.Run("LoadsPersistedSnapshot", func(t *testing.T) {
		f := newFixture(t, newFakeProber(), sell(3, 1), sell(9, 2))
		assert.Equal(t, 2, f.engine.CurrentCatalog().Len())
		assert.Equal(t, int64(9), f.engine.CurrentCatalog().Cursor())
		assert.Equal(t, scan.StateIdle, f.engine.Status().State)
	})

	t.Run("CorruptSnapshotStartsEmpty", func(t *testing.T) {
		dir := t.TempDir()
		store := catalog.NewSnapshotStore(dir, "catalog.json")
		require.NoError(t, os.WriteFile(store.Path(), []byte("{{"), 0600))

		engine := scan.New(store, catalog.NewStagingStore(dir, "staging.jsonl", nil), newFakeProber(), scan.Options{})
		require.NoError(t, engine.Open(context.Background()))
		assert.Equal(t, 0, engine.CurrentCatalog().Len())
	})

	t.Run("RestoresFromMirrorWhenMissing", func(t *testing.T) {
		data, err := catalog.Encode([]catalog.Record{sell(5, 4)})
		require.NoError(t, err)
		mirror := &fakeMirror{latest: data}

		dir := t.TempDir()
		store := catalog.NewSnapshotStore(dir, "catalog.json")
		engine := scan.New(store, catalog.NewStagingStore(dir, "staging.jsonl", nil), newFakeProber(), scan.Options{Mirror: mirror})
		require.NoError(t, engine.Open(context.Background()))

		assert.True(t, store.Exists())
		_, ok := engine.CurrentCatalog().Get(5)
		assert.True(t, ok)
	})
}

func TestFullRescan(t *testing.T) {
	prober := newFakeProber(
		sell(2, 3),
		sell(5, 0),
		catalog.Record{ID: 7, InStock: 0, Direction: catalog.DirectionBuy},
		sell(18, 1),
		catalog.Record{ID: 25, InStock: 4, SoldOut: true},
	)
	f := newFixture(t, prober)

	sum, err := f.engine.FullRescan(context.Background(), 1, 30, 10)
	require.NoError(t, err)

	assert.Equal(t, scan.KindFull, sum.Kind)
	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, 30, sum.Checked)
	assert.Equal(t, 3, sum.Found)
	assert.Equal(t, 2, sum.Inactive)
	assert.Equal(t, 25, sum.Missing)
	assert.Equal(t, 3, sum.Batches)
	assert.Equal(t, 3, sum.Added)
	assert.Equal(t, 3, sum.After)

	assert.Equal(t, []int64{2, 7, 18}, recordIDs(f.engine.CurrentCatalog().Records()))

	persisted, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 7, 18}, recordIDs(persisted))

	assert.Len(t, f.mirror.published, 3)
	require.Len(t, f.recorder.runs, 1)
	assert.NoError(t, f.recorder.errs[0])
	assert.Equal(t, sum.RunID, f.recorder.runs[0].RunID)
	assert.Equal(t, scan.StateIdle, f.engine.Status().State)
	require.NotNil(t, f.engine.Status().Last)
}

func TestFullRescanInvalidRange(t *testing.T) {
	f := newFixture(t, newFakeProber())

	for _, tc := range []struct {
		name       string
		start, end int64
		batch      int
	}{
		{"ZeroStart", 0, 10, 5},
		{"EndBeforeStart", 10, 5, 5},
		{"ZeroBatch", 1, 10, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.FullRescan(context.Background(), tc.start, tc.end, tc.batch)
			assert.ErrorIs(t, err, scan.ErrInvalidRange)
		})
	}
	assert.Empty(t, f.prober.probed())
}

func TestFullRescanDiscardsLeftoverStaging(t *testing.T) {
	f := newFixture(t, newFakeProber(sell(1, 1)))
	require.NoError(t, f.staging.Append(sell(999, 5)))

	_, err := f.engine.FullRescan(context.Background(), 1, 5, 5)
	require.NoError(t, err)

	_, ok := f.engine.CurrentCatalog().Get(999)
	assert.False(t, ok)
}

func TestIncrementalUpdate(t *testing.T) {
	prober := newFakeProber(sell(150, 1), sell(250, 2), sell(399, 3), sell(450, 1))
	f := newFixture(t, prober, sell(100, 4))

	batchOf := func(id int64) int { return int((id - 101) / 100) }
	var (
		mu                    sync.Mutex
		mergedBeforeNextBatch []bool
		seenBatch             = map[int]bool{}
	)
	prober.hook = func(id int64) {
		mu.Lock()
		defer mu.Unlock()
		b := batchOf(id)
		if seenBatch[b] {
			return
		}
		seenBatch[b] = true
		if b > 0 {
			// The previous batch's find must already be in the catalog.
			prev := []int64{150, 250}[b-1]
			_, ok := f.engine.CurrentCatalog().Get(prev)
			mergedBeforeNextBatch = append(mergedBeforeNextBatch, ok)
		}
	}
	sum, err := f.engine.IncrementalUpdate(context.Background(), 300, 100)
	require.NoError(t, err)

	calls := prober.probed()
	require.Len(t, calls, 300)
	for i, id := range calls {
		// Batches never interleave.
		assert.Equal(t, i/100, batchOf(id), "id %d probed out of batch order", id)
	}
	assert.Equal(t, int64(101), sum.StartID)
	assert.Equal(t, int64(400), sum.EndID)
	assert.Equal(t, 3, sum.Batches)
	assert.Equal(t, []bool{true, true}, mergedBeforeNextBatch)

	assert.Equal(t, []int64{100, 150, 250, 399}, recordIDs(f.engine.CurrentCatalog().Records()))
	assert.Equal(t, int64(399), f.engine.CurrentCatalog().Cursor())
}

func TestIncrementalUpdateEmptyCatalog(t *testing.T) {
	f := newFixture(t, newFakeProber(sell(1, 1)))

	_, err := f.engine.IncrementalUpdate(context.Background(), 100, 10)
	assert.ErrorIs(t, err, scan.ErrEmptyCatalog)
	assert.Empty(t, f.prober.probed())
}

func TestScanCancelStopsAfterCurrentBatch(t *testing.T) {
	prober := newFakeProber(sell(5, 1), sell(15, 1), sell(25, 1))
	f := newFixture(t, prober)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	prober.hook = func(id int64) {
		if id == 12 {
			cancel()
		}
	}

	sum, err := f.engine.FullRescan(ctx, 1, 30, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, sum.Canceled)
	assert.Equal(t, 2, sum.Batches)
	assert.Equal(t, []int64{5, 15}, recordIDs(f.engine.CurrentCatalog().Records()))

	for _, id := range prober.probed() {
		assert.LessOrEqual(t, id, int64(20))
	}
}

func TestEngineBusy(t *testing.T) {
	prober := newFakeProber(sell(1, 1))
	f := newFixture(t, prober)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	prober.hook = func(int64) {
		once.Do(func() {
			close(entered)
			<-release
		})
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.engine.FullRescan(context.Background(), 1, 5, 5)
		done <- err
	}()

	<-entered
	assert.Equal(t, scan.StateScanning, f.engine.Status().State)
	assert.Equal(t, scan.KindFull, f.engine.Status().Kind)

	_, err := f.engine.RefreshLowStock(context.Background(), 2)
	assert.ErrorIs(t, err, scan.ErrBusy)
	_, err = f.engine.Dedupe(context.Background())
	assert.ErrorIs(t, err, scan.ErrBusy)

	close(release)
	require.NoError(t, <-done)
}

func TestEngineLockedByOtherProcess(t *testing.T) {
	f := newFixture(t, newFakeProber())
	other := catalog.NewSnapshotStore(f.dir, "catalog.json")
	unlock, err := other.Lock()
	require.NoError(t, err)
	defer unlock()

	_, err = f.engine.FullRescan(context.Background(), 1, 5, 5)
	assert.True(t, errors.Is(err, catalog.ErrLocked))
}
