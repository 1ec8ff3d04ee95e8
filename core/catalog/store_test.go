package catalog_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"catalog-sync/core/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotStore(t *testing.T) {
	t.Run("MissingFileLoadsEmpty", func(t *testing.T) {
		store := catalog.NewSnapshotStore(t.TempDir(), "catalog.json")
		records, err := store.Load()
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.NotNil(t, records)
		assert.False(t, store.Exists())
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		dir := t.TempDir()
		store := catalog.NewSnapshotStore(dir, "catalog.json")
		want := []catalog.Record{
			{ID: 1, Title: "Hornet", Price: price(4200), InStock: 3, Direction: catalog.DirectionSell},
			{ID: 2, Name: "Pisces", InStock: 0, Direction: catalog.DirectionBuy},
		}
		require.NoError(t, store.Save(want))
		assert.True(t, store.Exists())

		got, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, want, got)

		raw, err := os.ReadFile(store.Path())
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(raw), "[\n  {"))
		assert.Contains(t, string(raw), `"operation": "buy"`)
	})

	t.Run("NoTemporaryFilesLeftBehind", func(t *testing.T) {
		dir := t.TempDir()
		store := catalog.NewSnapshotStore(dir, "catalog.json")
		require.NoError(t, store.Save([]catalog.Record{{ID: 1, InStock: 1}}))
		require.NoError(t, store.Save([]catalog.Record{{ID: 2, InStock: 1}}))

		matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("CorruptFile", func(t *testing.T) {
		dir := t.TempDir()
		store := catalog.NewSnapshotStore(dir, "catalog.json")
		require.NoError(t, os.WriteFile(store.Path(), []byte("[{"), 0600))

		_, err := store.Load()
		assert.ErrorIs(t, err, catalog.ErrCorrupt)
	})

	t.Run("LooseBotFormat", func(t *testing.T) {
		dir := t.TempDir()
		store := catalog.NewSnapshotStore(dir, "marketplace_data.json")
		doc := `[
			{"id":1,"title":"Hornet","in_stock":5,"is_sold_out":0,"operation":"sell","price":{"amount":1200}},
			{"id":"2","name":"Pisces","in_stock":"3","is_sold_out":"0","price":"450"},
			{"id":3,"slug":"order","in_stock":0,"is_sold_out":1,"operation":"buy","price":0}
		]`
		require.NoError(t, os.WriteFile(store.Path(), []byte(doc), 0600))

		got, err := store.Load()
		require.NoError(t, err)
		require.Len(t, got, 3)

		assert.Equal(t, int64(1), got[0].ID)
		assert.Equal(t, 5, got[0].InStock)
		assert.False(t, got[0].SoldOut)
		assert.Equal(t, price(1200), got[0].Price)
		assert.True(t, got[0].IsActive())

		assert.Equal(t, int64(2), got[1].ID)
		assert.Equal(t, 3, got[1].InStock)
		assert.Equal(t, price(450), got[1].Price)

		assert.True(t, got[2].SoldOut)
		assert.Equal(t, catalog.DirectionBuy, got[2].Direction)
		assert.Nil(t, got[2].Price)
	})

	t.Run("NonObjectEntryIsCorrupt", func(t *testing.T) {
		_, err := catalog.Decode([]byte(`[{"id":1},42]`))
		assert.ErrorIs(t, err, catalog.ErrCorrupt)
	})

	t.Run("NullDocumentLoadsEmpty", func(t *testing.T) {
		records, err := catalog.Decode([]byte("null"))
		require.NoError(t, err)
		assert.NotNil(t, records)
		assert.Empty(t, records)
	})

	t.Run("Bytes", func(t *testing.T) {
		store := catalog.NewSnapshotStore(t.TempDir(), "catalog.json")
		data, err := store.Bytes()
		require.NoError(t, err)
		assert.Nil(t, data)

		require.NoError(t, store.Save(nil))
		data, err = store.Bytes()
		require.NoError(t, err)
		assert.Equal(t, "[]", string(data))
	})

	t.Run("LockIsExclusive", func(t *testing.T) {
		dir := t.TempDir()
		first := catalog.NewSnapshotStore(dir, "catalog.json")
		second := catalog.NewSnapshotStore(dir, "catalog.json")

		unlock, err := first.Lock()
		require.NoError(t, err)

		_, err = second.Lock()
		assert.ErrorIs(t, err, catalog.ErrLocked)

		unlock()
		unlockSecond, err := second.Lock()
		require.NoError(t, err)
		unlockSecond()
	})
}

func TestStagingStore(t *testing.T) {
	t.Run("AppendDrainClear", func(t *testing.T) {
		staging := catalog.NewStagingStore(t.TempDir(), "staging.jsonl", nil)
		defer staging.Close()

		require.NoError(t, staging.Append(catalog.Record{ID: 1, InStock: 2}))
		require.NoError(t, staging.Append(catalog.Record{ID: 2, InStock: 3}))

		records, err := staging.Drain()
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, ids(records))

		require.NoError(t, staging.Clear())
		records, err = staging.Drain()
		require.NoError(t, err)
		assert.Empty(t, records)

		require.NoError(t, staging.Append(catalog.Record{ID: 3, InStock: 1}))
		records, err = staging.Drain()
		require.NoError(t, err)
		assert.Equal(t, []int64{3}, ids(records))
	})

	t.Run("OneLinePerRecord", func(t *testing.T) {
		staging := catalog.NewStagingStore(t.TempDir(), "staging.jsonl", nil)
		defer staging.Close()

		require.NoError(t, staging.Append(catalog.Record{ID: 1, InStock: 2}))
		require.NoError(t, staging.Append(catalog.Record{ID: 2, InStock: 3}))

		raw, err := os.ReadFile(staging.Path())
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
		assert.Len(t, lines, 2)
	})

	t.Run("MissingLogDrainsNothing", func(t *testing.T) {
		staging := catalog.NewStagingStore(t.TempDir(), "staging.jsonl", nil)
		records, err := staging.Drain()
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.NoError(t, staging.Clear())
	})

	t.Run("SkipsUnparseableLines", func(t *testing.T) {
		dir := t.TempDir()
		staging := catalog.NewStagingStore(dir, "staging.jsonl", nil)
		content := `{"id":1,"in_stock":1,"operation":"sell"}` + "\n" +
			`{"id":2,"in_st` + "\n" +
			"\n" +
			`{"id":3,"in_stock":2,"operation":"sell"}` + "\n"
		require.NoError(t, os.WriteFile(staging.Path(), []byte(content), 0600))

		records, err := staging.Drain()
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 3}, ids(records))
	})
}
