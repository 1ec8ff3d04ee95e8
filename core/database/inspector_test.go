package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTableColumns(t *testing.T) {
	db, err := Connect(Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)

	err = db.Exec("CREATE TABLE scan_runs (id TEXT PRIMARY KEY, kind TEXT, checked INTEGER)").Error
	require.NoError(t, err)

	columns, err := GetTableColumns(db, "scan_runs")
	require.NoError(t, err)
	assert.Len(t, columns, 3)

	types := make(map[string]string)
	for _, col := range columns {
		types[col.Field] = col.Type
	}
	assert.Equal(t, "text", types["id"])
	assert.Equal(t, "integer", types["checked"])

	t.Run("MissingTable", func(t *testing.T) {
		cols, err := GetTableColumns(db, "non_existent")
		assert.NoError(t, err)
		assert.Empty(t, cols)
	})

	t.Run("RejectsQuotedNames", func(t *testing.T) {
		_, err := GetTableColumns(db, "x'); DROP TABLE scan_runs; --")
		assert.Error(t, err)
	})

	t.Run("MissingColumns", func(t *testing.T) {
		missing, err := MissingColumns(db, "scan_runs", []string{"id", "Kind", "removed"})
		require.NoError(t, err)
		assert.Equal(t, []string{"removed"}, missing)
	})
}
