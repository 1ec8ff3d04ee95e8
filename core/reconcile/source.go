package reconcile

import (
	"context"
	"fmt"

	"catalog-sync/core/catalog"
)

// Mirror is the published side of a reconciliation.
type Mirror interface {
	// Name identifies the mirror, e.g. its bucket and object.
	Name() string
	Publish(ctx context.Context, data []byte) error
	Restore(ctx context.Context) ([]byte, error)
}

// loadLocal indexes the local snapshot by listing id.
func loadLocal(store *catalog.SnapshotStore) (map[int64]catalog.Record, []byte, error) {
	data, err := store.Bytes()
	if err != nil {
		return nil, nil, err
	}
	index, err := decodeIndex(data)
	if err != nil {
		return nil, nil, fmt.Errorf("local snapshot %s: %w", store.Path(), err)
	}
	return index, data, nil
}

// loadMirror indexes the mirrored snapshot by listing id. A missing object
// yields a nil index.
func loadMirror(ctx context.Context, mirror Mirror) (map[int64]catalog.Record, []byte, error) {
	data, err := mirror.Restore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(data) == 0 {
		return nil, nil, nil
	}
	index, err := decodeIndex(data)
	if err != nil {
		return nil, nil, fmt.Errorf("mirror %s: %w", mirror.Name(), err)
	}
	return index, data, nil
}

func decodeIndex(data []byte) (map[int64]catalog.Record, error) {
	index := make(map[int64]catalog.Record)
	if len(data) == 0 {
		return index, nil
	}
	records, err := catalog.Decode(data)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		index[r.ID] = r
	}
	return index, nil
}
