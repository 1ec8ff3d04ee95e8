// Package catalog holds the listing model and its durable forms.
//
// # Records
//
// A Record is one marketplace listing keyed by ID. A record is active when it
// is a buy order, or when it has at least one unit in stock and is not sold
// out. Only active records are kept in the catalog.
//
// # Persistence
//
// The catalog is stored as a single JSON array (SnapshotStore) that is always
// replaced wholesale through a temporary file and a rename. Records found
// during a scan batch are first appended to a line-delimited staging log
// (StagingStore) and folded into the snapshot by the Merger once the batch is
// complete:
//
//	counts, merged, err := merger.Merge()
//
// Merging keeps the latest entry per ID, so re-merging the same staged batch
// is a no-op.
package catalog
