// Package scan is the synchronization engine.
//
// An Engine owns the catalog and exposes the operations that change it:
//
//   - FullRescan probes every identifier in a range
//   - IncrementalUpdate sweeps a window past the highest catalogued identifier
//   - Discover samples a sparse identifier space, then refines dense runs
//   - RefreshLowStock re-checks known low-stock records one by one
//   - Dedupe rewrites the snapshot without duplicates or inactive records
//
// Scans work in batches. Active results of a batch are appended to the
// staging log while the batch runs and merged into the snapshot once it
// completes; batch i+1 starts only after batch i is merged. Probes inside a
// batch run concurrently in chunks and share one rate limiter.
//
// Only one mutating operation runs at a time. A second caller gets ErrBusy,
// another process holding the data directory gets catalog.ErrLocked.
// Cancellation is observed between chunks and batches for scans and between
// records for refresh; admitted lookups always complete.
package scan
