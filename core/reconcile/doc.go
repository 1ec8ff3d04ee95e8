// Package reconcile detects drift between the local catalog snapshot and the
// copy published to object storage.
//
// Both sides are loaded concurrently and indexed by listing id. The union of
// ids yields one ReconcileResult per listing with presence flags and field
// mismatches. A plan then proposes one repair: publish the local snapshot
// (the default, the local side is authoritative) or restore the mirrored one.
//
// # Usage Example
//
//	spec := &reconcile.Spec{Local: store, Mirror: mirror, CacheTTL: time.Minute}
//
//	// Drift report
//	plan, cache, err := reconcile.ReconcileWithPlan(ctx, spec, reconcile.ReconcileOptions{})
//
//	// Repair
//	n, err := reconcile.ApplyPlan(ctx, spec, cache, plan, reconcile.ReconcileOptions{Confirmed: true})
//
//	// Single listing (uses the cache when CacheTTL > 0)
//	result, err := reconcile.ReconcileOne(ctx, spec, 4211)
package reconcile
