// Package integrity provides health checks for the sync engine's persistent state.
//
// # Checks Provided
//
//   - Snapshot: the local catalog parses, holds no duplicate or inactive
//     listings, is sorted, and no staging entries were left behind by an
//     interrupted scan. Repair runs a dedupe.
//   - Mirror: the bucket exists and holds a readable latest snapshot. Repair
//     creates the bucket and publishes the local snapshot.
//   - History: the run history table has every column the recorder writes.
//     Repair migrates the table.
//
// # HTTP Endpoints
//
//   - GET /integrity : Runs all checks.
//   - GET /integrity/snapshot : Runs the snapshot check (supports ?fix=true).
//   - GET /integrity/mirror : Runs the mirror check (supports ?fix=true).
//   - GET /integrity/history : Runs the history schema check (supports ?fix=true).
package integrity
