// Package probe classifies single identifiers against the remote lookup endpoint.
//
// A Prober wraps a Source with the shared rate limiter and the bounded retry
// policy. Each probe yields one of four outcomes:
//
//   - Active: the listing exists and satisfies the active predicate
//   - Inactive: the listing exists but is sold out or out of stock
//   - NotFound: unassigned, failed status, malformed, or retries exhausted
//   - Error: the caller gave up before the lookup was admitted
//
// Transient failures never escape a probe; scans simply see NotFound.
package probe
