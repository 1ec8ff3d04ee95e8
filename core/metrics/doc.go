// Package metrics exposes Prometheus instrumentation for the sync engine.
//
// Collectors are registered on the default registry at init and served by
// Handler, which the HTTP server mounts at /metrics.
package metrics
