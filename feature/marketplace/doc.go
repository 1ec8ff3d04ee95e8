// Package marketplace connects the sync engine to the remote marketplace and
// to HTTP clients.
//
// HTTPSource implements probe.Source against the listings endpoint. Responses
// are read with gjson; the payload may be an object or a one element array and
// prices may be scalars or {amount} objects.
//
// Service answers catalog queries (search, stats, lookup by id) from the
// engine's current snapshot and starts engine operations in the background.
// Handler exposes both under /catalog and /sync.
package marketplace
