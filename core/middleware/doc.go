// Package middleware groups the HTTP middleware of the Fiber application.
//
// # Components
//
//   - auth: API key validation for every route except the skipped prefixes
//     (the metrics endpoint).
//   - rayid: assigns each request a RayID, stores it in the context locals
//     and echoes it in the X-Ray-ID response header for tracing.
//
// Both are registered globally in the start command, rayid first.
package middleware
