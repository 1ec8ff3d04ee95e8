// Package history keeps a table of finished sync operations.
//
// The engine reports every operation through scan.Recorder; this package
// implements it on GORM so the table can live in SQLite or MySQL. Recent
// feeds the `history` command and the status endpoint.
package history
