// Package database opens the optional SQL database used for run history.
//
// It wraps GORM and supports two drivers: MySQL for shared deployments and
// SQLite for a local file (or ":memory:" in tests).
//
// # Schema Inspection
//
// GetTableColumns lists the columns of a table in a driver-neutral form. The
// integrity checks use it to verify that the history table matches the model.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Warn("Run history disabled", zap.Error(err))
//	}
//
//	columns, err := database.GetTableColumns(db, "scan_runs")
package database
