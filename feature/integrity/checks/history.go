package checks

import (
	"fmt"

	"catalog-sync/core/database"
	"catalog-sync/core/history"

	"gorm.io/gorm"
)

// SchemaReport describes the run history table.
type SchemaReport struct {
	Table          string   `json:"table"`
	Exists         bool     `json:"exists"`
	MissingColumns []string `json:"missing_columns"`
	Status         string   `json:"status"` // "ok", "issues"
}

// Healthy reports whether the table needs no migration.
func (r *SchemaReport) Healthy() bool {
	return r.Status == "ok"
}

// CheckHistorySchema compares the history table with the columns the
// recorder writes.
func CheckHistorySchema(db *gorm.DB) (*SchemaReport, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	table := history.ScanRun{}.TableName()
	report := &SchemaReport{Table: table, MissingColumns: []string{}, Status: "ok"}

	columns, err := database.GetTableColumns(db, table)
	if err != nil {
		return nil, err
	}
	report.Exists = len(columns) > 0

	missing, err := database.MissingColumns(db, table, history.Columns())
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		report.MissingColumns = missing
		report.Status = "issues"
	}
	return report, nil
}

// FixHistorySchema migrates the history table.
func FixHistorySchema(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}
	_, err := history.NewRecorder(db)
	return err
}
