package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ColumnInfo is one column of a table, lower-cased.
type ColumnInfo struct {
	Field string
	Type  string
}

// GetTableColumns lists the columns of table. A missing table yields no columns.
func GetTableColumns(db *gorm.DB, table string) ([]ColumnInfo, error) {
	if strings.ContainsAny(table, "`'\";") {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	var columns []ColumnInfo
	if db.Dialector.Name() == "sqlite" {
		var rows []struct {
			Name string
			Type string
		}
		if err := db.Raw(fmt.Sprintf("PRAGMA table_info('%s')", table)).Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to get columns for table %s: %w", table, err)
		}
		for _, r := range rows {
			columns = append(columns, ColumnInfo{Field: strings.ToLower(r.Name), Type: strings.ToLower(r.Type)})
		}
		return columns, nil
	}

	if !db.Migrator().HasTable(table) {
		return nil, nil
	}
	var rows []struct {
		Field string
		Type  string
	}
	if err := db.Raw(fmt.Sprintf("SHOW COLUMNS FROM `%s`", table)).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get columns for table %s: %w", table, err)
	}
	for _, r := range rows {
		columns = append(columns, ColumnInfo{Field: strings.ToLower(r.Field), Type: strings.ToLower(r.Type)})
	}
	return columns, nil
}

// MissingColumns returns the expected column names absent from table.
func MissingColumns(db *gorm.DB, table string, expected []string) ([]string, error) {
	columns, err := GetTableColumns(db, table)
	if err != nil {
		return nil, err
	}
	present := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		present[c.Field] = struct{}{}
	}
	var missing []string
	for _, name := range expected {
		if _, ok := present[strings.ToLower(name)]; !ok {
			missing = append(missing, name)
		}
	}
	return missing, nil
}
