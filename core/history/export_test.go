package history

import "gorm.io/gorm"

// NewRecorderForTest builds a Recorder without migrating.
func NewRecorderForTest(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}
