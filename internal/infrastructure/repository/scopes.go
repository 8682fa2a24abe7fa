package repository

import (
	"gorm.io/gorm"
)

// TerminalScope returns a GORM scope that filters by register terminal.
// An empty terminal ID leaves the query unfiltered.
func TerminalScope(terminalID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if terminalID == "" {
			return db
		}
		return db.Where("terminal_id = ?", terminalID)
	}
}
