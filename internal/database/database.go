package database

import (
	"github.com/joinQuantish/polymarket-mcp/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&types.Account{},
		&types.Order{},
		&types.AuditEntry{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
