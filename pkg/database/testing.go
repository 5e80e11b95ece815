package database

import (
	"fmt"
	"vidyabot_backend/internal/config"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OpenMemory returns a migrated, private in-memory SQLite database.
func OpenMemory() (*gorm.DB, error) {
	db, err := InitDB(&config.DatabaseConfig{
		Driver: DriverSQLite,
		DBName: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()),
	}, false)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
