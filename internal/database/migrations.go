package database

import (
	"fmt"

	"proptrack/server/internal/models"
)

// RunMigrations creates or updates the properties table together with its
// status check and its created_at and coordinate indexes.
func (d *Database) RunMigrations() error {
	if err := d.db.AutoMigrate(&models.Property{}); err != nil {
		return fmt.Errorf("failed to migrate properties table: %w", err)
	}
	return nil
}
