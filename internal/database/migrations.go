package database

import (
	"gorm.io/gorm"

	"github.com/sonderhq/sonder-server/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.ChatSession{},
		&models.ChatMessage{},
		&models.ScheduleRequest{},
		&models.Notification{},
		&models.CounsellorRating{},
	)
}

// SeedData is a start-up hook for default records. The platform currently
// ships without seed accounts; registration is open.
func SeedData(db *gorm.DB) error {
	return nil
}
