package db

import (
	"fmt"
	"log"

	"github.com/sirdesai22/padel-score/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Match{},
		&models.MatchState{},
		&models.MatchEvent{},
		&models.MatchEventSeq{},
		&models.Outbox{},
		&models.DLQ{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Println("✅ database migrated successfully")
	return nil
}
