package db

import (
	"log"

	"github.com/sirdesai22/padel-score/internal/models"
	"gorm.io/gorm"
)

// DemoUserID is the profile inserted by Seed.
const DemoUserID = "demo-user"

// Seed inserts a demo player profile when the users table is empty.
func Seed(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("🌱 Data already exists, skipping seed.")
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		name := "Demo Player"
		email := "demo@example.com"
		user := models.User{ID: DemoUserID, Name: &name, Email: &email}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		log.Println("🌱 Sample data inserted successfully.")
		return nil
	})
}
