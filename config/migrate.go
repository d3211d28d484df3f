package config

import (
	"github.com/JerryLinyx/PressGO/models"
	"gorm.io/gorm"
)

// MigrateDB creates the tables used by the postgres backend driver.
func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.AdminUser{},
		&models.Article{},
	)
}
