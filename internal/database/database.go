package database

import (
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arnold/habitgrid-api/internal/config"
	"github.com/arnold/habitgrid-api/internal/models"
)

var DB *gorm.DB

// Open picks postgres for postgres URLs and sqlite for everything else.
func Open(url string, level logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(url, "postgres") {
		dialector = postgres.Open(url)
	} else {
		dialector = sqlite.Open(url)
	}
	return gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
}

func Connect(cfg *config.Config) error {
	db, err := Open(cfg.DatabaseURL, logger.Warn)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

func Migrate() error {
	return MigrateDB(DB)
}

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Document{},
		&models.NotificationRegistration{},
	)
}
