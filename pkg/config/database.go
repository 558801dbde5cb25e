package config

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"yieldvault/internal/models"
)

var DB *gorm.DB

// InitDB opens the postgres connection and migrates the vault tables.
func InitDB(cfg DatabaseConfig) error {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	DB = db

	err = DB.AutoMigrate(
		&models.VaultEvent{},
		&models.VaultSnapshot{},
		&models.StrategySnapshot{},
		&models.RoleGrant{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	log.WithField("host", cfg.Host).Info("database initialized")
	return nil
}

// CloseDB releases the connection pool.
func CloseDB() {
	if DB == nil {
		return
	}
	if sqlDB, err := DB.DB(); err == nil {
		sqlDB.Close()
	}
}
