package db

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"twister-backend/internal/config"
	"twister-backend/internal/metrics"
	"twister-backend/internal/models"
)

var DB *gorm.DB

// InitDB opens the configured database and migrates the schema.
func InitDB(cfg config.DatabaseConfig) error {
	if cfg.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if cfg.Driver != "" && cfg.Driver != "postgres" {
		return fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	database, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		PrepareStmt:                              true,
		CreateBatchSize:                          1000,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		metrics.DBConnectionStatus.Set(0)
		return fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	logrus.Info("[DB] Database connected successfully")

	if err := database.AutoMigrate(
		&models.Leaf{},
		&models.Operation{},
	); err != nil {
		return fmt.Errorf("AutoMigrate failed: %w", err)
	}

	metrics.DBConnectionStatus.Set(1)
	logrus.Info("[DB] Database schema migrated successfully")
	DB = database
	return nil
}

// Close releases the pool.
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
