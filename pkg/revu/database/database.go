// Package database opens the application's SQLite handle. Query logging
// follows the environment: gorm logs every statement in development and
// stays silent otherwise. Unique-constraint violations are translated to
// gorm.ErrDuplicatedKey so callers can map them to domain errors.
package database

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/revuhq/revu/pkg/revu/config"
)

var DB *gorm.DB

// Connect opens the database at cfg.DBPath and stores the shared handle.
func Connect(cfg *config.Config) error {
	mode := gormlogger.Silent
	if cfg.Env == "development" {
		mode = gormlogger.Info
	}

	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(mode),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("database open failed: %w", err)
	}
	DB = db

	log.Info().Str("path", cfg.DBPath).Msg("Database connected")
	return nil
}

// GetDB returns the database instance.
func GetDB() *gorm.DB {
	return DB
}
