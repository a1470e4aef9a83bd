package db

import (
	"fmt"

	"coin_economy/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql" // MySQL driver for GORM
	"gorm.io/gorm"         // GORM ORM library
	"gorm.io/gorm/logger"  // GORM logger levels
)

// OpenMySQL opens a gorm connection to the relational database
func OpenMySQL(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("mysql: empty DSN")
	}
	// Open a connection to the database, keep gorm's own logging to warnings
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true, // Map duplicate key errors to gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	return gdb, nil
}

// Models lists every table owned by the relational backend
func Models() []any {
	return []any{&domain.User{}, &domain.Account{}, &domain.HistoryEntry{}, &domain.Shop{}}
}

// Migrate performs automatic migration for the database schema
func Migrate(gdb *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logrus.Info("Migration completed.") // Log successful migration
	return nil
}
