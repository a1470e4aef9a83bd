package main

import (
	"coin_economy/internal/config" // Custom import path (Config)
	"coin_economy/internal/db"     // Custom import path (Database)

	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// Main entry point for migration
func main() {
	cfg, err := config.LoadConfig() // Load configuration
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	if cfg.StoreBackend != config.BackendMySQL {
		logrus.WithField("backend", cfg.StoreBackend).Info("Nothing to migrate")
		return
	}

	gdb, err := db.OpenMySQL(cfg.MySQLDSN())
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		logrus.Fatal(err)
	}
}
