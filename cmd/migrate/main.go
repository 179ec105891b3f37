// Package main provides the database migration tool for the price oracle.
package main

import (
	"flag"

	"github.com/price-oracle/internal/config"
	"github.com/price-oracle/internal/logging"
	"github.com/price-oracle/internal/storage"
)

func main() {
	down := flag.Bool("down", false, "roll back the last migration instead of migrating up")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	if *down {
		if err := storage.RollbackMigrations(cfg.Postgres.URL(), cfg.Postgres.MigrationsPath); err != nil {
			logger.WithError(err).Fatal("Rollback failed")
		}
		logger.Info("Rolled back last migration")
		return
	}

	if err := storage.RunMigrations(cfg.Postgres.URL(), cfg.Postgres.MigrationsPath); err != nil {
		logger.WithError(err).Fatal("Migration failed")
	}
	logger.Info("Migrations applied")
}
