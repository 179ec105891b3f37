// Package main provides a CLI for running price-history backfills directly.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/price-oracle/internal/config"
	"github.com/price-oracle/internal/logging"
	"github.com/price-oracle/internal/models"
	"github.com/price-oracle/internal/pricesource"
	"github.com/price-oracle/internal/service"
	"github.com/price-oracle/internal/storage"
)

func main() {
	token := flag.String("token", "", "token contract address (0x...)")
	network := flag.String("network", "ethereum", "network (ethereum or polygon)")
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

	if !common.IsHexAddress(*token) {
		logger.Fatal("A valid -token address is required")
	}
	net := models.Network(*network)
	if !net.IsValid() {
		logger.Fatal("-network must be ethereum or polygon")
	}

	var durable storage.Store
	postgres, err := storage.NewPostgresDB(&cfg.Postgres)
	if err != nil {
		logger.WithError(err).Warn("Postgres unavailable, results will not be persisted")
	} else {
		defer postgres.Close()
		if err := storage.RunMigrations(cfg.Postgres.URL(), cfg.Postgres.MigrationsPath); err != nil {
			logger.WithError(err).Fatal("Failed to run migrations")
		}
		durable = storage.NewPostgresStore(postgres)
	}

	store := storage.NewDualStore(durable, nil)
	source := pricesource.NewHTTPClient(&cfg.PriceSource)
	backfill := service.NewBackfillService(store, source, &cfg.Backfill)

	ctx := context.Background()
	job, err := backfill.Schedule(ctx, *token, net)
	if err != nil {
		logger.WithError(err).Fatal("Failed to schedule backfill")
	}

	log := logger.WithFields(map[string]interface{}{
		"jobId": job.JobID,
		"token": job.Token,
	})
	log.Info("Backfill scheduled, waiting for completion")

	for {
		time.Sleep(2 * time.Second)

		view, err := backfill.GetStatus(ctx, job.JobID)
		if err != nil {
			log.WithError(err).Fatal("Failed to read job status")
		}
		if view == nil {
			log.Fatal("Job disappeared")
		}

		log.WithFields(map[string]interface{}{
			"status":   view.Status,
			"progress": view.Progress,
		}).Info("Backfill progress")

		if view.Status.IsTerminal() {
			if view.Status == models.JobStatusFailed && view.Error != nil {
				log.WithField("error", *view.Error).Fatal("Backfill failed")
			}
			log.Info("Backfill completed")
			return
		}
	}
}
