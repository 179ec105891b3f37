// Package main provides the API server entry point for the price oracle service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/price-oracle/internal/api"
	"github.com/price-oracle/internal/cache"
	"github.com/price-oracle/internal/config"
	"github.com/price-oracle/internal/logging"
	"github.com/price-oracle/internal/pricesource"
	"github.com/price-oracle/internal/service"
	"github.com/price-oracle/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Backends are optional: the oracle degrades to in-process storage and
	// caching when Postgres or Redis cannot be reached.
	var durable storage.Store
	postgres, err := storage.NewPostgresDB(&cfg.Postgres)
	if err != nil {
		logger.WithError(err).Warn("Postgres unavailable, running with in-process storage only")
	} else {
		defer postgres.Close()
		if err := storage.RunMigrations(cfg.Postgres.URL(), cfg.Postgres.MigrationsPath); err != nil {
			logger.WithError(err).Fatal("Failed to run migrations")
		}
		durable = storage.NewPostgresStore(postgres)
		logger.Info("Connected to Postgres")
	}

	var remote cache.Cache
	redisCache, err := cache.NewRedisCache(&cfg.Redis)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, running with in-process cache only")
	} else {
		defer redisCache.Close() // nolint:errcheck // cleanup in defer
		remote = redisCache
		logger.Info("Connected to Redis")
	}

	store := storage.NewDualStore(durable, nil)
	priceCache := cache.NewDualCache(remote, nil)
	source := pricesource.NewHTTPClient(&cfg.PriceSource)

	resolver := service.NewResolver(store, priceCache, source, cfg.Cache.TTL)
	backfill := service.NewBackfillService(store, source, &cfg.Backfill)

	server := api.NewServer(&api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RateLimitRPS:    cfg.RateLimit.RequestsPerSecond,
		RateLimitBurst:  cfg.RateLimit.Burst,
	}, resolver, backfill, store)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("API server failed")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}

	logger.Info("Server stopped")
}
