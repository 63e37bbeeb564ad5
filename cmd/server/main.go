package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/msrptw/backend/config"
	"github.com/msrptw/backend/internal/bootstrap"
	httpDelivery "github.com/msrptw/backend/internal/delivery/http"
	"github.com/msrptw/backend/internal/infrastructure/cache"
	"github.com/msrptw/backend/internal/logging"
	"github.com/msrptw/backend/internal/usecase"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting msrptw backend",
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Driver),
		zap.Duration("cache_ttl", cfg.Cache.TTL))

	seedFile, err := bootstrap.LoadSeed(cfg.TaxonomyFile)
	if err != nil {
		logger.Fatal("failed to load taxonomy seed", zap.Error(err))
	}

	// Initialize infrastructure dependencies
	backend, err := bootstrap.OpenBackend(context.Background(), cfg.Storage, seedFile, false)
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}
	defer backend.Close()

	memoryCache := cache.NewMemoryCache(cache.DefaultCleanupInterval)
	defer memoryCache.Close()

	// Initialize usecase layer
	priceService := usecase.NewPriceService(
		backend.Reader,
		memoryCache,
		logger.Named("prices"),
		usecase.PriceServiceConfig{CacheTTL: cfg.Cache.TTL},
	)

	handler := httpDelivery.NewHandler(priceService, logger.Named("http"))
	router := httpDelivery.SetupRouter(cfg, handler, logger.Named("http"))

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("server listening", zap.String("addr", addr))

	if err := router.Run(addr); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
