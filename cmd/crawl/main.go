package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/msrptw/backend/config"
	"github.com/msrptw/backend/internal/bootstrap"
	"github.com/msrptw/backend/internal/infrastructure/retailer"
	"github.com/msrptw/backend/internal/infrastructure/review"
	"github.com/msrptw/backend/internal/logging"
	"github.com/msrptw/backend/internal/usecase"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "crawl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("crawl", pflag.ContinueOnError)
	flags.String("config", "", "path to a config file")
	flags.Int("workers", 0, "fetch pool size, 0 means one per CPU")
	flags.String("review", "terminal", "how unmatched products are reviewed: terminal or skip")
	setup := flags.Bool("setup", false, "create tables and seed taxonomy and retailers before crawling")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seedFile, err := bootstrap.LoadSeed(cfg.TaxonomyFile)
	if err != nil {
		return err
	}

	backend, err := bootstrap.OpenBackend(ctx, cfg.Storage, seedFile, *setup)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer backend.Close()

	var extra []zapcore.Core
	if cfg.Log.Persist && backend.Store != nil {
		level, err := logging.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		extra = append(extra, backend.Store.LogCore("crawl", level))
	}
	logger, err := logging.New(cfg.Log, extra...)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	fetchers, err := retailer.NewFetchers(cfg.Retailers, retailer.ClientOptions{
		Timeout:       cfg.Fetch.Timeout,
		RatePerSecond: cfg.Fetch.RatePerSecond,
		Burst:         cfg.Fetch.Burst,
		UserAgent:     cfg.Fetch.UserAgent,
		Retries:       cfg.Fetch.Retries,
		Logger:        logger.Named("retailer"),
	})
	if err != nil {
		return fmt.Errorf("configure retailers: %w", err)
	}
	if len(fetchers) == 0 {
		logger.Warn("no retailers configured, nothing to crawl")
		return nil
	}

	reviewer, err := review.New(cfg.Review.Mode, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}

	coordinator := usecase.NewFetchCoordinator(
		backend.Repo,
		usecase.NewClassifier(reviewer, logger.Named("classifier")),
		nil,
		logger.Named("coordinator"),
		usecase.CoordinatorConfig{
			Workers:      cfg.Fetch.Workers,
			FetchTimeout: cfg.Fetch.Timeout,
		},
	)

	logger.Info("crawl starting",
		zap.Int("retailers", len(fetchers)),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("review", cfg.Review.Mode))

	summary, runErr := coordinator.Direct(ctx, fetchers)

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")
	if err := out.Encode(summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	if runErr != nil {
		return fmt.Errorf("crawl run %s: %w", summary.RunID, runErr)
	}
	return nil
}
