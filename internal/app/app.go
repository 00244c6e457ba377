// Package app wires configuration into the fetchers and stores shared by the commands.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"BreakoutSentinel/internal/collector"
	"BreakoutSentinel/internal/config"
	"BreakoutSentinel/internal/recorder"
)

// NewFetcher builds the configured data source behind the normalizing collector.
// The returned cleanup releases the cache connection, if any.
func NewFetcher(cfg *config.Config) (collector.Fetcher, func()) {
	var raw collector.Fetcher
	switch cfg.DataSource.Provider {
	case "rest":
		raw = collector.NewRESTFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy)
	case "mock":
		raw = &collector.MockFetcher{Price: 100}
	default:
		raw = collector.NewYahooFetcher(cfg.Proxy)
	}

	cleanup := func() {}
	if cfg.Cache.RedisAddr != "" {
		cached := collector.NewCachedFetcher(raw, cfg.Cache.RedisAddr, cfg.Cache.Password, cfg.Cache.DB, cfg.Cache.TTL)
		cleanup = func() {
			if err := cached.Close(); err != nil {
				log.Printf("[WARN] close redis: %v", err)
			}
		}
		raw = cached
	}

	f := collector.NewCollector(raw, cfg.DataSource.Timeout)
	log.Printf("[INFO] data source: %s", f.Name())
	return f, cleanup
}

// OpenStore opens the configured database and seeds it with the configured stocks.
// Driver "none" yields an in-memory directory that discards writes.
func OpenStore(ctx context.Context, cfg *config.Config) (recorder.Recorder, error) {
	if cfg.Database.Driver == "none" {
		log.Println("[WARN] no database configured, results will not be stored")
		return recorder.NewNoopRecorder(cfg.Stocks), nil
	}

	dsn := cfg.Database.DSN
	if cfg.Database.Driver == recorder.DriverSQLite && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	store, err := recorder.Open(ctx, cfg.Database.Driver, dsn)
	if err != nil {
		return nil, err
	}
	for i := range cfg.Stocks {
		if _, err := store.UpsertStock(ctx, &cfg.Stocks[i]); err != nil {
			store.Close()
			return nil, fmt.Errorf("seed stocks: %w", err)
		}
	}
	if len(cfg.Stocks) > 0 {
		log.Printf("[INFO] stock directory seeded with %d symbols", len(cfg.Stocks))
	}
	return store, nil
}
