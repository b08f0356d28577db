package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/giantswarm/oauth2-core/storage"
	"github.com/giantswarm/oauth2-core/storage/memory"
	"github.com/giantswarm/oauth2-core/storage/sqlite"
	"github.com/giantswarm/oauth2-core/storage/valkey"
)

const (
	backendMemory = "memory"
	backendValkey = "valkey"
	backendSQLite = "sqlite"
)

// openStore opens the configured backend. The returned close function stops
// background work and releases connections.
func openStore(ctx context.Context, cfg config, logger *slog.Logger) (storage.Store, func(), error) {
	switch cfg.Backend {
	case backendValkey:
		store, err := valkey.New(valkey.Config{
			Address:   cfg.ValkeyAddr,
			Password:  cfg.ValkeyPassword,
			DB:        cfg.ValkeyDB,
			KeyPrefix: cfg.ValkeyKeyPrefix,
			Logger:    logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open valkey store: %w", err)
		}
		return store, store.Close, nil

	case backendSQLite:
		store, err := sqlite.New(sqlite.Config{DSN: cfg.SQLiteDSN, Logger: logger})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		ctx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			sweepExpired(ctx, store, cfg.CleanupInterval, logger)
		}()
		return store, func() {
			cancel()
			<-done
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close sqlite store", "error", err)
			}
		}, nil

	default:
		store := memory.New(memory.Config{CleanupInterval: cfg.CleanupInterval, Logger: logger})
		return store, store.Stop, nil
	}
}

// sweepExpired periodically removes expired tokens and codes from stores
// that do not expire records on their own.
func sweepExpired(ctx context.Context, store *sqlite.Store, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteExpired(ctx)
			if err != nil {
				logger.Warn("Failed to delete expired records", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("Deleted expired records", "count", n)
			}
		}
	}
}
