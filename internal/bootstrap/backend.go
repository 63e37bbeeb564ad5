// Package bootstrap opens the configured storage backend for the binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/msrptw/backend/config"
	"github.com/msrptw/backend/internal/domain"
	"github.com/msrptw/backend/internal/infrastructure/memstore"
	"github.com/msrptw/backend/internal/infrastructure/seed"
	"github.com/msrptw/backend/internal/infrastructure/storage"
)

// Backend is an opened storage backend
type Backend struct {
	Repo   domain.Repository
	Reader domain.PriceReader

	// Store is the SQL store; nil for the memory driver
	Store *storage.Store
}

// LoadSeed reads the taxonomy file, or returns the built-in seed when path is empty
func LoadSeed(path string) (seed.File, error) {
	if path == "" {
		return seed.Default(), nil
	}
	return seed.LoadFile(path)
}

// OpenBackend opens the storage named by cfg.Driver. SQL stores are migrated,
// and also seeded from f when setup is set. The memory store always starts
// from f.
func OpenBackend(ctx context.Context, cfg config.StorageConfig, f seed.File, setup bool) (*Backend, error) {
	if cfg.Driver == "memory" {
		mem := memstore.New(f.Taxonomy(), f.Sources)
		return &Backend{Repo: mem, Reader: mem}, nil
	}

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if setup {
		err = store.Setup(ctx, f)
	} else {
		err = store.Migrate(ctx)
	}
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("prepare %s store: %w", cfg.Driver, err)
	}

	return &Backend{Repo: store, Reader: store, Store: store}, nil
}

// Close releases the SQL store, if any
func (b *Backend) Close() error {
	if b.Store == nil {
		return nil
	}
	return b.Store.Close()
}
