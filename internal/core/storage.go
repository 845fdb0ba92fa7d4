package core

import (
	"context"
	"fmt"

	"pidcheck/internal/config"
	"pidcheck/internal/infra/persistence/memory"
	"pidcheck/internal/infra/persistence/postgres"
	"pidcheck/internal/infra/persistence/sqlite"
	"pidcheck/pkg/domain"
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// OpenPersistentStore selects a schematic store from the storage settings.
// An empty driver selects the in-memory store.
//
//	memory:   nothing survives the process
//	sqlite:   cfg.SQLitePath (default ./pidcheck.db)
//	postgres: cfg.PostgresDSN
func OpenPersistentStore(ctx context.Context, cfg config.Storage) (PersistentStore, error) {
	switch cfg.Driver {
	case config.StorageMemory, "":
		return memory.NewStore(), nil
	case config.StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
