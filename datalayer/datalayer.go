// Package datalayer assembles the one active persistence backend for a
// process. The backend is chosen once from configuration before any
// request is served; swapping it mid-flight is not supported. Wiring is
// explicit dependency injection: the constructed Store is handed to
// whatever needs persistence, there is no package-level slot to look up.
package datalayer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"

	"chatstore/config"
	"chatstore/domain/chat"
	"chatstore/infrastructure/database"
	"chatstore/infrastructure/metrics"
	"chatstore/infrastructure/repository/keyvalue"
	"chatstore/infrastructure/repository/relational"
	"chatstore/infrastructure/storage"
)

// New builds the active chat.Store from configuration: the object
// storage client, the configured backend, and the metrics decorator
// around it. Close the returned store when the process shuts down.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (chat.Store, error) {
	objects, err := newObjectStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := database.Connect(cfg, gormlogger.Warn)
		if err != nil {
			return nil, fmt.Errorf("connect postgres backend: %w", err)
		}
		if err := database.AutoMigrate(ctx, db, log); err != nil {
			return nil, fmt.Errorf("migrate postgres backend: %w", err)
		}
		store := relational.NewStore(db, objects, log)
		return metrics.Instrument("postgres", store), nil

	case config.DriverKeyValue:
		store, err := keyvalue.Open(cfg.KVPath, objects, log)
		if err != nil {
			return nil, fmt.Errorf("open keyvalue backend: %w", err)
		}
		return metrics.Instrument("keyvalue", store), nil
	}

	return nil, fmt.Errorf("unknown persistence driver %q", cfg.Driver)
}

func newObjectStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storage.ObjectStorage, error) {
	switch cfg.StorageProvider {
	case config.StorageProviderS3:
		return storage.NewS3Storage(ctx, cfg, log)
	case config.StorageProviderLocal:
		return storage.NewLocalStorage(cfg, log)
	case config.StorageProviderNone:
		return nil, nil
	}
	return nil, fmt.Errorf("unknown storage provider %q", cfg.StorageProvider)
}
