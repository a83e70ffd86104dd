// Package storage opens the card repository selected in the configuration.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/at-ishikawa/studydeck/internal/card"
	"github.com/at-ishikawa/studydeck/internal/config"
	"github.com/at-ishikawa/studydeck/internal/database"
)

// Open returns the repository for cfg.Storage.Driver and a function that
// releases it. Database schemas are migrated before the repository is
// returned.
func Open(ctx context.Context, cfg *config.Config) (card.Repository, func() error, error) {
	noop := func() error { return nil }

	switch driver := cfg.Storage.Driver; driver {
	case config.StorageMemory:
		slog.Warn("cards are kept in memory and lost on exit")
		return card.NewMemoryRepository(), noop, nil

	case config.StorageYAML:
		repo, err := card.OpenYAMLRepository(cfg.Storage.YAMLFile)
		if err != nil {
			return nil, nil, fmt.Errorf("card.OpenYAMLRepository() > %w", err)
		}
		slog.Debug("opened YAML card store", "path", repo.Path())
		return repo, noop, nil

	case config.StorageMySQL, config.StoragePostgres, config.StorageSQLite:
		db, err := database.Connect(ctx, driver, cfg.Database, cfg.Storage.SQLiteFile)
		if err != nil {
			return nil, nil, fmt.Errorf("database.Connect() > %w", err)
		}
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("database.Migrate() > %w", err)
		}
		slog.Debug("opened database card store", "driver", driver)
		return card.NewDBRepository(db), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
