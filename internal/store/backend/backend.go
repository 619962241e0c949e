// Package backend opens the corpus store named by storage.driver.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adrian-1-cardona/DocPulse/internal/store"
	"github.com/adrian-1-cardona/DocPulse/internal/store/memory"
	pgstore "github.com/adrian-1-cardona/DocPulse/internal/store/postgres"
	"github.com/adrian-1-cardona/DocPulse/internal/store/sqlite"
	"github.com/adrian-1-cardona/DocPulse/pkg/config"
	"github.com/adrian-1-cardona/DocPulse/pkg/postgres"
)

// Opened is a ready store plus the Postgres client behind it, if any. The
// client is exposed so services can share its pool for other tables.
type Opened struct {
	Store store.Store
	DB    *postgres.Client
}

// Close releases the store and its connection pool.
func (o *Opened) Close() error {
	err := o.Store.Close()
	if o.DB != nil {
		if cerr := o.DB.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Open connects to the configured driver and applies its migrations.
func Open(ctx context.Context, cfg *config.Config) (*Opened, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		st, err := pgstore.New(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		slog.Info("document store ready", "driver", "postgres", "database", cfg.Postgres.Database)
		return &Opened{Store: st, DB: db}, nil
	case "sqlite":
		st, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		slog.Info("document store ready", "driver", "sqlite", "path", cfg.SQLite.Path)
		return &Opened{Store: st}, nil
	case "memory":
		slog.Warn("using in-memory document store; data is lost on exit")
		return &Opened{Store: memory.New()}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
