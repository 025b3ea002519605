// Package postgres implements the storage.Backend interface on a PostgreSQL
// server. Result handling is shared with the SQLite backend through the
// embedded GORM backend.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/basicai/pceditor/internal/database"
	gormstorage "github.com/basicai/pceditor/internal/storage/gorm"

	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the Postgres storage backend.
// A nil DB makes Init connect using the db.* config keys.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

// Backend wraps the GORM backend with connection management.
type Backend struct {
	*gormstorage.Backend
	deps  Dependencies
	owned bool
}

// New creates a new Postgres storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{DB: deps.DB, Logger: deps.Logger}),
		deps:    deps,
	}
}

// Init connects when no DB was injected, then migrates the result tables.
func (b *Backend) Init(ctx context.Context) error {
	if b.deps.DB == nil {
		db, err := database.GetPostgresDBStandalone()
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
		b.owned = true
		b.deps.Logger.Info("Connected to Postgres", "host", database.PostgresHost())
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: b.deps.DB, Logger: b.deps.Logger})
	return b.Backend.Init(ctx)
}

// Close closes the connection if Init opened it.
func (b *Backend) Close() error {
	_ = b.Backend.Close()
	if !b.owned {
		return nil
	}
	b.owned = false
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
