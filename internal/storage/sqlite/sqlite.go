// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend via composition; the SQLite-specific concerns are
// creating the in-memory DB, seeding it from an earlier dump and the periodic
// disk dump.
package sqlitestorage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/basicai/pceditor/internal/database"
	gormstorage "github.com/basicai/pceditor/internal/storage/gorm"

	"gorm.io/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	DumpPath     string // Path for periodic VACUUM INTO dumps
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      Config
	log      *slog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a new SQLite storage backend.
func New(cfg Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := database.GetSqliteDBStandalone("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	gormBackend := gormstorage.New(gormstorage.Dependencies{
		DB:     db,
		Logger: logger,
	})

	return &Backend{
		Backend:  gormBackend,
		db:       db,
		cfg:      cfg,
		log:      logger,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend, restores an existing dump and
// starts the dump goroutine.
func (b *Backend) Init(ctx context.Context) error {
	if err := b.Backend.Init(ctx); err != nil {
		return err
	}
	if err := b.restoreDump(ctx); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}

	return nil
}

// restoreDump copies the results of a previous dump into the memory DB.
func (b *Backend) restoreDump(ctx context.Context) error {
	if b.cfg.DumpPath == "" {
		return nil
	}
	if _, err := os.Stat(b.cfg.DumpPath); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	fileDB, err := database.GetSqliteDBStandalone(b.cfg.DumpPath)
	if err != nil {
		return fmt.Errorf("failed to open dump %s: %w", b.cfg.DumpPath, err)
	}
	if sqlDB, err := fileDB.DB(); err == nil {
		defer sqlDB.Close()
	}

	src := gormstorage.New(gormstorage.Dependencies{DB: fileDB, Logger: b.log})
	if err := src.Init(ctx); err != nil {
		return fmt.Errorf("failed to read dump %s: %w", b.cfg.DumpPath, err)
	}
	results, err := src.LoadResults(ctx, nil)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}
	if err := b.Backend.SaveResults(ctx, results, nil); err != nil {
		return fmt.Errorf("failed to restore dump: %w", err)
	}
	b.log.Info("Restored results from dump", "path", b.cfg.DumpPath, "frames", len(results))
	return nil
}

// Close stops the dump goroutine, writes a final dump and closes the memory DB.
func (b *Backend) Close() error {
	var err error
	b.stopOnce.Do(func() {
		close(b.stopChan)
		b.wg.Wait()
		if b.cfg.DumpPath != "" {
			err = b.Dump()
		}
		_ = b.Backend.Close()
		if sqlDB, dbErr := b.db.DB(); dbErr == nil {
			err = errors.Join(err, sqlDB.Close())
		}
	})
	return err
}

// Dump writes the memory DB to the dump path now.
func (b *Backend) Dump() error {
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath); err != nil {
		return err
	}
	b.log.Debug("Dumped to disk", "path", b.cfg.DumpPath, "duration", time.Since(start))
	return nil
}

// ExportedFilePath returns the dump path.
func (b *Backend) ExportedFilePath() string {
	return b.cfg.DumpPath
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			}
		}
	}
}
