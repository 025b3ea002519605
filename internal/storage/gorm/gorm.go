// Package gormstorage implements the storage.Backend interface on any GORM
// dialect. The SQLite and Postgres backends embed it and only add how the
// connection is obtained.
package gormstorage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/basicai/pceditor/internal/database"
	"github.com/basicai/pceditor/internal/model"
	"github.com/basicai/pceditor/internal/model/convert"
	"github.com/basicai/pceditor/internal/storage"
	"github.com/basicai/pceditor/pkg/core"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

// Backend stores frame results in the result tables, one transaction per save.
type Backend struct {
	deps    Dependencies
	dbReady bool
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{deps: deps}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the result tables.
func (b *Backend) Init(ctx context.Context) error {
	if b.deps.DB == nil {
		return fmt.Errorf("%w: no database connection", storage.ErrNotInitialized)
	}
	if err := database.Setup(b.deps.DB.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.dbReady = true
	b.deps.Logger.Info("Result tables ready", "dialect", b.deps.DB.Dialector.Name())
	return nil
}

// Close is a no-op; the owner of the connection closes it.
func (b *Backend) Close() error {
	b.dbReady = false
	return nil
}

// SaveResults replaces the rows of every frame in results, drops the rows of
// deletedFrameIDs and upserts the track records, in one transaction.
func (b *Backend) SaveResults(ctx context.Context, results []core.FrameResult, deletedFrameIDs []string) error {
	if !b.dbReady {
		return storage.ErrNotInitialized
	}

	rows := make([]model.FrameResult, 0, len(results))
	frameIDs := make([]string, 0, len(results)+len(deletedFrameIDs))
	for _, res := range results {
		row, err := convert.CoreToFrameResult(res)
		if err != nil {
			return err
		}
		rows = append(rows, row)
		frameIDs = append(frameIDs, res.FrameID)
	}
	frameIDs = append(frameIDs, deletedFrameIDs...)
	tracks, err := convert.CoreToTracks(results)
	if err != nil {
		return err
	}

	err = b.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteFrames(tx, frameIDs); err != nil {
			return err
		}
		for i := range rows {
			if err := tx.Create(&rows[i]).Error; err != nil {
				return fmt.Errorf("failed to insert frame %s: %w", rows[i].FrameID, err)
			}
		}
		if len(tracks) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "track_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"track_name", "class_id", "class_type", "attrs", "updated_at"}),
			}).Create(&tracks).Error
			if err != nil {
				return fmt.Errorf("failed to upsert tracks: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		b.deps.Logger.Error("Failed to save results", "frames", len(rows), "deleted", len(deletedFrameIDs), "error", err)
		return err
	}
	b.deps.Logger.Debug("Saved results", "frames", len(rows), "deleted", len(deletedFrameIDs), "tracks", len(tracks))
	return nil
}

// deleteFrames removes the frame rows of frameIDs with their objects and chains.
func deleteFrames(tx *gorm.DB, frameIDs []string) error {
	if len(frameIDs) == 0 {
		return nil
	}
	var ids []uint
	if err := tx.Model(&model.FrameResult{}).Where("frame_id IN ?", frameIDs).Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("failed to find frames: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("frame_result_id IN ?", ids).Delete(&model.Object{}).Error; err != nil {
		return fmt.Errorf("failed to delete objects: %w", err)
	}
	if err := tx.Where("frame_result_id IN ?", ids).Delete(&model.Chain{}).Error; err != nil {
		return fmt.Errorf("failed to delete chains: %w", err)
	}
	if err := tx.Delete(&model.FrameResult{}, ids).Error; err != nil {
		return fmt.Errorf("failed to delete frames: %w", err)
	}
	return nil
}

// LoadResults returns the stored results of frameIDs in frame index order.
func (b *Backend) LoadResults(ctx context.Context, frameIDs []string) ([]core.FrameResult, error) {
	if !b.dbReady {
		return nil, storage.ErrNotInitialized
	}
	q := b.deps.DB.WithContext(ctx).
		Preload("Objects", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("frame_index, id")
	if len(frameIDs) > 0 {
		q = q.Where("frame_id IN ?", frameIDs)
	}
	var rows []model.FrameResult
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}

	out := make([]core.FrameResult, 0, len(rows))
	for _, row := range rows {
		res, err := convert.FrameResultToCore(row)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// LoadTracks returns every stored track record ordered by id.
func (b *Backend) LoadTracks(ctx context.Context) ([]core.TrackObject, error) {
	if !b.dbReady {
		return nil, storage.ErrNotInitialized
	}
	var rows []model.Track
	if err := b.deps.DB.WithContext(ctx).Order("track_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load tracks: %w", err)
	}
	out := make([]core.TrackObject, 0, len(rows))
	for _, row := range rows {
		t, err := convert.TrackToCore(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// LoadChains returns the chain polylines stored for frameID.
func (b *Backend) LoadChains(ctx context.Context, frameID string) ([]model.Chain, error) {
	if !b.dbReady {
		return nil, storage.ErrNotInitialized
	}
	var chains []model.Chain
	err := b.deps.DB.WithContext(ctx).
		Joins("JOIN frame_results ON frame_results.id = chains.frame_result_id").
		Where("frame_results.frame_id = ?", frameID).
		Order("chains.id").
		Find(&chains).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load chains: %w", err)
	}
	return chains, nil
}
