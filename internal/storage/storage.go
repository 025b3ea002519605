// Package storage defines the results backend the editor saves frames to.
package storage

import (
	"context"
	"errors"

	"github.com/basicai/pceditor/pkg/core"
)

// ErrNotInitialized is returned by backends used before Init.
var ErrNotInitialized = errors.New("storage backend not initialized")

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	Init(ctx context.Context) error
	Close() error

	// SaveResults replaces the stored result of every frame in results and
	// drops the results of deletedFrameIDs, all in one transaction where
	// the backend supports it.
	SaveResults(ctx context.Context, results []core.FrameResult, deletedFrameIDs []string) error

	// LoadResults returns the stored results of frameIDs, one per frame
	// that has any, in frame index order. An empty frameIDs loads all.
	LoadResults(ctx context.Context, frameIDs []string) ([]core.FrameResult, error)
}

// Exportable is implemented by backends that write a file on Close.
type Exportable interface {
	ExportedFilePath() string
}
