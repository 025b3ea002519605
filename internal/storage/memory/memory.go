// internal/storage/memory/memory.go
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/basicai/pceditor/internal/config"
	"github.com/basicai/pceditor/pkg/core"
)

// Backend keeps frame results in memory and exports them to JSON on Close.
type Backend struct {
	cfg     config.MemoryConfig
	results map[string]core.FrameResult // keyed by frame id

	startedAt      time.Time
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:     cfg,
		results: make(map[string]core.FrameResult),
	}
}

// Init initializes the backend
func (b *Backend) Init(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.startedAt = time.Now()
	return nil
}

// Close exports the stored results when an output directory is configured.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cfg.OutputDir == "" {
		return nil
	}
	return b.exportJSON()
}

// ExportedFilePath returns the path written by the last Close.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

func cloneResult(res core.FrameResult) core.FrameResult {
	out := res
	if res.Location != nil {
		loc := *res.Location
		out.Location = &loc
	}
	out.Classification = core.CloneAttrs(res.Classification)
	out.Objects = make([]core.ObjectRecord, len(res.Objects))
	for i, o := range res.Objects {
		o.UserData = o.UserData.Clone()
		out.Objects[i] = o
	}
	return out
}

// SaveResults replaces the stored result of each frame and drops deleted ones.
func (b *Backend) SaveResults(ctx context.Context, results []core.FrameResult, deletedFrameIDs []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range deletedFrameIDs {
		delete(b.results, id)
	}
	for _, res := range results {
		b.results[res.FrameID] = cloneResult(res)
	}
	return nil
}

// LoadResults returns copies of the stored results in frame index order.
func (b *Backend) LoadResults(ctx context.Context, frameIDs []string) ([]core.FrameResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []core.FrameResult
	if len(frameIDs) == 0 {
		for _, res := range b.results {
			out = append(out, cloneResult(res))
		}
	} else {
		for _, id := range frameIDs {
			if res, ok := b.results[id]; ok {
				out = append(out, cloneResult(res))
			}
		}
	}
	sortResults(out)
	return out, nil
}

func sortResults(results []core.FrameResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].FrameIndex != results[j].FrameIndex {
			return results[i].FrameIndex < results[j].FrameIndex
		}
		return results[i].FrameID < results[j].FrameID
	})
}
