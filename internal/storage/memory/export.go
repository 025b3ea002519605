// internal/storage/memory/export.go
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	v1 "github.com/basicai/pceditor/internal/storage/memory/export/v1"
	"github.com/basicai/pceditor/pkg/core"
)

// exportJSON writes the stored results to a JSON file, gzipped unless
// compression is off. Callers hold the lock.
func (b *Backend) exportJSON() error {
	results := make([]core.FrameResult, 0, len(b.results))
	for _, res := range b.results {
		results = append(results, res)
	}
	export := v1.Build(results, nil, time.Now())

	started := b.startedAt
	if started.IsZero() {
		started = export.ExportedAt
	}
	timestamp := started.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("results_%s.json.gz", timestamp)
	} else {
		filename = fmt.Sprintf("results_%s.json", timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := v1.Write(f, export, b.cfg.CompressOutput); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write export: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close export: %w", err)
	}

	b.lastExportPath = outputPath
	return nil
}
