package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/basicai/pceditor/internal/api"
	"github.com/basicai/pceditor/internal/config"
	"github.com/basicai/pceditor/internal/database"
	gormstorage "github.com/basicai/pceditor/internal/storage/gorm"
	v1 "github.com/basicai/pceditor/internal/storage/memory/export/v1"
)

const exportUsage = "usage: pceditor export <results.db|results.json[.gz]> [output.json[.gz]] [--upload]"

// runExport converts a SQLite dump or a memory export into a v1 export
// file, and optionally uploads it to the results server.
func runExport(ctx context.Context, args []string) error {
	var upload bool
	var paths []string
	for _, a := range args {
		if a == "--upload" {
			upload = true
			continue
		}
		paths = append(paths, a)
	}
	if len(paths) == 0 || len(paths) > 2 {
		return errors.New(exportUsage)
	}
	src := paths[0]

	var (
		exp v1.Export
		err error
	)
	txStart := time.Now()
	if strings.HasSuffix(src, ".db") {
		exp, err = exportFromSqlite(ctx, src)
	} else {
		exp, err = readExportFile(src)
	}
	if err != nil {
		return err
	}
	Logger.Info("Read results", "source", src, "frames", exp.FrameCount, "objects", exp.ObjectCount, "duration", time.Since(txStart))

	out := defaultExportPath(src)
	if len(paths) == 2 {
		out = paths[1]
	}
	if err := writeExportFile(out, exp); err != nil {
		return err
	}
	fmt.Println("Exported", exp.FrameCount, "frames to", out)

	if !upload {
		return nil
	}
	return uploadExport(ctx, out, exp)
}

func exportFromSqlite(ctx context.Context, path string) (v1.Export, error) {
	if _, err := os.Stat(path); err != nil {
		return v1.Export{}, err
	}
	m := database.NewManager(ZLogger.With().Str("component", "database").Logger())
	if err := m.OpenSqlite(path); err != nil {
		return v1.Export{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer m.Close()

	b := gormstorage.New(gormstorage.Dependencies{DB: m.DB, Logger: Logger})
	if err := b.Init(ctx); err != nil {
		return v1.Export{}, err
	}
	results, err := b.LoadResults(ctx, nil)
	if err != nil {
		return v1.Export{}, err
	}
	tracks, err := b.LoadTracks(ctx)
	if err != nil {
		return v1.Export{}, err
	}
	return v1.Build(results, tracks, time.Now()), nil
}

func readExportFile(path string) (v1.Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return v1.Export{}, err
	}
	defer f.Close()
	exp, err := v1.Read(f)
	if err != nil {
		return v1.Export{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return exp, nil
}

func writeExportFile(path string, exp v1.Export) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return v1.Write(f, exp, strings.HasSuffix(path, ".gz"))
}

// defaultExportPath puts the export next to src: results.db becomes
// results_export.json.gz.
func defaultExportPath(src string) string {
	return filepath.Join(filepath.Dir(src), datasetName(src)+"_export.json.gz")
}

func datasetName(path string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".gz", ".json", ".db"} {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

func uploadExport(ctx context.Context, path string, exp v1.Export) error {
	apiCfg := config.GetStorageConfig().API
	baseURL, err := apiBaseURL(apiCfg.ServerURL)
	if err != nil {
		return err
	}
	client := api.New(baseURL, apiCfg.APIKey)
	if err := client.Healthcheck(ctx); err != nil {
		return fmt.Errorf("results server is offline: %w", err)
	}
	err = client.Upload(ctx, path, api.UploadMetadata{
		DatasetName: datasetName(path),
		FrameCount:  exp.FrameCount,
		ObjectCount: exp.ObjectCount,
	})
	if err != nil {
		return err
	}
	Logger.Info("Export uploaded", "server", baseURL, "path", path)
	return nil
}

// listDumps prints the SQLite dumps found in a directory, by default the
// results directory.
func listDumps(args []string) error {
	dir := config.GetStorageConfig().Memory.OutputDir
	if len(args) > 0 {
		dir = args[0]
	}
	paths, err := database.GetBackupDBPaths(dir)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}
