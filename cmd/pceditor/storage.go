package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/basicai/pceditor/internal/config"
	"github.com/basicai/pceditor/internal/storage"
	"github.com/basicai/pceditor/internal/storage/memory"
	pgstorage "github.com/basicai/pceditor/internal/storage/postgres"
	sqlitestorage "github.com/basicai/pceditor/internal/storage/sqlite"
	wsstorage "github.com/basicai/pceditor/internal/storage/websocket"
)

func initStorage(ctx context.Context, storageCfg config.StorageConfig, logger *slog.Logger, startedAt time.Time) (storage.Backend, error) {
	backend, err := createStorageBackend(storageCfg, logger, startedAt)
	if err != nil {
		return nil, err
	}
	if err := backend.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", storageCfg.Type, err)
	}
	logger.Info("Storage backend ready", "type", storageCfg.Type)
	return backend, nil
}

func createStorageBackend(storageCfg config.StorageConfig, logger *slog.Logger, startedAt time.Time) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		logger.Info("Postgres storage backend initialized")
		return pgstorage.New(pgstorage.Dependencies{Logger: logger}), nil

	case "sqlite":
		dumpPath := storageCfg.SQLite.Path
		if dumpPath == "" {
			dumpPath = filepath.Join(storageCfg.Memory.OutputDir, fmt.Sprintf("pceditor_%s.db", startedAt.Format("20060102_150405")))
		}
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     dumpPath,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend initialized", "dumpPath", dumpPath)
		return backend, nil

	case "websocket":
		wsURL := httpToWS(storageCfg.API.ServerURL)
		logger.Info("WebSocket storage backend initialized", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:    wsURL,
			Secret: storageCfg.API.APIKey,
		}, logger), nil

	case "memory", "":
		logger.Info("Memory storage backend initialized")
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}

// apiBaseURL strips the stream path from the server URL, leaving the
// HTTP origin the REST endpoints hang off.
func apiBaseURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid api.serverUrl: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid api.serverUrl %q: no host", serverURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
