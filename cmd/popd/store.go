package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rexliu/popd/pkg/config"
	"github.com/rexliu/popd/pkg/storage"
	"github.com/rexliu/popd/pkg/storage/jsonfile"
	"github.com/rexliu/popd/pkg/storage/memory"
	"github.com/rexliu/popd/pkg/storage/sqlite"
)

func openStore(ctx context.Context, profileDir string, cfg config.StorageConfig) (storage.Store, error) {
	if err := os.MkdirAll(profileDir, 0o700); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case config.BackendJSONFile:
		return jsonfile.NewStore(config.ResolvePath(profileDir, cfg.JSONPath)), nil
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendSQLite, "":
		store, err := sqlite.Open(config.ResolvePath(profileDir, cfg.DBPath), cfg.Unit)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := store.Init(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
