package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	osfs "github.com/hack-pad/hackpadfs/os"

	"github.com/kittclouds/readmark/internal/config"
	"github.com/kittclouds/readmark/internal/store"
)

// env is what every command works against: the configuration, the
// annotation database and the snapshot directory.
type env struct {
	cfg       *config.Config
	store     *store.SQLiteStore
	snapshots *store.SnapshotStore
}

func openEnv(cfg *config.Config) (*env, error) {
	dir := cfg.Store.ContentDir
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("content dir: %w", err)
	}

	// hackpadfs paths are slash separated and relative to the volume root.
	fs, err := osfs.NewFS().Sub(strings.TrimPrefix(filepath.ToSlash(abs), "/"))
	if err != nil {
		return nil, fmt.Errorf("content dir: %w", err)
	}

	dsn := cfg.Store.DSN
	if dsn == ":memory:" {
		dsn = filepath.Join(abs, "readmark.db")
	}
	st, err := store.NewSQLiteStoreWithDSN(dsn)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, store: st, snapshots: store.NewSnapshotStore(fs)}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

// snapshot loads the saved page of source or fails.
func (e *env) snapshot(source string) (string, error) {
	page, ok, err := e.snapshots.Load(source)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no snapshot for source %q; run import first", source)
	}
	return page, nil
}
