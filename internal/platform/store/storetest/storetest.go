// Package storetest opens throwaway migrated databases for repo and service tests
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"sarbatch/internal/platform/store"
	"sarbatch/internal/platform/store/sqlite"
)

// SQLite opens a migrated WAL database under t.TempDir and closes it on cleanup
func SQLite(t *testing.T) store.TxRunner {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(ctx, sqlite.Config{Path: filepath.Join(t.TempDir(), "registry.db")})
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	r := store.NewSQLiteRunner(db)
	if err := store.Migrate(ctx, r); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return r
}
