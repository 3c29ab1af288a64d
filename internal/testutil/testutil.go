// Package testutil provides shared test helpers for setting up vaults, the
// index and the note service.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/vaultview/internal/index"
	"github.com/starford/vaultview/internal/noteservice"
	"github.com/starford/vaultview/internal/render"
	"github.com/starford/vaultview/internal/storage"
)

// FilesURL is the render BaseURL used by TestService.
const FilesURL = "/api/files"

// Logger discards everything below error level.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "vaultview-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// TestService wires a vault, index, indexer and render pipeline together.
func TestService(t *testing.T) (*noteservice.Service, *index.Indexer, storage.Provider) {
	t.Helper()
	_, store := TestVault(t)

	opts := render.DefaultOptions()
	opts.BaseURL = FilesURL
	opts.Logger = Logger()

	ix := index.NewIndexer(TestDB(t), store, render.New(opts), Logger(), 2)
	return noteservice.NewService(store, ix, Logger()), ix, store
}

// WriteVault writes files (vault path to content) into store.
func WriteVault(t *testing.T, store storage.Provider, files map[string]string) {
	t.Helper()
	for p, content := range files {
		if err := store.Write(p, []byte(content)); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
}
