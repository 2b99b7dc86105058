// Package testutil provides shared test helpers for setting up data
// directories and facet index databases.
package testutil

import (
	"os"
	"testing"

	"github.com/inshell/hone/internal/facetindex"
	"github.com/inshell/hone/internal/kvstore"
)

// TestIndex creates a temporary SQLite facet index that is automatically
// cleaned up.
func TestIndex(t *testing.T) *facetindex.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "hone-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := facetindex.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDataDir creates a temporary data directory with an FS blob provider.
func TestDataDir(t *testing.T) (string, *kvstore.FS) {
	t.Helper()
	dataDir := t.TempDir()
	store, err := kvstore.NewFS(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	return dataDir, store
}
