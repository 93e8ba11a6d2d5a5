package testutil

import (
	"path/filepath"
	"testing"

	"notetree/internal/database"
	"notetree/internal/fs"
	"notetree/internal/tree"
)

// NewTestStore creates an in-memory store with the latest schema applied.
// The store is automatically closed when the test completes.
func NewTestStore(t *testing.T) *database.Store {
	t.Helper()

	store, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	if _, err := store.DB().Exec(database.Schema); err != nil {
		store.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// NewFileTestStore creates a file-backed store in a temp directory with the
// latest schema applied, for tests that exercise file-level backup and
// recovery. Returns the store and its path.
func NewFileTestStore(t *testing.T) (*database.Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tree_cache.db")
	store, err := database.Open(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	if _, err := store.DB().Exec(database.Schema); err != nil {
		store.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store, path
}

// TestExtensions are the note extensions recognized in tests.
var TestExtensions = []string{".md", ".txt"}

// NewTestRepository wires a Repository over the given store with stub
// dependencies and a no-op writer lock.
func NewTestRepository(t *testing.T, store *database.Store) *database.Repository {
	t.Helper()

	scanner := fs.NewScanner(TestExtensions, NewStubIDGenerator(), FixedClock())
	return database.NewRepository(store, tree.NopLock{}, scanner, tree.NewNopLogger(), FixedClock(), NewStubIDGenerator())
}
