package database_test

import (
	"path/filepath"
	"testing"

	"notetree/internal/database"
	"notetree/internal/database/migrations"
	"notetree/internal/testutil"
	"notetree/internal/tree"
)

func newManagedStore(t *testing.T) (*database.Store, *database.SchemaManager) {
	t.Helper()
	store, err := database.Open(filepath.Join(t.TempDir(), "data", "tree_cache.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, database.NewSchemaManager(store, tree.NewNopLogger())
}

func TestSchemaManagerInitialize(t *testing.T) {
	store, mgr := newManagedStore(t)

	if err := mgr.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	version, err := mgr.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion() error = %v", err)
	}
	latest, err := migrations.LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if version != latest {
		t.Errorf("CurrentVersion() = %d, want latest %d", version, latest)
	}

	// A fresh store must be immediately usable.
	repo := testutil.NewTestRepository(t, store)
	mustInsert(t, repo, category("c-1", "", "inbox"))
	if n, err := repo.GetByPath("inbox"); err != nil || n == nil {
		t.Errorf("GetByPath() after Initialize() = %v, %v", n, err)
	}

	if !mgr.IsHealthy() {
		t.Error("IsHealthy() = false for freshly initialized store")
	}
}

func TestSchemaManagerInitializeIsIdempotent(t *testing.T) {
	_, mgr := newManagedStore(t)

	if err := mgr.Initialize(); err != nil {
		t.Fatalf("first Initialize() error = %v", err)
	}
	if err := mgr.Initialize(); err != nil {
		t.Errorf("second Initialize() error = %v, want nil", err)
	}
}

func TestSchemaManagerUpgradeIsNoOpWhenCurrent(t *testing.T) {
	_, mgr := newManagedStore(t)

	if err := mgr.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	before, _ := mgr.CurrentVersion()

	if err := mgr.Upgrade(); err != nil {
		t.Fatalf("Upgrade() error = %v", err)
	}
	after, _ := mgr.CurrentVersion()
	if before != after {
		t.Errorf("version changed %d -> %d on no-op upgrade", before, after)
	}
}

func TestSchemaManagerIsHealthy(t *testing.T) {
	t.Run("missing view", func(t *testing.T) {
		store, mgr := newManagedStore(t)
		if err := mgr.Initialize(); err != nil {
			t.Fatalf("Initialize() error = %v", err)
		}
		if _, err := store.DB().Exec("DROP VIEW live_nodes"); err != nil {
			t.Fatalf("dropping view: %v", err)
		}
		if mgr.IsHealthy() {
			t.Error("IsHealthy() = true with live_nodes view missing")
		}
	})

	t.Run("stale version record", func(t *testing.T) {
		store, mgr := newManagedStore(t)
		if err := mgr.Initialize(); err != nil {
			t.Fatalf("Initialize() error = %v", err)
		}
		if _, err := store.DB().Exec("UPDATE schema_migrations SET version = 1"); err != nil {
			t.Fatalf("rewinding version record: %v", err)
		}
		if mgr.IsHealthy() {
			t.Error("IsHealthy() = true with a stale schema version")
		}
	})
}
