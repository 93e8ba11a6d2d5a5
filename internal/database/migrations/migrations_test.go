package migrations_test

import (
	"path/filepath"
	"testing"

	"notetree/internal/database"
	"notetree/internal/database/migrations"
)

func newEmptyStore(t *testing.T) *database.Store {
	t.Helper()
	store, err := database.Open(filepath.Join(t.TempDir(), "tree_cache.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestVersionOnFreshStore(t *testing.T) {
	store := newEmptyStore(t)

	version, err := migrations.Version(store.DB())
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if version != 0 {
		t.Errorf("Version() = %d on never-migrated store, want 0", version)
	}
}

func TestUpBringsStoreToLatest(t *testing.T) {
	store := newEmptyStore(t)

	if err := migrations.Up(store.DB()); err != nil {
		t.Fatalf("Up() error = %v", err)
	}

	version, err := migrations.Version(store.DB())
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	latest, err := migrations.LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if version != latest {
		t.Errorf("Version() = %d after Up(), want latest %d", version, latest)
	}

	// The second migration's columns must be present.
	if _, err := store.DB().Exec(
		"INSERT INTO nodes (id, name, canonical_path, display_path, absolute_path, node_type, created_at, modified_at, color_tag) " +
			"VALUES ('x', 'x', 'x', 'x', '/x', 'category', '2025-01-01', '2025-01-01', 'red')"); err != nil {
		t.Errorf("inserting with color_tag after Up(): %v", err)
	}
}

func TestUpIsIdempotent(t *testing.T) {
	store := newEmptyStore(t)

	if err := migrations.Up(store.DB()); err != nil {
		t.Fatalf("first Up() error = %v", err)
	}
	if err := migrations.Up(store.DB()); err != nil {
		t.Errorf("second Up() error = %v, want nil (no change)", err)
	}
}

func TestCheckStatus(t *testing.T) {
	store := newEmptyStore(t)

	if err := migrations.CheckStatus(store.DB()); err == nil {
		t.Error("CheckStatus() error = nil on fresh store, want error")
	}

	if err := migrations.Up(store.DB()); err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if err := migrations.CheckStatus(store.DB()); err != nil {
		t.Errorf("CheckStatus() error = %v after Up(), want nil", err)
	}
}

func TestVersionReportsDirtyState(t *testing.T) {
	store := newEmptyStore(t)

	if err := migrations.Up(store.DB()); err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if _, err := store.DB().Exec("UPDATE schema_migrations SET dirty = 1"); err != nil {
		t.Fatalf("marking version dirty: %v", err)
	}

	if _, err := migrations.Version(store.DB()); err == nil {
		t.Error("Version() error = nil on dirty store, want error")
	}
}
