package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"notetree/internal/app"
	"notetree/internal/config"
	"notetree/internal/testutil"
	"notetree/internal/tree"
)

func newTestApp(t *testing.T, docRoot string) *app.App {
	t.Helper()

	cfg := config.NewConfig(docRoot, t.TempDir())
	a, err := app.NewApp(context.Background(), cfg, "test")
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	t.Cleanup(func() {
		a.Close()
	})
	return a
}

func TestAppStartupMigratesAndShadows(t *testing.T) {
	docRoot := testutil.WriteTree(t, map[string]string{
		"a/note1.md":    "first",
		"a/b/note2.txt": "second",
	})
	a := newTestApp(t, docRoot)

	if err := a.Startup(context.Background()); err != nil {
		t.Fatalf("Startup() error = %v", err)
	}

	count, err := a.Repository().CountNodes()
	if err != nil {
		t.Fatalf("CountNodes() error = %v", err)
	}
	if count != 4 {
		t.Errorf("CountNodes() = %d after startup, want 4", count)
	}

	status, err := a.Backups().Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !status.ShadowPresent {
		t.Error("expected a shadow backup after startup")
	}

	shadow := filepath.Join(a.Config().Backups.Dir, "shadow", "tree_shadow.db")
	if _, err := os.Stat(shadow); err != nil {
		t.Errorf("shadow file missing: %v", err)
	}
}

func TestAppStartupIsIdempotent(t *testing.T) {
	docRoot := testutil.WriteTree(t, map[string]string{"a/note1.md": "one"})
	a := newTestApp(t, docRoot)

	if err := a.Startup(context.Background()); err != nil {
		t.Fatalf("first Startup() error = %v", err)
	}
	if err := a.Startup(context.Background()); err != nil {
		t.Fatalf("second Startup() error = %v", err)
	}

	if count, _ := a.Repository().CountNodes(); count != 2 {
		t.Errorf("CountNodes() = %d after repeated startup, want 2", count)
	}
}

func TestAppStartupRecoversCorruptStore(t *testing.T) {
	docRoot := testutil.WriteTree(t, map[string]string{
		"a/note1.md": "one",
		"root.md":    "two",
	})
	cfg := config.NewConfig(docRoot, t.TempDir())

	// First run populates the cache and leaves a shadow behind.
	a, err := app.NewApp(context.Background(), cfg, "test")
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	if err := a.Startup(context.Background()); err != nil {
		t.Fatalf("Startup() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	testutil.CorruptFile(t, cfg.StorePath())

	a2, err := app.NewApp(context.Background(), cfg, "test")
	if err != nil {
		t.Fatalf("NewApp() after corruption error = %v", err)
	}
	defer a2.Close()

	if err := a2.Startup(context.Background()); err != nil {
		t.Fatalf("Startup() after corruption error = %v", err)
	}
	if count, _ := a2.Repository().CountNodes(); count != 3 {
		t.Errorf("CountNodes() = %d after recovery, want 3", count)
	}
}

func TestAppMaintenanceRepairsCorruptStore(t *testing.T) {
	docRoot := testutil.WriteTree(t, map[string]string{
		"a/note1.md": "one",
		"root.md":    "two",
	})
	a := newTestApp(t, docRoot)

	if err := a.Startup(context.Background()); err != nil {
		t.Fatalf("Startup() error = %v", err)
	}

	clock := testutil.FixedClock()
	s := app.NewScheduler(tree.NewNopLogger(), clock)
	a.RegisterMaintenance(s)

	// The store is wrecked between scheduler ticks; the integrity job
	// runs first and restores from the shadow before the other jobs
	// touch the database.
	testutil.CorruptFile(t, a.Config().StorePath())

	clock.Advance(25 * time.Hour)
	if ran := s.RunPending(context.Background()); ran == 0 {
		t.Fatal("RunPending() = 0, expected due jobs")
	}

	count, err := a.Repository().CountNodes()
	if err != nil {
		t.Fatalf("CountNodes() after maintenance error = %v", err)
	}
	if count != 3 {
		t.Errorf("CountNodes() = %d after maintenance recovery, want 3", count)
	}
}

func TestAppMaintenanceRegistersVacuum(t *testing.T) {
	docRoot := testutil.WriteTree(t, map[string]string{"root.md": "one"})
	a := newTestApp(t, docRoot)

	if err := a.Startup(context.Background()); err != nil {
		t.Fatalf("Startup() error = %v", err)
	}

	clock := testutil.FixedClock()
	s := app.NewScheduler(tree.NewNopLogger(), clock)
	a.RegisterMaintenance(s)

	// Everything, the weekly vacuum included, must run cleanly once due.
	clock.Advance(8 * 24 * time.Hour)
	if ran := s.RunPending(context.Background()); ran != 6 {
		t.Errorf("RunPending() = %d, want all 6 maintenance jobs", ran)
	}
}

func TestAppRefreshOutdatedHashes(t *testing.T) {
	docRoot := testutil.WriteTree(t, map[string]string{
		"a/note1.md": "first",
		"root.md":    "second",
	})
	a := newTestApp(t, docRoot)

	if err := a.Startup(context.Background()); err != nil {
		t.Fatalf("Startup() error = %v", err)
	}

	updated, err := a.RefreshOutdatedHashes(context.Background())
	if err != nil {
		t.Fatalf("RefreshOutdatedHashes() error = %v", err)
	}
	if updated != 2 {
		t.Errorf("RefreshOutdatedHashes() = %d, want 2", updated)
	}

	n, err := a.Repository().GetByPath("a/note1.md")
	if err != nil || n == nil {
		t.Fatalf("GetByPath() = %v, %v", n, err)
	}
	if n.QuickHash == "" || n.FullHash == "" {
		t.Errorf("hashes not stored: quick=%q full=%q", n.QuickHash, n.FullHash)
	}
}
