package database

import (
	"database/sql"
	"fmt"

	"notetree/internal/database/migrations"
	"notetree/internal/tree"
)

// SchemaManager owns the store's DDL, version record, and structural health
// verification. It never attempts repair; corruption handling belongs to
// the backup manager's recovery cascade.
type SchemaManager struct {
	store  *Store
	logger tree.Logger
}

// NewSchemaManager creates a SchemaManager for the given store.
func NewSchemaManager(store *Store, logger tree.Logger) *SchemaManager {
	return &SchemaManager{store: store, logger: logger}
}

// Initialize brings the store to the latest schema version. On a fresh
// store this applies the full migration chain and verifies every required
// table and view exists along with a non-empty version record; on an
// existing store it delegates to Upgrade. Any error here is fatal for
// engine startup.
func (m *SchemaManager) Initialize() error {
	if err := EnsureDir(m.store.Path()); err != nil {
		return err
	}

	db := m.store.DB()

	fresh, err := m.tableMissing(db, "nodes")
	if err != nil {
		return fmt.Errorf("probing for core table: %w", err)
	}

	if !fresh {
		return m.Upgrade()
	}

	m.logger.Info("initializing fresh store", "path", m.store.Path())
	if err := migrations.Up(db); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	return m.verifyObjects(db)
}

// Upgrade applies any pending schema migrations. Each migration runs in its
// own transaction and rolls back atomically on failure. No-op when current.
func (m *SchemaManager) Upgrade() error {
	db := m.store.DB()

	before, err := migrations.Version(db)
	if err != nil {
		return err
	}

	if err := migrations.Up(db); err != nil {
		return err
	}

	after, err := migrations.Version(db)
	if err != nil {
		return err
	}
	if after != before {
		m.logger.Info("schema upgraded", "from", before, "to", after)
	}
	return nil
}

// CurrentVersion returns the store's schema version (0 = never migrated).
func (m *SchemaManager) CurrentVersion() (uint, error) {
	return migrations.Version(m.store.DB())
}

// IsHealthy runs a structural integrity check and confirms schema version
// currency. It is a local diagnostic only: false means "needs attention",
// and the cause is logged, but nothing is repaired here.
func (m *SchemaManager) IsHealthy() bool {
	db := m.store.DB()

	var result string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&result); err != nil {
		m.logger.Error("integrity check failed to run", "error", err)
		return false
	}
	if result != "ok" {
		m.logger.Error("integrity check failed", "result", result)
		return false
	}

	if err := migrations.CheckStatus(db); err != nil {
		m.logger.Warn("schema version not current", "error", err)
		return false
	}

	if err := m.verifyObjects(db); err != nil {
		m.logger.Error("schema verification failed", "error", err)
		return false
	}

	return true
}

// verifyObjects confirms every required table and view exists and that the
// version record is non-empty.
func (m *SchemaManager) verifyObjects(db *sql.DB) error {
	for _, table := range requiredTables {
		missing, err := m.objectMissing(db, "table", table)
		if err != nil {
			return err
		}
		if missing {
			return fmt.Errorf("required table missing: %s", table)
		}
	}
	for _, view := range requiredViews {
		missing, err := m.objectMissing(db, "view", view)
		if err != nil {
			return err
		}
		if missing {
			return fmt.Errorf("required view missing: %s", view)
		}
	}

	var versions int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&versions); err != nil {
		return fmt.Errorf("reading version record: %w", err)
	}
	if versions == 0 {
		return fmt.Errorf("version record is empty")
	}

	return nil
}

func (m *SchemaManager) tableMissing(db *sql.DB, name string) (bool, error) {
	return m.objectMissing(db, "table", name)
}

func (m *SchemaManager) objectMissing(db *sql.DB, kind, name string) (bool, error) {
	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?", kind, name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("querying sqlite_master for %s %s: %w", kind, name, err)
	}
	return count == 0, nil
}
