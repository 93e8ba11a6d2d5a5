package database

// Schema is the complete DDL at the latest schema version. Production
// stores are built by applying the migration files in order; this constant
// exists so tests can stand up the final shape in one statement, and so
// last-resort recovery has something to diff required objects against.
//
// Keep in sync with internal/database/migrations/files.
const Schema = `
CREATE TABLE nodes (
    id TEXT PRIMARY KEY,
    parent_id TEXT REFERENCES nodes(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    canonical_path TEXT NOT NULL,
    display_path TEXT NOT NULL,
    absolute_path TEXT NOT NULL,
    node_type TEXT NOT NULL CHECK (node_type IN ('category', 'note')),
    file_extension TEXT,
    file_size INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,
    modified_at DATETIME NOT NULL,
    accessed_at DATETIME,
    quick_hash TEXT,
    full_hash TEXT,
    hash_algorithm TEXT,
    hash_calculated_at DATETIME,
    is_expanded INTEGER NOT NULL DEFAULT 0,
    is_pinned INTEGER NOT NULL DEFAULT 0,
    is_selected INTEGER NOT NULL DEFAULT 0,
    sort_order INTEGER NOT NULL DEFAULT 0,
    is_deleted INTEGER NOT NULL DEFAULT 0,
    deleted_at DATETIME,
    metadata_version INTEGER NOT NULL DEFAULT 1,
    custom_properties TEXT NOT NULL DEFAULT '{}',
    color_tag TEXT,
    icon_override TEXT
);

CREATE UNIQUE INDEX idx_nodes_canonical_path_live ON nodes(canonical_path) WHERE is_deleted = 0;
CREATE INDEX idx_nodes_parent ON nodes(parent_id) WHERE is_deleted = 0;
CREATE INDEX idx_nodes_pinned ON nodes(is_pinned) WHERE is_deleted = 0 AND is_pinned = 1;
CREATE INDEX idx_nodes_modified ON nodes(modified_at);
CREATE INDEX idx_nodes_deleted_at ON nodes(deleted_at) WHERE is_deleted = 1;

CREATE TABLE node_audit (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    node_id TEXT NOT NULL,
    action TEXT NOT NULL,
    recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_node_audit_recorded ON node_audit(recorded_at);

CREATE TRIGGER trg_nodes_audit_update AFTER UPDATE ON nodes
BEGIN
    INSERT INTO node_audit (node_id, action) VALUES (NEW.id, 'update');
END;

CREATE TRIGGER trg_nodes_audit_delete AFTER DELETE ON nodes
BEGIN
    INSERT INTO node_audit (node_id, action) VALUES (OLD.id, 'delete');
END;

CREATE VIEW live_nodes AS
    SELECT * FROM nodes WHERE is_deleted = 0;

CREATE TABLE IF NOT EXISTS schema_migrations (version uint64, dirty bool);
INSERT INTO schema_migrations (version, dirty) VALUES (2, 0);
`

// requiredTables and requiredViews are the schema objects Initialize
// verifies after running the DDL. schema_migrations is golang-migrate's
// version table and doubles as the store's schema version record.
var (
	requiredTables = []string{"nodes", "node_audit", "schema_migrations"}
	requiredViews  = []string{"live_nodes"}
)
