package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"notetree/internal/fs"
	"notetree/internal/tree"
)

// bulkChunkSize is the number of rows written per statement inside a bulk
// transaction. Chunking keeps individual statements small without giving up
// atomicity of the batch as a whole.
const bulkChunkSize = 100

// Repository is the cache's CRUD and query surface over the nodes table.
// Every public operation opens a short-lived statement against the shared
// pool; multi-step writes (bulk ops, rebuild) additionally serialize on the
// injected writer lock.
//
// All queries exclude soft-deleted nodes unless stated otherwise. An error
// return always means "unknown", never "absent"; absence is a nil node or
// an empty slice with a nil error.
type Repository struct {
	store   *Store
	lock    tree.WriterLock
	scanner *fs.Scanner
	logger  tree.Logger
	clock   tree.Clock
	idgen   tree.IDGenerator
}

// NewRepository creates a Repository with the provided dependencies.
func NewRepository(store *Store, lock tree.WriterLock, scanner *fs.Scanner, logger tree.Logger, clock tree.Clock, idgen tree.IDGenerator) *Repository {
	return &Repository{
		store:   store,
		lock:    lock,
		scanner: scanner,
		logger:  logger,
		clock:   clock,
		idgen:   idgen,
	}
}

// Point queries

// GetByID returns the live node with the given id, or nil if absent.
func (r *Repository) GetByID(id string) (*tree.Node, error) {
	return r.queryOne("SELECT "+nodeColumns+" FROM nodes WHERE id = ? AND is_deleted = 0", id)
}

// GetByPath returns the live node at the given path, or nil if absent.
// The path is canonicalized before lookup.
func (r *Repository) GetByPath(p string) (*tree.Node, error) {
	return r.queryOne("SELECT "+nodeColumns+" FROM nodes WHERE canonical_path = ? AND is_deleted = 0",
		tree.CanonicalizePath(p))
}

// GetChildren returns the live children of parentID, categories before
// notes, then by explicit sort order, then by name.
func (r *Repository) GetChildren(parentID string) ([]*tree.Node, error) {
	return r.queryNodes(
		"SELECT "+nodeColumns+" FROM nodes WHERE parent_id = ? AND is_deleted = 0 ORDER BY node_type, sort_order, name",
		parentID)
}

// GetRootNodes returns the live nodes with no parent, in child order.
func (r *Repository) GetRootNodes() ([]*tree.Node, error) {
	return r.queryNodes(
		"SELECT " + nodeColumns + " FROM nodes WHERE parent_id IS NULL AND is_deleted = 0 ORDER BY node_type, sort_order, name")
}

// GetPinned returns all live pinned nodes in child order.
func (r *Repository) GetPinned() ([]*tree.Node, error) {
	return r.queryNodes(
		"SELECT " + nodeColumns + " FROM nodes WHERE is_pinned = 1 AND is_deleted = 0 ORDER BY node_type, sort_order, name")
}

// GetRecentlyModified returns up to limit live notes, most recently
// modified first.
func (r *Repository) GetRecentlyModified(limit int) ([]*tree.Node, error) {
	if limit <= 0 {
		return nil, nil
	}
	return r.queryNodes(
		"SELECT "+nodeColumns+" FROM nodes WHERE node_type = 'note' AND is_deleted = 0 ORDER BY modified_at DESC LIMIT ?",
		limit)
}

// Hierarchy queries

// GetDescendants returns every live node under nodeID, ordered by path.
// The expansion is bounded by the acyclic invariant.
func (r *Repository) GetDescendants(nodeID string) ([]*tree.Node, error) {
	return r.queryNodes(`
		WITH RECURSIVE subtree(id) AS (
			SELECT id FROM nodes WHERE id = ?
			UNION ALL
			SELECT n.id FROM nodes n JOIN subtree s ON n.parent_id = s.id
		)
		SELECT `+nodeColumns+` FROM nodes
		WHERE id IN (SELECT id FROM subtree) AND id != ? AND is_deleted = 0
		ORDER BY canonical_path`, nodeID, nodeID)
}

// GetAncestor returns the nearest ancestor of nodeID with the given type,
// or nil if there is none.
func (r *Repository) GetAncestor(nodeID string, nodeType tree.NodeType) (*tree.Node, error) {
	return r.queryOne(`
		WITH RECURSIVE ancestors(id, parent_id, depth) AS (
			SELECT id, parent_id, 0 FROM nodes WHERE id = ?
			UNION ALL
			SELECT n.id, n.parent_id, a.depth + 1 FROM nodes n JOIN ancestors a ON n.id = a.parent_id
		)
		SELECT `+nodeColumns+` FROM nodes
		WHERE id IN (SELECT id FROM ancestors WHERE depth > 0)
		  AND node_type = ? AND is_deleted = 0
		ORDER BY (SELECT depth FROM ancestors a WHERE a.id = nodes.id)
		LIMIT 1`, nodeID, string(nodeType))
}

// Mutations

// Insert persists a new node. The canonical path must be unique among live
// nodes; a collision fails the insert before commit.
func (r *Repository) Insert(n *tree.Node) error {
	if err := n.Validate(); err != nil {
		r.logger.Warn("rejecting invalid node", "error", err)
		return err
	}
	if n.MetadataVersion == 0 {
		n.MetadataVersion = 1
	}

	args, err := toRowArgs(n)
	if err != nil {
		return err
	}

	_, err = r.store.DB().Exec(insertNodeSQL, args...)
	if err != nil {
		return fmt.Errorf("inserting node %s: %w", n.CanonicalPath, err)
	}
	r.logger.Debug("node inserted", "path", n.CanonicalPath, "type", n.Type)
	return nil
}

// Update rewrites every mutable column of the node identified by n.ID.
func (r *Repository) Update(n *tree.Node) error {
	if err := n.Validate(); err != nil {
		r.logger.Warn("rejecting invalid node", "error", err)
		return err
	}

	args, err := toRowArgs(n)
	if err != nil {
		return err
	}
	// id leads the column list; move it to the WHERE position.
	args = append(args[1:], n.ID)

	res, err := r.store.DB().Exec(updateNodeSQL, args...)
	if err != nil {
		return fmt.Errorf("updating node %s: %w", n.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("updating node %s: no such node", n.ID)
	}
	return nil
}

// Delete removes a node. Soft deletion flags the node and all its live
// descendants (cascading the flag at write time keeps the tree consistent
// without waiting for a rebuild); hard deletion removes the row and lets
// the foreign key cascade take the descendants with it.
func (r *Repository) Delete(ctx context.Context, id string, soft bool) error {
	if !soft {
		res, err := r.store.DB().ExecContext(ctx, "DELETE FROM nodes WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("hard-deleting node %s: %w", id, err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return fmt.Errorf("deleting node %s: no such node", id)
		}
		r.logger.Info("node hard-deleted", "id", id)
		return nil
	}

	now := r.clock.Now().UTC()
	res, err := r.store.DB().ExecContext(ctx, `
		WITH RECURSIVE subtree(id) AS (
			SELECT id FROM nodes WHERE id = ?
			UNION ALL
			SELECT n.id FROM nodes n JOIN subtree s ON n.parent_id = s.id
		)
		UPDATE nodes SET is_deleted = 1, deleted_at = ?
		WHERE id IN (SELECT id FROM subtree) AND is_deleted = 0`, id, now)
	if err != nil {
		return fmt.Errorf("soft-deleting node %s: %w", id, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("deleting node %s: no such live node", id)
	}
	r.logger.Info("node soft-deleted", "id", id, "nodes", affected)
	return nil
}

// Move reparents a node. The new parent must be a live category (or empty
// for root) and must not be the node itself or one of its descendants.
// Canonical, display and absolute paths of the whole subtree are rewritten.
func (r *Repository) Move(ctx context.Context, nodeID, newParentID string) error {
	node, err := r.GetByID(nodeID)
	if err != nil {
		return err
	}
	if node == nil {
		return fmt.Errorf("moving node %s: no such node", nodeID)
	}

	var parent *tree.Node
	if newParentID != "" {
		if newParentID == nodeID {
			return fmt.Errorf("moving node %s: cannot move under itself", nodeID)
		}
		parent, err = r.GetByID(newParentID)
		if err != nil {
			return err
		}
		if parent == nil {
			return fmt.Errorf("moving node %s: no such parent %s", nodeID, newParentID)
		}
		if parent.Type != tree.NodeCategory {
			return fmt.Errorf("moving node %s: parent %s is not a category", nodeID, newParentID)
		}
		inSubtree, err := r.isDescendant(nodeID, newParentID)
		if err != nil {
			return err
		}
		if inSubtree {
			return fmt.Errorf("moving node %s: new parent %s is a descendant", nodeID, newParentID)
		}
	}

	newPaths := childPaths(node, parent, node.Name)
	return r.rewriteSubtreePaths(ctx, node, newParentID, newPaths)
}

// Rename changes a node's name and rewrites the subtree paths accordingly.
// For notes the file extension is re-derived from the new name.
func (r *Repository) Rename(ctx context.Context, nodeID, newName string) error {
	if newName == "" || strings.ContainsAny(newName, "/\\") {
		return fmt.Errorf("renaming node %s: invalid name %q", nodeID, newName)
	}

	node, err := r.GetByID(nodeID)
	if err != nil {
		return err
	}
	if node == nil {
		return fmt.Errorf("renaming node %s: no such node", nodeID)
	}

	if node.Type == tree.NodeNote && path.Ext(newName) == "" {
		return fmt.Errorf("renaming note %s: new name %q has no extension", nodeID, newName)
	}

	var parent *tree.Node
	if node.ParentID != "" {
		parent, err = r.GetByID(node.ParentID)
		if err != nil {
			return err
		}
	}

	newPaths := childPaths(node, parent, newName)
	if err := r.rewriteSubtreePaths(ctx, node, node.ParentID, newPaths); err != nil {
		return err
	}

	ext := ""
	if node.Type == tree.NodeNote {
		ext = strings.ToLower(path.Ext(newName))
	}
	_, err = r.store.DB().ExecContext(ctx,
		"UPDATE nodes SET name = ?, file_extension = ? WHERE id = ?",
		newName, nullString(ext), nodeID)
	if err != nil {
		return fmt.Errorf("renaming node %s: %w", nodeID, err)
	}
	return nil
}

// subtreePaths holds the three path representations of a node's new location.
type subtreePaths struct {
	canonical string
	display   string
	absolute  string
}

// childPaths computes the paths node would have under parent (nil parent =
// root) when named name. The document root directory is recovered from the
// node's current absolute/display pair, so the caller never has to know it.
func childPaths(node, parent *tree.Node, name string) subtreePaths {
	if parent == nil {
		rootDir := strings.TrimSuffix(node.AbsolutePath,
			strings.ReplaceAll(node.DisplayPath, "/", string(os.PathSeparator)))
		return subtreePaths{
			canonical: tree.CanonicalizePath(name),
			display:   name,
			absolute:  rootDir + name,
		}
	}
	return subtreePaths{
		canonical: parent.CanonicalPath + "/" + strings.ToLower(name),
		display:   parent.DisplayPath + "/" + name,
		absolute:  parent.AbsolutePath + string(os.PathSeparator) + name,
	}
}

// rewriteSubtreePaths reparents node and rewrites the path prefix of the
// node and every descendant inside one transaction.
func (r *Repository) rewriteSubtreePaths(ctx context.Context, node *tree.Node, newParentID string, np subtreePaths) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"UPDATE nodes SET parent_id = ? WHERE id = ?",
			nullString(newParentID), node.ID); err != nil {
			return fmt.Errorf("reparenting node %s: %w", node.ID, err)
		}

		// Rewrite the prefix on the node itself and on every descendant.
		replacements := []struct{ column, oldPrefix, newPrefix string }{
			{"canonical_path", node.CanonicalPath, np.canonical},
			{"display_path", node.DisplayPath, np.display},
			{"absolute_path", node.AbsolutePath, np.absolute},
		}
		for _, rep := range replacements {
			// length() counts characters, not bytes, so the offset
			// stays correct for multi-byte path segments.
			stmt := fmt.Sprintf(`
				UPDATE nodes SET %s = ? || substr(%s, length(?) + 1)
				WHERE id = ? OR %s LIKE ? ESCAPE '\'`,
				rep.column, rep.column, rep.column)
			like := likeEscape(rep.oldPrefix) + likeSeparator(rep.column) + "%"
			if _, err := tx.ExecContext(ctx, stmt,
				rep.newPrefix, rep.oldPrefix, node.ID, like); err != nil {
				return fmt.Errorf("rewriting %s for subtree of %s: %w", rep.column, node.ID, err)
			}
		}
		return nil
	})
}

func likeSeparator(column string) string {
	if column == "absolute_path" {
		return string(os.PathSeparator)
	}
	return "/"
}

func likeEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

// isDescendant reports whether candidate lies in the subtree rooted at rootID.
func (r *Repository) isDescendant(rootID, candidate string) (bool, error) {
	var count int
	err := r.store.DB().QueryRow(`
		WITH RECURSIVE subtree(id) AS (
			SELECT id FROM nodes WHERE id = ?
			UNION ALL
			SELECT n.id FROM nodes n JOIN subtree s ON n.parent_id = s.id
		)
		SELECT COUNT(*) FROM subtree WHERE id = ?`, rootID, candidate).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking subtree membership: %w", err)
	}
	return count > 0, nil
}

// Bulk operations

// BulkInsert writes all nodes in one transaction under the writer lock.
// Rows are chunked for statement size; the batch commits or rolls back as a
// unit. Cancellation between chunks aborts and rolls back.
func (r *Repository) BulkInsert(ctx context.Context, nodes []tree.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	for i := range nodes {
		if err := nodes[i].Validate(); err != nil {
			return err
		}
	}

	if err := r.lock.Acquire(ctx); err != nil {
		return fmt.Errorf("acquiring writer lock: %w", err)
	}
	defer r.lock.Release()

	return r.withTx(ctx, func(tx *sql.Tx) error {
		return insertChunked(ctx, tx, nodes)
	})
}

// BulkUpdate rewrites all given nodes in one transaction under the writer lock.
func (r *Repository) BulkUpdate(ctx context.Context, nodes []tree.Node) error {
	if len(nodes) == 0 {
		return nil
	}

	if err := r.lock.Acquire(ctx); err != nil {
		return fmt.Errorf("acquiring writer lock: %w", err)
	}
	defer r.lock.Release()

	return r.withTx(ctx, func(tx *sql.Tx) error {
		for i := range nodes {
			if i%bulkChunkSize == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			n := &nodes[i]
			if err := n.Validate(); err != nil {
				return err
			}
			args, err := toRowArgs(n)
			if err != nil {
				return err
			}
			args = append(args[1:], n.ID)
			if _, err := tx.ExecContext(ctx, updateNodeSQL, args...); err != nil {
				return fmt.Errorf("updating node %s: %w", n.ID, err)
			}
		}
		return nil
	})
}

// Rebuild

// RebuildFromFileSystem regenerates the cache from a fresh scan of rootPath.
// The scan happens outside any transaction; then, under the writer lock and
// one transaction, every existing live node is soft-deleted and the
// discovered set inserted. A cancelled rebuild rolls back and leaves the
// prior state intact. Returns the number of nodes inserted.
func (r *Repository) RebuildFromFileSystem(ctx context.Context, rootPath string, progress tree.ProgressFunc) (int, error) {
	nodes, err := r.scanner.ScanTree(ctx, rootPath, progress)
	if err != nil {
		return 0, fmt.Errorf("scanning %s: %w", rootPath, err)
	}

	if err := r.lock.Acquire(ctx); err != nil {
		return 0, fmt.Errorf("acquiring writer lock: %w", err)
	}
	defer r.lock.Release()

	now := r.clock.Now().UTC()
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"UPDATE nodes SET is_deleted = 1, deleted_at = ? WHERE is_deleted = 0", now); err != nil {
			return fmt.Errorf("retiring previous node set: %w", err)
		}

		if err := insertChunked(ctx, tx, nodes); err != nil {
			return err
		}

		if progress != nil {
			progress(tree.RebuildProgress{Discovered: len(nodes), Inserted: len(nodes), Current: rootPath})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.logger.Info("cache rebuilt from file system", "root", rootPath, "nodes", len(nodes))
	return len(nodes), nil
}

// insertChunked inserts nodes in bulkChunkSize batches, checking ctx
// before each chunk.
func insertChunked(ctx context.Context, tx *sql.Tx, nodes []tree.Node) error {
	for start := 0; start < len(nodes); start += bulkChunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + bulkChunkSize
		if end > len(nodes) {
			end = len(nodes)
		}
		for i := start; i < end; i++ {
			args, err := toRowArgs(&nodes[i])
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, insertNodeSQL, args...); err != nil {
				return fmt.Errorf("inserting node %s: %w", nodes[i].CanonicalPath, err)
			}
		}
	}
	return nil
}

// Change detection

// NodesWithOutdatedHash returns live notes whose fingerprint is missing or
// older than the file's recorded modification time.
func (r *Repository) NodesWithOutdatedHash() ([]*tree.Node, error) {
	return r.queryNodes(`
		SELECT ` + nodeColumns + ` FROM nodes
		WHERE node_type = 'note' AND is_deleted = 0
		  AND (quick_hash IS NULL OR hash_calculated_at IS NULL OR hash_calculated_at < modified_at)
		ORDER BY canonical_path`)
}

// UpdateHash stores a freshly computed fingerprint. fullHash may be empty
// when only the quick tier was computed.
func (r *Repository) UpdateHash(nodeID, quickHash, fullHash, algorithm string) error {
	res, err := r.store.DB().Exec(`
		UPDATE nodes SET quick_hash = ?, full_hash = ?, hash_algorithm = ?, hash_calculated_at = ?
		WHERE id = ? AND is_deleted = 0`,
		nullString(quickHash), nullString(fullHash), nullString(algorithm), r.clock.Now().UTC(), nodeID)
	if err != nil {
		return fmt.Errorf("updating hash for node %s: %w", nodeID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("updating hash: no live node %s", nodeID)
	}
	return nil
}

// RefreshAllMetadata re-stats every live note against disk and updates size
// and modification time for files that still exist. Files that vanished
// since the last scan are logged and skipped; a later rebuild reconciles
// them. Returns the number of nodes refreshed.
func (r *Repository) RefreshAllMetadata(ctx context.Context) (int, error) {
	notes, err := r.queryNodes(
		"SELECT " + nodeColumns + " FROM nodes WHERE node_type = 'note' AND is_deleted = 0")
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, n := range notes {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}

		info, err := os.Stat(n.AbsolutePath)
		if err != nil {
			r.logger.Warn("note file vanished, skipping refresh", "path", n.AbsolutePath)
			continue
		}

		_, err = r.store.DB().ExecContext(ctx,
			"UPDATE nodes SET file_size = ?, modified_at = ? WHERE id = ?",
			info.Size(), info.ModTime().UTC(), n.ID)
		if err != nil {
			return refreshed, fmt.Errorf("refreshing metadata for %s: %w", n.CanonicalPath, err)
		}
		refreshed++
	}

	r.logger.Info("metadata refreshed", "refreshed", refreshed, "total", len(notes))
	return refreshed, nil
}

// Search

// SearchByTitle returns live notes whose name contains term,
// case-insensitively, ordered by path.
func (r *Repository) SearchByTitle(term string) ([]*tree.Node, error) {
	if strings.TrimSpace(term) == "" {
		return nil, nil
	}
	pattern := "%" + likeEscape(strings.ToLower(term)) + "%"
	return r.queryNodes(`
		SELECT `+nodeColumns+` FROM nodes
		WHERE node_type = 'note' AND is_deleted = 0 AND lower(name) LIKE ? ESCAPE '\'
		ORDER BY canonical_path`, pattern)
}

// SearchByContent scans the backing file of every live note for term,
// case-insensitively. The store is queried first so only live notes are
// read from disk. Unreadable files are logged and skipped.
func (r *Repository) SearchByContent(ctx context.Context, term string) ([]*tree.Node, error) {
	if strings.TrimSpace(term) == "" {
		return nil, nil
	}

	notes, err := r.queryNodes(
		"SELECT " + nodeColumns + " FROM nodes WHERE node_type = 'note' AND is_deleted = 0 ORDER BY canonical_path")
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(term)
	var matches []*tree.Node
	for _, n := range notes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(n.AbsolutePath)
		if err != nil {
			r.logger.Warn("skipping unreadable note during content search", "path", n.AbsolutePath, "error", err)
			continue
		}
		if strings.Contains(strings.ToLower(string(data)), needle) {
			matches = append(matches, n)
		}
	}
	return matches, nil
}

// Maintenance

// PurgeDeleted hard-deletes soft-deleted rows older than the retention
// window. Descendant rows go with their ancestors via the foreign key
// cascade. Returns the number of rows removed directly.
func (r *Repository) PurgeDeleted(ctx context.Context, olderThanDays int) (int, error) {
	cutoff := r.clock.Now().UTC().AddDate(0, 0, -olderThanDays)
	res, err := r.store.DB().ExecContext(ctx,
		"DELETE FROM nodes WHERE is_deleted = 1 AND deleted_at IS NOT NULL AND deleted_at <= ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging deleted nodes: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected > 0 {
		r.logger.Info("purged soft-deleted nodes", "rows", affected, "older_than_days", olderThanDays)
	}
	return int(affected), nil
}

// Optimize refreshes planner statistics and clears retention-expired rows
// and audit entries older than the same window.
func (r *Repository) Optimize(ctx context.Context, retentionDays int) error {
	if _, err := r.PurgeDeleted(ctx, retentionDays); err != nil {
		return err
	}

	cutoff := r.clock.Now().UTC().AddDate(0, 0, -retentionDays)
	if _, err := r.store.DB().ExecContext(ctx,
		"DELETE FROM node_audit WHERE recorded_at <= ?", cutoff); err != nil {
		return fmt.Errorf("pruning audit entries: %w", err)
	}

	if _, err := r.store.DB().ExecContext(ctx, "ANALYZE"); err != nil {
		return fmt.Errorf("refreshing statistics: %w", err)
	}
	if _, err := r.store.DB().ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("running pragma optimize: %w", err)
	}
	return nil
}

// Vacuum reclaims free pages in the store file.
func (r *Repository) Vacuum(ctx context.Context) error {
	if _, err := r.store.DB().ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuuming store: %w", err)
	}
	return nil
}

// CountNodes returns the number of live nodes.
func (r *Repository) CountNodes() (int, error) {
	var count int
	if err := r.store.DB().QueryRow("SELECT COUNT(*) FROM nodes WHERE is_deleted = 0").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting nodes: %w", err)
	}
	return count, nil
}

// IsEmpty reports whether the cache holds no rows at all, deleted included.
func (r *Repository) IsEmpty() (bool, error) {
	var count int
	if err := r.store.DB().QueryRow("SELECT COUNT(*) FROM nodes").Scan(&count); err != nil {
		return false, fmt.Errorf("counting rows: %w", err)
	}
	return count == 0, nil
}

// CheckHealth returns a structured snapshot of the cache's condition:
// corruption flag, node counts, orphan count, and on-disk sizes.
func (r *Repository) CheckHealth() (*tree.HealthReport, error) {
	db := r.store.DB()
	report := &tree.HealthReport{CheckedAt: r.clock.Now()}

	var integrity string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&integrity); err != nil {
		report.IsCorrupted = true
		r.logger.Error("health check could not run integrity check", "error", err)
		return report, nil
	}
	report.IsCorrupted = integrity != "ok"

	if err := db.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&report.TotalNodes); err != nil {
		return nil, fmt.Errorf("counting nodes: %w", err)
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM nodes WHERE is_deleted = 1").Scan(&report.DeletedNodes); err != nil {
		return nil, fmt.Errorf("counting deleted nodes: %w", err)
	}
	if err := db.QueryRow(`
		SELECT COUNT(*) FROM nodes c
		WHERE c.is_deleted = 0 AND c.parent_id IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM nodes p WHERE p.id = c.parent_id AND p.is_deleted = 0)`,
	).Scan(&report.OrphanedNodes); err != nil {
		return nil, fmt.Errorf("counting orphaned nodes: %w", err)
	}

	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err == nil {
			report.StoreSizeBytes = pageCount * pageSize
		}
	}
	if info, err := os.Stat(r.store.WALPath()); err == nil {
		report.WALSizeBytes = info.Size()
	}

	report.SchemaCurrent = true
	if err := checkSchemaCurrent(db); err != nil {
		report.SchemaCurrent = false
	}

	return report, nil
}

// checkSchemaCurrent is split out so CheckHealth stays readable.
func checkSchemaCurrent(db *sql.DB) error {
	var versions int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE dirty = 0").Scan(&versions); err != nil {
		return err
	}
	if versions == 0 {
		return errors.New("no clean schema version")
	}
	return nil
}

// Helpers

var insertNodeSQL = "INSERT INTO nodes (" + nodeColumns + ") VALUES (" +
	strings.TrimSuffix(strings.Repeat("?, ", 26), ", ") + ")"

var updateNodeSQL = `
	UPDATE nodes SET
		parent_id = ?, name = ?, canonical_path = ?, display_path = ?, absolute_path = ?,
		node_type = ?, file_extension = ?, file_size = ?, created_at = ?, modified_at = ?, accessed_at = ?,
		quick_hash = ?, full_hash = ?, hash_algorithm = ?, hash_calculated_at = ?,
		is_expanded = ?, is_pinned = ?, is_selected = ?, sort_order = ?, is_deleted = ?, deleted_at = ?,
		metadata_version = ?, custom_properties = ?, color_tag = ?, icon_override = ?
	WHERE id = ?`

func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (r *Repository) queryOne(query string, args ...any) (*tree.Node, error) {
	row, err := scanNodeRow(r.store.DB().QueryRow(query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("querying node: %w", err)
	}
	return row.toNode()
}

func (r *Repository) queryNodes(query string, args ...any) ([]*tree.Node, error) {
	rows, err := r.store.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*tree.Node
	for rows.Next() {
		row, err := scanNodeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning node row: %w", err)
		}
		n, err := row.toNode()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating node rows: %w", err)
	}
	return nodes, nil
}
