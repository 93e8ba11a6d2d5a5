// Package legacy performs the one-time import of a pre-existing document
// tree into an empty cache store. The file system remains the source of
// truth; the importer scans it, merges whatever flat-file metadata the old
// format kept, bulk-inserts the result and verifies the row count against
// the disk before declaring success.
package legacy

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"notetree/internal/database"
	"notetree/internal/fs"
	"notetree/internal/tree"
)

// Importer migrates a legacy document tree into the cache store.
type Importer struct {
	repo      *database.Repository
	scanner   *fs.Scanner
	docRoot   string
	backupDir string
	logger    tree.Logger
	clock     tree.Clock

	status tree.MigrationStatus
}

// NewImporter returns an importer for the tree rooted at docRoot. Legacy
// metadata files are preserved under backupDir/legacy after a successful
// run.
func NewImporter(repo *database.Repository, scanner *fs.Scanner, docRoot, backupDir string, logger tree.Logger, clock tree.Clock) *Importer {
	return &Importer{
		repo:      repo,
		scanner:   scanner,
		docRoot:   docRoot,
		backupDir: backupDir,
		logger:    logger,
		clock:     clock,
		status:    tree.MigrationPending,
	}
}

// IsMigrationNeeded reports whether a legacy import should run. A missing
// document root is created and counts as nothing to migrate; a non-empty
// store means the import already happened.
func (im *Importer) IsMigrationNeeded() (bool, error) {
	info, err := os.Stat(im.docRoot)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(im.docRoot, 0o755); err != nil {
			return false, fmt.Errorf("creating document root: %w", err)
		}
		im.status = tree.MigrationNotNeeded
		return false, nil
	case err != nil:
		return false, fmt.Errorf("checking document root: %w", err)
	case !info.IsDir():
		return false, fmt.Errorf("document root %s is not a directory", im.docRoot)
	}

	empty, err := im.repo.IsEmpty()
	if err != nil {
		return false, err
	}
	if !empty {
		im.status = tree.MigrationNotNeeded
		return false, nil
	}

	files, _, err := im.scanner.CountEntries(im.docRoot)
	if err != nil {
		return false, err
	}
	if files == 0 {
		im.status = tree.MigrationNotNeeded
		return false, nil
	}
	return true, nil
}

// Migrate runs the import end to end. It is safe to call when no migration
// is needed; the result then reports success with zero inserts, so a failed
// run can simply be retried on the next startup.
func (im *Importer) Migrate(ctx context.Context) (*tree.MigrationResult, error) {
	start := im.clock.Now()
	result := &tree.MigrationResult{}

	needed, err := im.IsMigrationNeeded()
	if err != nil {
		im.status = tree.MigrationFailed
		return nil, err
	}
	if !needed {
		im.status = tree.MigrationNotNeeded
		result.Success = true
		result.Message = "migration not needed"
		result.Duration = im.clock.Now().Sub(start)
		return result, nil
	}

	im.logger.Info("legacy migration starting", "root", im.docRoot)

	nodes, err := im.scanner.ScanTree(ctx, im.docRoot, nil)
	if err != nil {
		im.status = tree.MigrationFailed
		return nil, fmt.Errorf("scanning document tree: %w", err)
	}
	for i := range nodes {
		switch nodes[i].Type {
		case tree.NodeCategory:
			result.CategoriesFound++
		case tree.NodeNote:
			result.NotesFound++
		}
	}

	md, err := loadMetadata(im.docRoot)
	if err != nil {
		im.status = tree.MigrationFailed
		return nil, err
	}
	merged := im.mergeMetadata(nodes, md)
	result.LegacyItemsMerged = merged
	result.LegacyItemsDropped = md.itemCount() - merged

	if err := im.repo.BulkInsert(ctx, nodes); err != nil {
		im.status = tree.MigrationFailed
		return nil, fmt.Errorf("inserting nodes: %w", err)
	}
	result.NodesInserted = len(nodes)

	if err := im.Verify(); err != nil {
		im.status = tree.MigrationFailed
		return nil, fmt.Errorf("verifying migration: %w", err)
	}

	if err := im.backupLegacyFiles(md, result); err != nil {
		// The import itself succeeded; losing the safety copy is
		// worth a warning, not a rollback.
		im.logger.Warn("legacy file backup failed", "error", err)
	}

	im.status = tree.MigrationCompleted
	result.Success = true
	result.Message = fmt.Sprintf("migrated %d categories and %d notes", result.CategoriesFound, result.NotesFound)
	result.Duration = im.clock.Now().Sub(start)
	im.logger.Info("legacy migration completed",
		"categories", result.CategoriesFound,
		"notes", result.NotesFound,
		"merged", result.LegacyItemsMerged,
		"dropped", result.LegacyItemsDropped,
		"duration", result.Duration)
	return result, nil
}

// Verify checks the migrated store against the file system: the row count
// must match the on-disk entry count and every stored path must still
// exist.
func (im *Importer) Verify() error {
	files, dirs, err := im.scanner.CountEntries(im.docRoot)
	if err != nil {
		return err
	}
	count, err := im.repo.CountNodes()
	if err != nil {
		return err
	}
	if want := files + dirs; count != want {
		return fmt.Errorf("node count mismatch: store has %d, file system has %d", count, want)
	}

	roots, err := im.repo.GetRootNodes()
	if err != nil {
		return err
	}
	for _, root := range roots {
		nodes, err := im.repo.GetDescendants(root.ID)
		if err != nil {
			return err
		}
		nodes = append(nodes, root)
		for _, n := range nodes {
			if _, err := os.Stat(n.AbsolutePath); err != nil {
				return fmt.Errorf("stored path missing on disk: %s", n.DisplayPath)
			}
		}
	}
	return nil
}

// Status reports the outcome of the most recent needed-check or migration.
func (im *Importer) Status() tree.MigrationStatus {
	return im.status
}

// mergeMetadata applies legacy flat-file metadata onto the scanned nodes in
// place and returns the number of legacy entries that found a target.
// Category names and pinned paths match case-insensitively; the old format
// never normalized case.
func (im *Importer) mergeMetadata(nodes []tree.Node, md *metadata) int {
	byName := make(map[string]*tree.Node)
	byPath := make(map[string]*tree.Node, len(nodes))
	for i := range nodes {
		n := &nodes[i]
		byPath[n.CanonicalPath] = n
		if n.Type == tree.NodeCategory {
			byName[strings.ToLower(n.Name)] = n
		}
	}

	merged := 0
	for _, cat := range md.Categories {
		n, ok := byName[strings.ToLower(cat.Name)]
		if !ok {
			im.logger.Debug("legacy category has no matching directory", "name", cat.Name)
			continue
		}
		n.IsExpanded = cat.Expanded
		n.SortOrder = cat.SortOrder
		merged++
	}

	for _, p := range md.PinnedPaths {
		n, ok := byPath[tree.CanonicalizePath(p)]
		if !ok {
			im.logger.Debug("legacy pinned path not found", "path", p)
			continue
		}
		n.IsPinned = true
		merged++
	}

	for p, props := range md.NoteProperties {
		n, ok := byPath[tree.CanonicalizePath(p)]
		if !ok || n.Type != tree.NodeNote {
			im.logger.Debug("legacy note metadata has no matching note", "path", p)
			continue
		}
		if n.CustomProperties == nil {
			n.CustomProperties = map[string]string{}
		}
		for k, v := range props {
			n.CustomProperties[k] = v
		}
		merged++
	}
	return merged
}

// backupLegacyFiles copies the legacy metadata files into backupDir/legacy
// and writes a short human-readable summary beside them.
func (im *Importer) backupLegacyFiles(md *metadata, result *tree.MigrationResult) error {
	dest := filepath.Join(im.backupDir, "legacy")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	for _, src := range md.SourceFiles {
		if err := copyFile(src, filepath.Join(dest, filepath.Base(src))); err != nil {
			return err
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Legacy migration summary\n")
	fmt.Fprintf(&b, "Completed at: %s\n", im.clock.Now().UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "Document root: %s\n", im.docRoot)
	fmt.Fprintf(&b, "Categories: %d\n", result.CategoriesFound)
	fmt.Fprintf(&b, "Notes: %d\n", result.NotesFound)
	fmt.Fprintf(&b, "Legacy items merged: %d\n", result.LegacyItemsMerged)
	fmt.Fprintf(&b, "Legacy items dropped: %d\n", result.LegacyItemsDropped)
	for _, src := range md.SourceFiles {
		fmt.Fprintf(&b, "Preserved: %s\n", filepath.Base(src))
	}
	return os.WriteFile(filepath.Join(dest, "summary.txt"), []byte(b.String()), 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
