// Package fs discovers the document tree on disk. The scanner is the input
// side of every cache rebuild and of the one-time legacy import: it walks the
// document root and produces the node set the repository persists.
package fs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"notetree/internal/tree"
)

// progressInterval controls how many discoveries pass between progress callbacks.
const progressInterval = 50

// Scanner walks a document root and builds tree nodes from what it finds.
// Hidden entries (dot-prefixed) are skipped, as are files whose extension is
// not recognized.
type Scanner struct {
	extensions map[string]bool
	idgen      tree.IDGenerator
	clock      tree.Clock
}

// NewScanner creates a Scanner recognizing the given note extensions
// (lowercase, dot-prefixed, e.g. ".md").
func NewScanner(extensions []string, idgen tree.IDGenerator, clock tree.Clock) *Scanner {
	m := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		m[strings.ToLower(ext)] = true
	}
	return &Scanner{extensions: m, idgen: idgen, clock: clock}
}

// Recognized reports whether the file name carries a recognized note extension.
func (s *Scanner) Recognized(name string) bool {
	return s.extensions[strings.ToLower(filepath.Ext(name))]
}

// ScanTree walks root depth-first, categories before notes, and returns the
// discovered node set with parent IDs wired. Cancellation is checked before
// each directory and each file; a cancelled scan returns ctx.Err() and no
// nodes. progress may be nil.
func (s *Scanner) ScanTree(ctx context.Context, root string, progress tree.ProgressFunc) ([]tree.Node, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat document root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document root is not a directory: %s", root)
	}

	var nodes []tree.Node
	report := func(current string) {
		if progress != nil && len(nodes)%progressInterval == 0 {
			progress(tree.RebuildProgress{Discovered: len(nodes), Current: current})
		}
	}

	var walk func(dir, parentID, relPath string) error
	walk = func(dir, parentID, relPath string) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("reading directory %s: %w", dir, err)
		}

		// Subdirectories first so every category row precedes its contents.
		for _, entry := range entries {
			if !entry.IsDir() || hidden(entry.Name()) {
				continue
			}
			childRel := filepath.Join(relPath, entry.Name())
			childAbs := filepath.Join(dir, entry.Name())

			dirInfo, err := entry.Info()
			if err != nil {
				return fmt.Errorf("stat %s: %w", childAbs, err)
			}

			node := s.categoryNode(entry.Name(), childRel, childAbs, parentID, dirInfo)
			nodes = append(nodes, node)
			report(childAbs)

			if err := walk(childAbs, node.ID, childRel); err != nil {
				return err
			}
		}

		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if entry.IsDir() || hidden(entry.Name()) || !s.Recognized(entry.Name()) {
				continue
			}
			if !entry.Type().IsRegular() {
				continue
			}

			childAbs := filepath.Join(dir, entry.Name())
			fileInfo, err := entry.Info()
			if err != nil {
				return fmt.Errorf("stat %s: %w", childAbs, err)
			}

			nodes = append(nodes, s.noteNode(entry.Name(), filepath.Join(relPath, entry.Name()), childAbs, parentID, fileInfo))
			report(childAbs)
		}

		return nil
	}

	if err := walk(root, "", ""); err != nil {
		return nil, err
	}

	if progress != nil {
		progress(tree.RebuildProgress{Discovered: len(nodes), Current: root})
	}
	return nodes, nil
}

// CountEntries counts recognized note files and non-hidden directories under
// root. Used to verify migration and rebuild completeness.
func (s *Scanner) CountEntries(root string) (files, dirs int, err error) {
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		if hidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			dirs++
		} else if d.Type().IsRegular() && s.Recognized(d.Name()) {
			files++
		}
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("counting entries under %s: %w", root, err)
	}
	return files, dirs, nil
}

func (s *Scanner) categoryNode(name, relPath, absPath, parentID string, info fs.FileInfo) tree.Node {
	now := s.clock.Now()
	return tree.Node{
		ID:               s.idgen.New(),
		ParentID:         parentID,
		Name:             name,
		CanonicalPath:    tree.CanonicalizePath(relPath),
		DisplayPath:      filepath.ToSlash(relPath),
		AbsolutePath:     absPath,
		Type:             tree.NodeCategory,
		CreatedAt:        now,
		ModifiedAt:       info.ModTime(),
		AccessedAt:       accessTime(info, now),
		IsExpanded:       false,
		MetadataVersion:  1,
		CustomProperties: map[string]string{},
	}
}

func (s *Scanner) noteNode(name, relPath, absPath, parentID string, info fs.FileInfo) tree.Node {
	now := s.clock.Now()
	return tree.Node{
		ID:               s.idgen.New(),
		ParentID:         parentID,
		Name:             name,
		CanonicalPath:    tree.CanonicalizePath(relPath),
		DisplayPath:      filepath.ToSlash(relPath),
		AbsolutePath:     absPath,
		Type:             tree.NodeNote,
		FileExtension:    strings.ToLower(filepath.Ext(name)),
		FileSize:         info.Size(),
		CreatedAt:        now,
		ModifiedAt:       info.ModTime(),
		AccessedAt:       accessTime(info, now),
		MetadataVersion:  1,
		CustomProperties: map[string]string{},
	}
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
