package tree

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// NodeType classifies a node as either a category (directory) or a note (file).
type NodeType string

const (
	NodeCategory NodeType = "category"
	NodeNote     NodeType = "note"
)

// ParseNodeType converts a stored string into a NodeType.
func ParseNodeType(s string) (NodeType, error) {
	switch NodeType(s) {
	case NodeCategory, NodeNote:
		return NodeType(s), nil
	default:
		return "", fmt.Errorf("unknown node type: %q", s)
	}
}

// Node is a cached projection of one file-system entry. The file system is
// the source of truth; every field here can be re-derived by a rebuild except
// the organizational state (pin, expand, sort order, color, custom
// properties), which only lives in the cache.
type Node struct {
	ID       string // UUID, immutable for the node's lifetime
	ParentID string // empty = root node

	Name          string
	CanonicalPath string // normalized, case-folded, unique among live nodes
	DisplayPath   string
	AbsolutePath  string // current on-disk location

	Type          NodeType
	FileExtension string // required for notes, must be empty for categories

	FileSize   int64
	CreatedAt  time.Time
	ModifiedAt time.Time
	AccessedAt time.Time

	QuickHash        string
	FullHash         string
	HashAlgorithm    string
	HashCalculatedAt time.Time

	IsExpanded   bool
	IsPinned     bool
	IsSelected   bool
	SortOrder    int
	ColorTag     string
	IconOverride string

	IsDeleted bool
	DeletedAt *time.Time

	MetadataVersion  int
	CustomProperties map[string]string
}

// Validate checks the node's structural invariants before it is persisted.
func (n *Node) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("node has no id")
	}
	if n.Name == "" {
		return fmt.Errorf("node %s has no name", n.ID)
	}
	if n.CanonicalPath == "" {
		return fmt.Errorf("node %s has no canonical path", n.ID)
	}
	if n.ParentID == n.ID {
		return fmt.Errorf("node %s is its own parent", n.ID)
	}
	switch n.Type {
	case NodeNote:
		if n.FileExtension == "" {
			return fmt.Errorf("note %s has no file extension", n.CanonicalPath)
		}
	case NodeCategory:
		if n.FileExtension != "" {
			return fmt.Errorf("category %s must not have a file extension", n.CanonicalPath)
		}
	default:
		return fmt.Errorf("node %s has invalid type %q", n.ID, n.Type)
	}
	return nil
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool { return n.ParentID == "" }

// CanonicalizePath normalizes a path for lookup and uniqueness checks:
// forward slashes, cleaned, case-folded, no leading or trailing slash.
func CanonicalizePath(p string) string {
	p = filepath.ToSlash(filepath.Clean(p))
	p = strings.Trim(p, "/")
	if p == "." {
		return ""
	}
	return strings.ToLower(p)
}
