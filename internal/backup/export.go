package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"notetree/internal/tree"
)

// exportVersion identifies the portable export format. Bump on any change
// to exportDocument or exportNode.
const exportVersion = 1

// exportDocument is the machine-readable half of a portable export. It is
// deliberately independent of the storage engine's binary format so a tree
// can be reconstructed with nothing but a JSON parser.
type exportDocument struct {
	ExportedAt    time.Time    `json:"exportedAt"`
	ExportVersion int          `json:"exportVersion"`
	NodeCount     int          `json:"nodeCount"`
	Nodes         []exportNode `json:"nodes"`
}

type exportNode struct {
	ID               string            `json:"id"`
	ParentID         string            `json:"parentId"`
	Name             string            `json:"name"`
	CanonicalPath    string            `json:"canonicalPath"`
	DisplayPath      string            `json:"displayPath"`
	AbsolutePath     string            `json:"absolutePath"`
	NodeType         string            `json:"nodeType"`
	FileExtension    string            `json:"fileExtension,omitempty"`
	FileSize         int64             `json:"fileSize"`
	CreatedAt        time.Time         `json:"createdAt"`
	ModifiedAt       time.Time         `json:"modifiedAt"`
	AccessedAt       time.Time         `json:"accessedAt"`
	QuickHash        string            `json:"quickHash,omitempty"`
	FullHash         string            `json:"fullHash,omitempty"`
	IsPinned         bool              `json:"isPinned"`
	IsExpanded       bool              `json:"isExpanded"`
	SortOrder        int               `json:"sortOrder"`
	ColorTag         string            `json:"colorTag,omitempty"`
	CustomProperties map[string]string `json:"customProperties,omitempty"`
}

// Export writes all live nodes to two artifacts in dir (or the default
// exports directory when dir is empty): a JSON document and an indented
// text listing of the tree. The two writes fail independently; one failing
// does not roll back the other. Returns the JSON artifact's descriptor when
// it was written.
func (m *Manager) Export(dir string) (*tree.BackupInfo, error) {
	if dir == "" {
		dir = filepath.Join(m.dir, "exports")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	nodes, err := m.liveNodes()
	if err != nil {
		return nil, fmt.Errorf("collecting live nodes: %w", err)
	}

	base := filepath.Join(dir, "tree_export_"+m.clock.Now().Format(timestampLayout))
	jsonPath := base + ".json"
	textPath := base + ".txt"

	var errs []error

	jsonErr := m.writeJSONExport(jsonPath, nodes)
	if jsonErr != nil {
		m.logger.Error("JSON export failed", "path", jsonPath, "error", jsonErr)
		errs = append(errs, jsonErr)
	}

	if err := m.writeTextListing(textPath, nodes); err != nil {
		m.logger.Error("text listing export failed", "path", textPath, "error", err)
		errs = append(errs, err)
	}

	if jsonErr == nil {
		m.replicate("exports/"+filepath.Base(jsonPath), jsonPath)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	info, err := os.Stat(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("reading export: %w", err)
	}
	m.logger.Info("portable export written", "path", jsonPath, "nodes", len(nodes))

	return &tree.BackupInfo{
		Path:      jsonPath,
		Type:      tree.BackupExport,
		CreatedAt: m.clock.Now(),
		SizeBytes: info.Size(),
	}, nil
}

func (m *Manager) writeJSONExport(path string, nodes []*tree.Node) error {
	doc := exportDocument{
		ExportedAt:    m.clock.Now(),
		ExportVersion: exportVersion,
		NodeCount:     len(nodes),
		Nodes:         make([]exportNode, 0, len(nodes)),
	}
	for _, n := range nodes {
		doc.Nodes = append(doc.Nodes, exportNode{
			ID:               n.ID,
			ParentID:         n.ParentID,
			Name:             n.Name,
			CanonicalPath:    n.CanonicalPath,
			DisplayPath:      n.DisplayPath,
			AbsolutePath:     n.AbsolutePath,
			NodeType:         string(n.Type),
			FileExtension:    n.FileExtension,
			FileSize:         n.FileSize,
			CreatedAt:        n.CreatedAt,
			ModifiedAt:       n.ModifiedAt,
			AccessedAt:       n.AccessedAt,
			QuickHash:        n.QuickHash,
			FullHash:         n.FullHash,
			IsPinned:         n.IsPinned,
			IsExpanded:       n.IsExpanded,
			SortOrder:        n.SortOrder,
			ColorTag:         n.ColorTag,
			CustomProperties: n.CustomProperties,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return nil
}

// writeTextListing writes the human-readable half: one line per node,
// indented by depth, categories marked with a trailing slash.
func (m *Manager) writeTextListing(path string, nodes []*tree.Node) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Tree listing exported at %s\n", m.clock.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "%d nodes\n\n", len(nodes))

	for _, n := range nodes {
		depth := strings.Count(n.CanonicalPath, "/")
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(n.Name)
		if n.Type == tree.NodeCategory {
			b.WriteString("/")
		}
		b.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("writing listing: %w", err)
	}
	return nil
}

// liveNodes returns every live node in listing order: roots in child
// order, each followed by its descendants in path order.
func (m *Manager) liveNodes() ([]*tree.Node, error) {
	roots, err := m.repo.GetRootNodes()
	if err != nil {
		return nil, err
	}

	var nodes []*tree.Node
	for _, root := range roots {
		nodes = append(nodes, root)
		desc, err := m.repo.GetDescendants(root.ID)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, desc...)
	}
	return nodes, nil
}
