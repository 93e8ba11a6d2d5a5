package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"notetree/internal/tree"
)

// MappingError reports a stored row that cannot be converted into a domain
// node: an unparseable enum, malformed JSON payload, or a missing required
// field. It surfaces at the repository boundary instead of deep inside a
// scan loop.
type MappingError struct {
	NodeID string
	Column string
	Err    error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping node %s column %s: %v", e.NodeID, e.Column, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

// nodeRow is the scan target for every query over the nodes table. One
// statically-typed struct per query shape; no string-keyed dynamic binding.
type nodeRow struct {
	ID               string
	ParentID         sql.NullString
	Name             string
	CanonicalPath    string
	DisplayPath      string
	AbsolutePath     string
	NodeType         string
	FileExtension    sql.NullString
	FileSize         int64
	CreatedAt        time.Time
	ModifiedAt       time.Time
	AccessedAt       sql.NullTime
	QuickHash        sql.NullString
	FullHash         sql.NullString
	HashAlgorithm    sql.NullString
	HashCalculatedAt sql.NullTime
	IsExpanded       bool
	IsPinned         bool
	IsSelected       bool
	SortOrder        int
	IsDeleted        bool
	DeletedAt        sql.NullTime
	MetadataVersion  int
	CustomProperties string
	ColorTag         sql.NullString
	IconOverride     sql.NullString
}

// nodeColumns is the column list every node query selects, in scan order.
const nodeColumns = `id, parent_id, name, canonical_path, display_path, absolute_path,
	node_type, file_extension, file_size, created_at, modified_at, accessed_at,
	quick_hash, full_hash, hash_algorithm, hash_calculated_at,
	is_expanded, is_pinned, is_selected, sort_order, is_deleted, deleted_at,
	metadata_version, custom_properties, color_tag, icon_override`

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanNodeRow(s scanner) (*nodeRow, error) {
	var r nodeRow
	err := s.Scan(
		&r.ID, &r.ParentID, &r.Name, &r.CanonicalPath, &r.DisplayPath, &r.AbsolutePath,
		&r.NodeType, &r.FileExtension, &r.FileSize, &r.CreatedAt, &r.ModifiedAt, &r.AccessedAt,
		&r.QuickHash, &r.FullHash, &r.HashAlgorithm, &r.HashCalculatedAt,
		&r.IsExpanded, &r.IsPinned, &r.IsSelected, &r.SortOrder, &r.IsDeleted, &r.DeletedAt,
		&r.MetadataVersion, &r.CustomProperties, &r.ColorTag, &r.IconOverride,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// toNode is the pure mapping from a stored row to the domain entity.
func (r *nodeRow) toNode() (*tree.Node, error) {
	nodeType, err := tree.ParseNodeType(r.NodeType)
	if err != nil {
		return nil, &MappingError{NodeID: r.ID, Column: "node_type", Err: err}
	}

	props := map[string]string{}
	if r.CustomProperties != "" {
		if err := json.Unmarshal([]byte(r.CustomProperties), &props); err != nil {
			return nil, &MappingError{NodeID: r.ID, Column: "custom_properties", Err: err}
		}
	}

	n := &tree.Node{
		ID:               r.ID,
		ParentID:         r.ParentID.String,
		Name:             r.Name,
		CanonicalPath:    r.CanonicalPath,
		DisplayPath:      r.DisplayPath,
		AbsolutePath:     r.AbsolutePath,
		Type:             nodeType,
		FileExtension:    r.FileExtension.String,
		FileSize:         r.FileSize,
		CreatedAt:        r.CreatedAt,
		ModifiedAt:       r.ModifiedAt,
		AccessedAt:       r.AccessedAt.Time,
		QuickHash:        r.QuickHash.String,
		FullHash:         r.FullHash.String,
		HashAlgorithm:    r.HashAlgorithm.String,
		HashCalculatedAt: r.HashCalculatedAt.Time,
		IsExpanded:       r.IsExpanded,
		IsPinned:         r.IsPinned,
		IsSelected:       r.IsSelected,
		SortOrder:        r.SortOrder,
		ColorTag:         r.ColorTag.String,
		IconOverride:     r.IconOverride.String,
		IsDeleted:        r.IsDeleted,
		MetadataVersion:  r.MetadataVersion,
		CustomProperties: props,
	}
	if r.DeletedAt.Valid {
		t := r.DeletedAt.Time
		n.DeletedAt = &t
	}
	return n, nil
}

// toRowArgs converts a domain node into the argument list matching
// nodeColumns, used by insert statements.
func toRowArgs(n *tree.Node) ([]any, error) {
	props := n.CustomProperties
	if props == nil {
		props = map[string]string{}
	}
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return nil, &MappingError{NodeID: n.ID, Column: "custom_properties", Err: err}
	}

	return []any{
		n.ID, nullString(n.ParentID), n.Name, n.CanonicalPath, n.DisplayPath, n.AbsolutePath,
		string(n.Type), nullString(n.FileExtension), n.FileSize, n.CreatedAt.UTC(), n.ModifiedAt.UTC(), nullTime(n.AccessedAt),
		nullString(n.QuickHash), nullString(n.FullHash), nullString(n.HashAlgorithm), nullTime(n.HashCalculatedAt),
		n.IsExpanded, n.IsPinned, n.IsSelected, n.SortOrder, n.IsDeleted, nullTimePtr(n.DeletedAt),
		n.MetadataVersion, string(propsJSON), nullString(n.ColorTag), nullString(n.IconOverride),
	}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Timestamps are normalized to UTC before binding so stored values compare
// consistently at the SQL level regardless of the host timezone.
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
