package tree

import "testing"

func TestNode_Validate(t *testing.T) {
	valid := func() *Node {
		return &Node{
			ID:            "n1",
			Name:          "note1.md",
			CanonicalPath: "a/note1.md",
			Type:          NodeNote,
			FileExtension: ".md",
		}
	}

	t.Run("accepts a valid note", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("Validate() error = %v, want nil", err)
		}
	})

	t.Run("accepts a valid category", func(t *testing.T) {
		n := valid()
		n.Type = NodeCategory
		n.FileExtension = ""
		if err := n.Validate(); err != nil {
			t.Errorf("Validate() error = %v, want nil", err)
		}
	})

	t.Run("rejects a note without extension", func(t *testing.T) {
		n := valid()
		n.FileExtension = ""
		if err := n.Validate(); err == nil {
			t.Error("Validate() error = nil, want error")
		}
	})

	t.Run("rejects a category with extension", func(t *testing.T) {
		n := valid()
		n.Type = NodeCategory
		if err := n.Validate(); err == nil {
			t.Error("Validate() error = nil, want error")
		}
	})

	t.Run("rejects a node that is its own parent", func(t *testing.T) {
		n := valid()
		n.ParentID = n.ID
		if err := n.Validate(); err == nil {
			t.Error("Validate() error = nil, want error")
		}
	})

	t.Run("rejects an unknown type", func(t *testing.T) {
		n := valid()
		n.Type = NodeType("bogus")
		if err := n.Validate(); err == nil {
			t.Error("Validate() error = nil, want error")
		}
	})
}

func TestParseNodeType(t *testing.T) {
	if _, err := ParseNodeType("category"); err != nil {
		t.Errorf("ParseNodeType(category) error = %v", err)
	}
	if _, err := ParseNodeType("note"); err != nil {
		t.Errorf("ParseNodeType(note) error = %v", err)
	}
	if _, err := ParseNodeType("folder"); err == nil {
		t.Error("ParseNodeType(folder) error = nil, want error")
	}
}

func TestCanonicalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"A/Note1.MD", "a/note1.md"},
		{"/docs/a/", "docs/a"},
		{"a//b/../c", "a/c"},
		{".", ""},
	}
	for _, tt := range tests {
		if got := CanonicalizePath(tt.in); got != tt.want {
			t.Errorf("CanonicalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
