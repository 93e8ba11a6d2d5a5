package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"notetree/internal/fs"
	"notetree/internal/testutil"
	"notetree/internal/tree"
)

func newScanner() *fs.Scanner {
	return fs.NewScanner([]string{".md", ".txt"}, testutil.NewStubIDGenerator(), testutil.FixedClock())
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return root
}

func byPath(nodes []tree.Node) map[string]tree.Node {
	m := make(map[string]tree.Node, len(nodes))
	for _, n := range nodes {
		m[n.CanonicalPath] = n
	}
	return m
}

func TestScanner_ScanTree(t *testing.T) {
	t.Run("discovers categories and notes with parents wired", func(t *testing.T) {
		root := writeTree(t, map[string]string{
			"a/note1.md":   "one",
			"a/b/note2.txt": "two",
		})

		nodes, err := newScanner().ScanTree(context.Background(), root, nil)
		if err != nil {
			t.Fatalf("ScanTree() error = %v", err)
		}
		if len(nodes) != 4 {
			t.Fatalf("ScanTree() returned %d nodes, want 4", len(nodes))
		}

		m := byPath(nodes)
		a, ok := m["a"]
		if !ok || a.Type != tree.NodeCategory {
			t.Fatalf("category a missing or wrong type: %+v", m)
		}
		b := m["a/b"]
		if b.ParentID != a.ID {
			t.Errorf("a/b parent = %q, want %q", b.ParentID, a.ID)
		}
		n2 := m["a/b/note2.txt"]
		if n2.ParentID != b.ID {
			t.Errorf("note2 parent = %q, want %q", n2.ParentID, b.ID)
		}
		if n2.Type != tree.NodeNote || n2.FileExtension != ".txt" {
			t.Errorf("note2 = %+v, want note with .txt extension", n2)
		}
		if n1 := m["a/note1.md"]; n1.FileSize != 3 {
			t.Errorf("note1 size = %d, want 3", n1.FileSize)
		}
	})

	t.Run("categories precede their contents", func(t *testing.T) {
		root := writeTree(t, map[string]string{"a/b/c/deep.md": "x"})

		nodes, err := newScanner().ScanTree(context.Background(), root, nil)
		if err != nil {
			t.Fatalf("ScanTree() error = %v", err)
		}

		seen := map[string]bool{"": true}
		for _, n := range nodes {
			if !seen[n.ParentID] {
				t.Errorf("node %s appeared before its parent", n.CanonicalPath)
			}
			seen[n.ID] = true
		}
	})

	t.Run("skips hidden entries and unrecognized extensions", func(t *testing.T) {
		root := writeTree(t, map[string]string{
			"a/note.md":      "x",
			"a/.hidden.md":   "x",
			".git/config":    "x",
			"a/image.png":    "x",
		})

		nodes, err := newScanner().ScanTree(context.Background(), root, nil)
		if err != nil {
			t.Fatalf("ScanTree() error = %v", err)
		}
		if len(nodes) != 2 {
			t.Errorf("ScanTree() returned %d nodes, want 2 (category a + note)", len(nodes))
		}
	})

	t.Run("cancellation aborts the walk", func(t *testing.T) {
		root := writeTree(t, map[string]string{"a/note.md": "x"})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := newScanner().ScanTree(ctx, root, nil); err == nil {
			t.Error("ScanTree() error = nil, want context error")
		}
	})

	t.Run("missing root returns error", func(t *testing.T) {
		if _, err := newScanner().ScanTree(context.Background(), filepath.Join(t.TempDir(), "absent"), nil); err == nil {
			t.Error("ScanTree() error = nil, want error")
		}
	})

	t.Run("reports progress", func(t *testing.T) {
		root := writeTree(t, map[string]string{"a/note.md": "x"})

		var calls int
		_, err := newScanner().ScanTree(context.Background(), root, func(p tree.RebuildProgress) {
			calls++
		})
		if err != nil {
			t.Fatalf("ScanTree() error = %v", err)
		}
		if calls == 0 {
			t.Error("progress callback never invoked")
		}
	})
}

func TestScanner_CountEntries(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a/note1.md":    "x",
		"a/b/note2.txt": "x",
		"a/skip.png":    "x",
		".hidden/n.md":  "x",
	})

	files, dirs, err := newScanner().CountEntries(root)
	if err != nil {
		t.Fatalf("CountEntries() error = %v", err)
	}
	if files != 2 {
		t.Errorf("files = %d, want 2", files)
	}
	if dirs != 2 {
		t.Errorf("dirs = %d, want 2", dirs)
	}
}

func TestScanner_Recognized(t *testing.T) {
	s := newScanner()
	if !s.Recognized("Note.MD") {
		t.Error("Recognized(Note.MD) = false, want true")
	}
	if s.Recognized("image.png") {
		t.Error("Recognized(image.png) = true, want false")
	}
}
