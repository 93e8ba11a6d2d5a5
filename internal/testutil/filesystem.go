package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteTree materializes a document tree in a fresh temp dir. Keys are
// slash-separated relative paths, values are file contents. Returns the root.
func WriteTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatalf("creating directory for %s: %v", rel, err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", rel, err)
		}
	}
	return root
}

// MkdirTree creates empty directories (slash-separated, relative) under a
// fresh temp root and returns the root.
func MkdirTree(t *testing.T, dirs ...string) string {
	t.Helper()

	root := t.TempDir()
	for _, rel := range dirs {
		if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(rel)), 0755); err != nil {
			t.Fatalf("creating %s: %v", rel, err)
		}
	}
	return root
}

// CorruptFile truncates a file to zero bytes, simulating store corruption.
func CorruptFile(t *testing.T, path string) {
	t.Helper()

	if err := os.Truncate(path, 0); err != nil {
		t.Fatalf("truncating %s: %v", path, err)
	}
}
