package hash

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"notetree/internal/tree"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}
	return path
}

func TestQuick(t *testing.T) {
	t.Run("same content yields same hash", func(t *testing.T) {
		a := writeFile(t, "a.md", []byte("hello world"))
		b := writeFile(t, "b.md", []byte("hello world"))

		ha, err := Quick(a)
		if err != nil {
			t.Fatalf("Quick() error = %v", err)
		}
		hb, err := Quick(b)
		if err != nil {
			t.Fatalf("Quick() error = %v", err)
		}
		if ha != hb {
			t.Errorf("Quick() hashes differ for identical content: %s vs %s", ha, hb)
		}
	})

	t.Run("size change beyond the window still changes the hash", func(t *testing.T) {
		head := bytes.Repeat([]byte("x"), quickHashWindow)
		a := writeFile(t, "a.md", head)
		b := writeFile(t, "b.md", append(bytes.Repeat([]byte("x"), quickHashWindow), []byte("tail")...))

		ha, _ := Quick(a)
		hb, _ := Quick(b)
		if ha == hb {
			t.Error("Quick() hashes equal despite different sizes")
		}
	})

	t.Run("missing file returns error", func(t *testing.T) {
		if _, err := Quick(filepath.Join(t.TempDir(), "missing.md")); err == nil {
			t.Error("Quick() error = nil, want error")
		}
	})
}

func TestFull(t *testing.T) {
	path := writeFile(t, "a.md", []byte("content"))

	h1, err := Full(path)
	if err != nil {
		t.Fatalf("Full() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("changed"), 0644); err != nil {
		t.Fatalf("rewriting test file: %v", err)
	}

	h2, err := Full(path)
	if err != nil {
		t.Fatalf("Full() error = %v", err)
	}
	if h1 == h2 {
		t.Error("Full() hash unchanged after content change")
	}
}

func TestOutdated(t *testing.T) {
	path := writeFile(t, "a.md", []byte("content"))
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	base := &tree.Node{
		Type:             tree.NodeNote,
		FileExtension:    ".md",
		FileSize:         info.Size(),
		QuickHash:        "abc",
		HashAlgorithm:    Algorithm,
		HashCalculatedAt: info.ModTime().Add(time.Minute),
	}

	t.Run("fresh fingerprint is not outdated", func(t *testing.T) {
		if Outdated(base, info) {
			t.Error("Outdated() = true, want false")
		}
	})

	t.Run("missing hash is outdated", func(t *testing.T) {
		n := *base
		n.QuickHash = ""
		if !Outdated(&n, info) {
			t.Error("Outdated() = false, want true")
		}
	})

	t.Run("size mismatch is outdated", func(t *testing.T) {
		n := *base
		n.FileSize = info.Size() + 1
		if !Outdated(&n, info) {
			t.Error("Outdated() = false, want true")
		}
	})

	t.Run("modification after last hash is outdated", func(t *testing.T) {
		n := *base
		n.HashCalculatedAt = info.ModTime().Add(-time.Hour)
		if !Outdated(&n, info) {
			t.Error("Outdated() = false, want true")
		}
	})

	t.Run("foreign algorithm is outdated", func(t *testing.T) {
		n := *base
		n.HashAlgorithm = "md5"
		if !Outdated(&n, info) {
			t.Error("Outdated() = false, want true")
		}
	})
}
