package vault_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"notetree/internal/vault"
)

func TestFileSystemVaultPutGet(t *testing.T) {
	v, err := vault.NewFileSystemVault("offsite", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	data := []byte("backup artifact bytes")
	if err := v.Put("daily/tree_daily_1.db", bytes.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	var out bytes.Buffer
	if err := v.Get("daily/tree_daily_1.db", &out); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.Equal(out.Bytes(), data) {
		t.Errorf("Get() = %q, want %q", out.Bytes(), data)
	}
}

func TestFileSystemVaultOverwrite(t *testing.T) {
	v, err := vault.NewFileSystemVault("offsite", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	first := []byte("first")
	second := []byte("second version")
	if err := v.Put("shadow/tree_shadow.db", bytes.NewReader(first), int64(len(first))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := v.Put("shadow/tree_shadow.db", bytes.NewReader(second), int64(len(second))); err != nil {
		t.Fatalf("Put() overwrite error = %v", err)
	}

	var out bytes.Buffer
	if err := v.Get("shadow/tree_shadow.db", &out); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if out.String() != "second version" {
		t.Errorf("Get() = %q, want latest version", out.String())
	}
}

func TestFileSystemVaultSizeMismatch(t *testing.T) {
	root := t.TempDir()
	v, err := vault.NewFileSystemVault("offsite", root)
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	data := []byte("short")
	if err := v.Put("daily/x.db", bytes.NewReader(data), 999); err == nil {
		t.Fatal("Put() error = nil with wrong size, want mismatch error")
	}

	// The failed write must not leave a visible artifact behind.
	if _, err := os.Stat(filepath.Join(root, "daily", "x.db")); !os.IsNotExist(err) {
		t.Error("artifact exists after failed Put()")
	}
}

func TestFileSystemVaultGetMissing(t *testing.T) {
	v, err := vault.NewFileSystemVault("offsite", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	var out bytes.Buffer
	if err := v.Get("daily/absent.db", &out); err == nil {
		t.Error("Get() error = nil for missing artifact, want error")
	}
}

func TestFileSystemVaultList(t *testing.T) {
	v, err := vault.NewFileSystemVault("offsite", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	for _, key := range []string{"daily/b.db", "daily/a.db", "exports/e.json"} {
		if err := v.Put(key, strings.NewReader("x"), 1); err != nil {
			t.Fatalf("Put(%s) error = %v", key, err)
		}
	}

	keys, err := v.List("daily/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 2 || keys[0] != "daily/a.db" || keys[1] != "daily/b.db" {
		t.Errorf("List(daily/) = %v, want [daily/a.db daily/b.db]", keys)
	}

	all, err := v.List("")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List(\"\") returned %d keys, want 3", len(all))
	}
}

func TestFileSystemVaultRejectsEscapingKeys(t *testing.T) {
	v, err := vault.NewFileSystemVault("offsite", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	for _, key := range []string{"", "/etc/passwd", "../outside.db"} {
		if err := v.Put(key, strings.NewReader("x"), 1); err == nil {
			t.Errorf("Put(%q) error = nil, want invalid key error", key)
		}
	}
}

func TestFileSystemVaultValidateSetup(t *testing.T) {
	root := t.TempDir()
	v, err := vault.NewFileSystemVault("offsite", root)
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}
	if err := v.ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}

	if err := os.RemoveAll(root); err != nil {
		t.Fatalf("removing vault root: %v", err)
	}
	if err := v.ValidateSetup(); err == nil {
		t.Error("ValidateSetup() error = nil with missing root, want error")
	}
}
