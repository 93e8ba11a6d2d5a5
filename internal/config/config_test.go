package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_ReadWrite(t *testing.T) {
	t.Run("round-trips a config", func(t *testing.T) {
		cfg := NewConfig("/home/user/docs", "/home/user/.local/share/notetree")
		cfg.Vault = VaultConfig{Type: "filesystem", Name: "offsite", FSVaultRoot: "/mnt/backup"}

		var buf bytes.Buffer
		m := &Manager{}
		if err := m.Write(&buf, cfg); err != nil {
			t.Fatalf("Write() error = %v", err)
		}

		got, err := m.Read(&buf)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}

		if got.Documents.Root != cfg.Documents.Root {
			t.Errorf("Documents.Root = %q, want %q", got.Documents.Root, cfg.Documents.Root)
		}
		if got.Backups.DailyRetention != 7 {
			t.Errorf("Backups.DailyRetention = %d, want 7", got.Backups.DailyRetention)
		}
		if got.Vault.FSVaultRoot != "/mnt/backup" {
			t.Errorf("Vault.FSVaultRoot = %q, want /mnt/backup", got.Vault.FSVaultRoot)
		}
		if len(got.Documents.Extensions) != 3 {
			t.Errorf("Documents.Extensions = %v, want 3 entries", got.Documents.Extensions)
		}
	})

	t.Run("rejects malformed toml", func(t *testing.T) {
		m := &Manager{}
		if _, err := m.Read(strings.NewReader("base_dir = [broken")); err == nil {
			t.Error("Read() error = nil, want error")
		}
	})
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig("/docs", "/base")

	if cfg.StorePath() != filepath.Join("/base", "data", "tree_cache.db") {
		t.Errorf("StorePath() = %q", cfg.StorePath())
	}
	if cfg.Backups.PurgeRetentionDays != 30 {
		t.Errorf("PurgeRetentionDays = %d, want 30", cfg.Backups.PurgeRetentionDays)
	}
	if cfg.LogDir != filepath.Join("/base", "log") {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
}

func TestInit(t *testing.T) {
	t.Run("creates a new config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "sub", "notetree.toml")

		if err := Init(path, NewConfig("/docs", dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Errorf("config file not created: %v", err)
		}
	})

	t.Run("refuses to overwrite an existing file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "notetree.toml")

		if err := Init(path, NewConfig("/docs", dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if err := Init(path, NewConfig("/docs", dir)); err == nil {
			t.Error("second Init() error = nil, want error")
		}
	})
}
