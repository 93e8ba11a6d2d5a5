package vault_test

import (
	"bytes"
	"strings"
	"testing"

	"notetree/internal/vault"
)

func TestMemoryVaultRoundTrip(t *testing.T) {
	v := vault.NewMemoryVault("test")

	data := []byte("artifact")
	if err := v.Put("daily/a.db", bytes.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	var out bytes.Buffer
	if err := v.Get("daily/a.db", &out); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.Equal(out.Bytes(), data) {
		t.Errorf("Get() = %q, want %q", out.Bytes(), data)
	}
}

func TestMemoryVaultSizeMismatch(t *testing.T) {
	v := vault.NewMemoryVault("test")
	if err := v.Put("k", strings.NewReader("abc"), 2); err == nil {
		t.Error("Put() error = nil with wrong size, want mismatch error")
	}
}

func TestMemoryVaultList(t *testing.T) {
	v := vault.NewMemoryVault("test")
	for _, key := range []string{"daily/b.db", "daily/a.db", "manual_1.db"} {
		if err := v.Put(key, strings.NewReader("x"), 1); err != nil {
			t.Fatalf("Put(%s) error = %v", key, err)
		}
	}

	keys, err := v.List("daily/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 2 || keys[0] != "daily/a.db" {
		t.Errorf("List(daily/) = %v, want sorted daily keys", keys)
	}
}

func TestMemoryVaultGetMissing(t *testing.T) {
	v := vault.NewMemoryVault("test")
	var out bytes.Buffer
	if err := v.Get("absent", &out); err == nil {
		t.Error("Get() error = nil for missing artifact, want error")
	}
}
