package encryption_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"notetree/internal/config"
	"notetree/internal/encryption"
)

func newAgeEncryptor(t *testing.T) *encryption.AgeEncryptor {
	t.Helper()
	dir := t.TempDir()
	return encryption.NewAgeEncryptor(config.EncryptionConfig{
		PublicKeyPath:  filepath.Join(dir, "keys", "notetree.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "notetree.key"),
	})
}

func TestAgeEncryptorRoundTrip(t *testing.T) {
	enc := newAgeEncryptor(t)

	if enc.IsConfigured() {
		t.Fatal("IsConfigured() = true before Setup()")
	}
	if err := enc.Setup("correct horse"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !enc.IsConfigured() {
		t.Fatal("IsConfigured() = false after Setup()")
	}

	plaintext := []byte("backup artifact contents")
	var ciphertext bytes.Buffer
	if err := enc.Encrypt(bytes.NewReader(plaintext), &ciphertext); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if bytes.Contains(ciphertext.Bytes(), plaintext) {
		t.Error("ciphertext contains plaintext")
	}

	decCtx, err := enc.Unlock("correct horse")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	var decrypted bytes.Buffer
	if err := decCtx.Decrypt(bytes.NewReader(ciphertext.Bytes()), &decrypted); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(decrypted.Bytes(), plaintext) {
		t.Errorf("Decrypt() = %q, want %q", decrypted.Bytes(), plaintext)
	}
}

func TestAgeEncryptorWrongPassphrase(t *testing.T) {
	enc := newAgeEncryptor(t)
	if err := enc.Setup("right"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	if _, err := enc.Unlock("wrong"); err == nil {
		t.Error("Unlock() error = nil with wrong passphrase, want error")
	}
}

func TestAgeEncryptorEncryptWithoutSetup(t *testing.T) {
	enc := newAgeEncryptor(t)

	var out bytes.Buffer
	if err := enc.Encrypt(bytes.NewReader([]byte("x")), &out); err == nil {
		t.Error("Encrypt() error = nil without key material, want error")
	}
}
