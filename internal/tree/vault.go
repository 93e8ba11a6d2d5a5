package tree

import "io"

// Vault is an offsite storage backend for backup artifacts. All operations
// stream through io.Reader/io.Writer so large backup files never have to be
// held in memory.
type Vault interface {
	// Put stores an artifact under key. size is the number of bytes that
	// will be read from r. Storing the same key twice overwrites it.
	Put(key string, r io.Reader, size int64) error

	// Get retrieves the artifact stored under key and writes it to w.
	Get(key string, w io.Writer) error

	// List returns the keys currently stored under the given prefix.
	List(prefix string) ([]string, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}

// Encryptor encrypts backup artifacts before they leave the machine.
type Encryptor interface {
	// Setup generates and stores key material, protected by the passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock makes decryption available, e.g. by decrypting a private key
	// with the passphrase.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether key material exists.
	IsConfigured() bool
}

// DecryptionContext holds unlocked key material for decrypting artifacts.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
