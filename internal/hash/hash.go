// Package hash computes the change-detection fingerprints stored on tree
// nodes. A quick hash covers only the head of the file plus its size, so a
// periodic refresh over thousands of notes stays cheap; the full hash covers
// the whole file and is computed lazily when the quick hash differs.
package hash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"notetree/internal/tree"
)

// quickHashWindow is the number of leading bytes covered by the quick hash.
const quickHashWindow = 64 * 1024

// Algorithm identifies the digest used for both fingerprint tiers.
const Algorithm = "sha256"

// Quick returns the quick fingerprint of the file at path: SHA-256 over the
// first 64 KiB followed by the file size in big-endian. Two files with equal
// quick hashes almost certainly have equal content, but only the full hash
// is conclusive.
func Quick(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file for quick hash: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat file for quick hash: %w", err)
	}

	h := sha256.New()
	if _, err := io.CopyN(h, f, quickHashWindow); err != nil && err != io.EOF {
		return "", fmt.Errorf("reading file for quick hash: %w", err)
	}

	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(info.Size()))
	h.Write(size[:])

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Full returns the SHA-256 of the entire file at path.
func Full(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file for full hash: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("reading file for full hash: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Outdated reports whether a node's stored fingerprint no longer matches
// what a fresh stat of its backing file shows. A node with no stored hash is
// always outdated.
func Outdated(n *tree.Node, info fs.FileInfo) bool {
	if n.QuickHash == "" || n.HashAlgorithm != Algorithm {
		return true
	}
	if info.Size() != n.FileSize {
		return true
	}
	return info.ModTime().Truncate(time.Second).After(n.HashCalculatedAt.Truncate(time.Second))
}
