package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - NOTETREE_CONFIG_PATH: config file location (default: ~/.config/notetree.toml)
//   - NOTETREE_HOME: base directory for notetree data (default: ~/.local/share/notetree)
//   - NOTETREE_DOCUMENTS: document root (default: ~/Documents/notes)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	docRoot, err := getDocumentRoot()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path":   configPath,
		"base_dir":      baseDir,
		"log_dir":       filepath.Join(baseDir, "log"),
		"document_root": docRoot,
	}, nil
}

// getConfigPath returns the config file path, checking NOTETREE_CONFIG_PATH
// first, then falling back to the default ~/.config/notetree.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("NOTETREE_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "notetree.toml"), nil
}

// getBaseDir returns the base directory for notetree data, checking
// NOTETREE_HOME first, then falling back to the XDG default
// ~/.local/share/notetree.
func getBaseDir() (string, error) {
	if path := os.Getenv("NOTETREE_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "notetree"), nil
}

// getDocumentRoot returns the document tree root, checking
// NOTETREE_DOCUMENTS first.
func getDocumentRoot() (string, error) {
	if path := os.Getenv("NOTETREE_DOCUMENTS"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, "Documents", "notes"), nil
}
