package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for notetree.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Documents  DocumentsConfig  `toml:"documents"`
	Store      StoreConfig      `toml:"store"`
	Backups    BackupsConfig    `toml:"backups"`
	Vault      VaultConfig      `toml:"vault"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// DocumentsConfig describes the document root the cache mirrors.
type DocumentsConfig struct {
	// Root is the directory holding the actual note files. It is the
	// durable source of truth; the cache can always be rebuilt from it.
	Root string `toml:"root"`
	// Extensions lists the file extensions recognized as notes.
	Extensions []string `toml:"extensions"`
}

// StoreConfig describes the embedded cache store.
type StoreConfig struct {
	// DataDir holds the primary store file. Should live outside any
	// cloud-synced directory: the WAL must not be synced mid-write.
	DataDir string `toml:"data_dir"`
}

// BackupsConfig describes the multi-tier backup layout.
type BackupsConfig struct {
	Dir                string `toml:"dir"`
	DailyRetention     int    `toml:"daily_retention"`      // N most recent daily backups kept
	PurgeRetentionDays int    `toml:"purge_retention_days"` // soft-deleted rows kept this long
}

// VaultConfig configures the optional offsite replica of backup artifacts.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "", "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3"). Access key and
	// secret are optional; when unset the default AWS credential chain
	// applies.
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used to encrypt
// backup artifacts before offsite replication.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// NewConfig creates a Config with the provided document root and sensible defaults.
func NewConfig(documentRoot, baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Documents: DocumentsConfig{
			Root:       documentRoot,
			Extensions: []string{".md", ".markdown", ".txt"},
		},
		Store: StoreConfig{
			DataDir: filepath.Join(baseDir, "data"),
		},
		Backups: BackupsConfig{
			Dir:                filepath.Join(baseDir, "backups"),
			DailyRetention:     7,
			PurgeRetentionDays: 30,
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "notetree.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "notetree.key"),
		},
	}
}

// StorePath returns the path of the primary store file.
func (c *Config) StorePath() string {
	return filepath.Join(c.Store.DataDir, "tree_cache.db")
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
