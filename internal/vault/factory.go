package vault

import (
	"context"
	"fmt"

	"notetree/internal/config"
	"notetree/internal/tree"
)

// NewVaultFromConfig creates a Vault implementation based on the vault
// config type. Returns (nil, nil) when no vault is configured, which
// disables offsite replication.
func NewVaultFromConfig(ctx context.Context, cfg config.VaultConfig) (tree.Vault, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "memory":
		return NewMemoryVault(cfg.Name), nil
	case "s3":
		return NewS3Vault(ctx, cfg.Name, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey)
	case "filesystem":
		if cfg.FSVaultRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_vault_root to be set")
		}
		return NewFileSystemVault(cfg.Name, cfg.FSVaultRoot)
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
