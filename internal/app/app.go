// Package app is the application layer between the CLI and the storage
// engine. It constructs every dependency from config, runs the startup
// sequence (schema, legacy import, integrity check with automatic
// recovery), and manages the store lifecycle on Close.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"notetree/internal/backup"
	"notetree/internal/config"
	"notetree/internal/database"
	"notetree/internal/encryption"
	"notetree/internal/fs"
	"notetree/internal/hash"
	"notetree/internal/legacy"
	"notetree/internal/tree"
	"notetree/internal/vault"
)

// App owns a fully wired storage engine instance.
type App struct {
	cfg      *config.Config
	store    *database.Store
	schema   *database.SchemaManager
	repo     *database.Repository
	backups  *backup.Manager
	importer *legacy.Importer
	vault    tree.Vault
	enc      tree.Encryptor
	logger   tree.Logger
	clock    tree.Clock
	logFile  *os.File
}

// NewApp creates a fully wired App from the given config. operation
// identifies the CLI command being run (e.g. "rebuild", "backup"); it tags
// every log line of this run. The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, operation string) (*App, error) {
	runID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}
	logger.Info("starting", "operation", operation)

	clock := tree.RealClock{}
	idgen := tree.UUIDGenerator{}

	v, err := vault.NewVaultFromConfig(ctx, cfg.Vault)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	store, err := database.Open(cfg.StorePath())
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening store: %w", err)
	}

	scanner := fs.NewScanner(cfg.Documents.Extensions, idgen, clock)
	schema := database.NewSchemaManager(store, logger)
	repo := database.NewRepository(store, tree.NewSemaphoreLock(), scanner, logger, clock, idgen)
	backups := backup.NewManager(store, schema, repo, v, enc,
		cfg.Backups.Dir, cfg.Documents.Root, cfg.Backups.DailyRetention, logger, clock)
	importer := legacy.NewImporter(repo, scanner, cfg.Documents.Root, cfg.Backups.Dir, logger, clock)

	return &App{
		cfg:      cfg,
		store:    store,
		schema:   schema,
		repo:     repo,
		backups:  backups,
		importer: importer,
		vault:    v,
		enc:      enc,
		logger:   logger,
		clock:    clock,
		logFile:  logFile,
	}, nil
}

// Startup brings the store to a usable state: schema at the latest version,
// legacy documents imported, integrity verified (recovering automatically
// when it is not), and a shadow backup present as the first recovery rung.
func (a *App) Startup(ctx context.Context) error {
	if err := a.schema.Initialize(); err != nil {
		a.logger.Warn("schema initialization failed, attempting recovery", "error", err)
		if err := a.backups.AutoRecover(ctx); err != nil {
			return err
		}
	} else if err := a.backups.VerifyIntegrity(); err != nil {
		a.logger.Warn("integrity check failed, attempting recovery", "error", err)
		if err := a.backups.AutoRecover(ctx); err != nil {
			return err
		}
	}

	needed, err := a.importer.IsMigrationNeeded()
	if err != nil {
		return fmt.Errorf("checking legacy migration: %w", err)
	}
	if needed {
		result, err := a.importer.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("legacy migration: %w", err)
		}
		a.logger.Info("legacy migration finished", "message", result.Message)
	}

	status, err := a.backups.Status()
	if err != nil {
		return err
	}
	if !status.ShadowPresent {
		if _, err := a.backups.Create(tree.BackupShadow); err != nil {
			a.logger.Warn("initial shadow backup failed", "error", err)
		}
	}
	return nil
}

// RefreshOutdatedHashes recomputes content hashes for every node whose
// metadata says the file changed since the stored hash. Files that vanished
// from disk are skipped; the next rebuild reconciles those.
func (a *App) RefreshOutdatedHashes(ctx context.Context) (int, error) {
	nodes, err := a.repo.NodesWithOutdatedHash()
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		quick, err := hash.Quick(n.AbsolutePath)
		if err != nil {
			a.logger.Warn("skipping unreadable file during hash refresh", "path", n.DisplayPath, "error", err)
			continue
		}
		full, err := hash.Full(n.AbsolutePath)
		if err != nil {
			a.logger.Warn("skipping unreadable file during hash refresh", "path", n.DisplayPath, "error", err)
			continue
		}
		if err := a.repo.UpdateHash(n.ID, quick, full, hash.Algorithm); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// RegisterMaintenance sets up the standard maintenance jobs on the given
// scheduler. The caller owns the loop that drives it. The integrity check
// is registered first so a damaged store is recovered before the other
// jobs touch it.
func (a *App) RegisterMaintenance(s *Scheduler) {
	s.Schedule("integrity-check", time.Hour, func(ctx context.Context) error {
		if err := a.backups.VerifyIntegrity(); err != nil {
			a.logger.Warn("integrity check failed, recovering", "error", err)
			return a.backups.AutoRecover(ctx)
		}
		return nil
	})
	s.Schedule("daily-backup", 24*time.Hour, func(ctx context.Context) error {
		_, err := a.backups.Create(tree.BackupDaily)
		return err
	})
	s.Schedule("optimize", 24*time.Hour, func(ctx context.Context) error {
		return a.repo.Optimize(ctx, a.cfg.Backups.PurgeRetentionDays)
	})
	s.Schedule("vacuum", 7*24*time.Hour, func(ctx context.Context) error {
		return a.repo.Vacuum(ctx)
	})
	s.Schedule("refresh-metadata", time.Hour, func(ctx context.Context) error {
		_, err := a.repo.RefreshAllMetadata(ctx)
		return err
	})
	s.Schedule("refresh-hashes", time.Hour, func(ctx context.Context) error {
		_, err := a.RefreshOutdatedHashes(ctx)
		return err
	})
}

func (a *App) Config() *config.Config           { return a.cfg }
func (a *App) Repository() *database.Repository { return a.repo }
func (a *App) Backups() *backup.Manager         { return a.backups }
func (a *App) Importer() *legacy.Importer       { return a.importer }
func (a *App) Schema() *database.SchemaManager  { return a.schema }
func (a *App) Vault() tree.Vault                { return a.vault }
func (a *App) Encryptor() tree.Encryptor        { return a.enc }

// NewMaintenanceScheduler returns a scheduler wired to this app's logger
// and clock.
func (a *App) NewMaintenanceScheduler() *Scheduler {
	return NewScheduler(a.logger, a.clock)
}

// Close takes a final shadow backup so the freshest state is the one a
// crash recovers to, then releases the store and the log file.
func (a *App) Close() error {
	var firstErr error

	if err := a.backups.VerifyIntegrity(); err == nil {
		if _, err := a.backups.Create(tree.BackupShadow); err != nil {
			a.logger.Warn("final shadow backup failed", "error", err)
		}
	}

	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
