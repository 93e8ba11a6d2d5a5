package backup

import (
	"context"
	"fmt"
	"os"

	"notetree/internal/tree"
)

// AutoRecover runs the recovery cascade: self-check, Shadow restore, newest
// Daily restore, and finally discard-and-rebuild from the file system. Each
// step is attempted only if the previous one failed, and any successful
// step ends with a fresh Shadow backup. Only an exhausted cascade returns
// an error; everything up to that point is recoverable, and the data lost
// in the worst case is cache-only metadata, never note content.
func (m *Manager) AutoRecover(ctx context.Context) error {
	// A truncated primary next to a stale WAL sidecar would be silently
	// reconstructed from old frames on reopen; drop the sidecars first so
	// the damage stays visible to the cascade.
	if info, err := os.Stat(m.store.Path()); err != nil || info.Size() == 0 {
		os.Remove(m.store.WALPath())
		os.Remove(m.store.Path() + "-shm")
	}

	// Drop pooled connections so the check sees the file as it is on
	// disk, not through pages cached before the corruption happened.
	if err := m.store.Reopen(); err != nil {
		m.logger.Warn("could not reopen store before recovery", "error", err)
	}

	checkErr := m.VerifyIntegrity()
	if checkErr == nil {
		m.logger.Info("store healthy, no recovery needed")
		return nil
	}
	m.logger.Warn("store failed integrity check, starting recovery cascade", "error", checkErr)

	if err := m.recoverFromShadow(); err != nil {
		m.logger.Warn("shadow recovery failed", "error", err)
	} else {
		m.logger.Info("store recovered from shadow backup")
		m.freshShadow()
		return nil
	}

	if err := m.recoverFromNewestDaily(); err != nil {
		m.logger.Warn("daily recovery failed", "error", err)
	} else {
		m.logger.Info("store recovered from daily backup")
		m.freshShadow()
		return nil
	}

	if err := m.rebuildFromScratch(ctx); err != nil {
		return fmt.Errorf("recovery cascade exhausted: %w", err)
	}
	m.logger.Info("store rebuilt from file system")
	m.freshShadow()
	return nil
}

func (m *Manager) recoverFromShadow() error {
	shadow := m.shadowPath()
	if _, err := os.Stat(shadow); err != nil {
		return fmt.Errorf("no shadow backup: %w", err)
	}
	return m.Restore(shadow)
}

func (m *Manager) recoverFromNewestDaily() error {
	infos, err := m.List()
	if err != nil {
		return err
	}
	// List is newest-first, so the first daily is the most recent.
	for _, info := range infos {
		if info.Type == tree.BackupDaily {
			return m.Restore(info.Path)
		}
	}
	return fmt.Errorf("no daily backups available")
}

// rebuildFromScratch is the last resort: the corrupted store files are
// discarded entirely, a fresh schema is initialized, and the whole tree is
// rebuilt from the file system. Pins, sort order and custom properties are
// lost; note content is not, because it never lived in the cache.
func (m *Manager) rebuildFromScratch(ctx context.Context) error {
	if err := m.store.DiscardFiles(); err != nil {
		return fmt.Errorf("discarding corrupted store: %w", err)
	}
	if err := m.store.Reopen(); err != nil {
		return fmt.Errorf("opening fresh store: %w", err)
	}
	if err := m.schema.Initialize(); err != nil {
		return fmt.Errorf("initializing fresh schema: %w", err)
	}

	count, err := m.repo.RebuildFromFileSystem(ctx, m.docRoot, nil)
	if err != nil {
		return fmt.Errorf("rebuilding from file system: %w", err)
	}
	m.logger.Info("fresh store populated", "nodes", count)
	return nil
}

// freshShadow takes a new Shadow backup after recovery. Failure here is
// logged, not returned: the store itself just came back healthy.
func (m *Manager) freshShadow() {
	if _, err := m.Create(tree.BackupShadow); err != nil {
		m.logger.Warn("could not refresh shadow backup after recovery", "error", err)
	}
}
