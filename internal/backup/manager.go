// Package backup implements the multi-tier backup, integrity and recovery
// subsystem. The cache store is disposable; this package exists so losing
// it costs at most the organizational metadata added since the last
// snapshot, and usually nothing at all.
package backup

import (
	"bytes"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for read-only verification

	"notetree/internal/database"
	"notetree/internal/tree"
)

const (
	shadowFileName  = "tree_shadow.db"
	timestampLayout = "20060102_150405"
)

// Manager snapshots the store, verifies integrity, and restores or rebuilds
// on corruption. It owns the backup directory layout:
//
//	<dir>/
//	  shadow/tree_shadow.db        single rolling file
//	  daily/tree_daily_<ts>.db     N most recent retained
//	  exports/tree_export_<ts>.*   portable JSON + text listing
//	  manual_<ts>.db               safety snapshots, kept indefinitely
//
// Scheduling is the caller's concern: the manager exposes operations, never
// a clock or a goroutine of its own.
type Manager struct {
	store     *database.Store
	schema    *database.SchemaManager
	repo      *database.Repository
	vault     tree.Vault
	encryptor tree.Encryptor
	dir       string
	docRoot   string
	retention int
	logger    tree.Logger
	clock     tree.Clock
}

// NewManager creates a backup Manager. vault may be nil, which disables
// offsite replication; encryptor is consulted only when a vault is set.
func NewManager(store *database.Store, schema *database.SchemaManager, repo *database.Repository,
	vault tree.Vault, encryptor tree.Encryptor, dir, docRoot string, retention int,
	logger tree.Logger, clock tree.Clock) *Manager {
	return &Manager{
		store:     store,
		schema:    schema,
		repo:      repo,
		vault:     vault,
		encryptor: encryptor,
		dir:       dir,
		docRoot:   docRoot,
		retention: retention,
		logger:    logger,
		clock:     clock,
	}
}

// Create takes a backup of the given type. The write-ahead log is
// checkpointed first so the primary file reflects every committed write,
// the copy is verified before it counts, and a copy that fails verification
// is deleted. Daily backups are pruned to the retention count afterwards.
func (m *Manager) Create(typ tree.BackupType) (*tree.BackupInfo, error) {
	if typ == tree.BackupExport {
		return m.Export("")
	}

	dest, err := m.destPath(typ)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	if _, err := m.store.DB().Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, fmt.Errorf("checkpointing write-ahead log: %w", err)
	}

	if err := copyFile(m.store.Path(), dest); err != nil {
		return nil, fmt.Errorf("copying store: %w", err)
	}

	if err := verifyStoreFile(dest); err != nil {
		os.Remove(dest)
		return nil, fmt.Errorf("backup failed verification: %w", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("reading backup: %w", err)
	}

	m.logger.Info("backup created", "type", typ, "path", dest, "bytes", info.Size())

	if typ == tree.BackupDaily {
		if err := m.pruneDaily(); err != nil {
			m.logger.Warn("daily backup pruning failed", "error", err)
		}
		m.replicate("daily/"+filepath.Base(dest), dest)
	}

	return &tree.BackupInfo{
		Path:      dest,
		Type:      typ,
		CreatedAt: m.clock.Now(),
		SizeBytes: info.Size(),
	}, nil
}

// Restore replaces the live store with the backup at path. The candidate is
// verified first; the current store, if still valid, is kept as a Manual
// safety snapshot; then the pool is dropped and the file swapped in with
// copy-to-temp-then-rename.
func (m *Manager) Restore(path string) error {
	if err := verifyStoreFile(path); err != nil {
		return fmt.Errorf("backup candidate rejected: %w", err)
	}

	if err := m.safetySnapshot(); err != nil {
		// The store being restored over may already be corrupt; losing
		// the safety snapshot is not a reason to refuse the restore.
		m.logger.Warn("could not take safety snapshot before restore", "error", err)
	}

	tmp := m.store.Path() + ".restore"
	if err := copyFile(path, tmp); err != nil {
		return fmt.Errorf("staging restore copy: %w", err)
	}

	if err := m.store.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing store pool: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(m.store.Path() + suffix); err != nil && !os.IsNotExist(err) {
			os.Remove(tmp)
			return fmt.Errorf("removing stale sidecar: %w", err)
		}
	}
	if err := os.Rename(tmp, m.store.Path()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("swapping in restored store: %w", err)
	}
	if err := m.store.Reopen(); err != nil {
		return fmt.Errorf("reopening restored store: %w", err)
	}

	if err := m.VerifyIntegrity(); err != nil {
		return fmt.Errorf("restored store failed verification: %w", err)
	}

	m.logger.Info("store restored from backup", "backup", path)
	return nil
}

// VerifyIntegrity checks the live store's structural integrity. The
// primary file on disk is checked first: the pool's cached pages and a
// stale WAL sidecar can make a truncated file look healthy from an open
// connection. nil means healthy; any error means the store needs recovery.
func (m *Manager) VerifyIntegrity() error {
	info, err := os.Stat(m.store.Path())
	if err != nil {
		return fmt.Errorf("store file not accessible: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("store file is empty: %s", m.store.Path())
	}
	return verifyConn(m.store.DB())
}

// List enumerates the available recovery points, newest first. The list is
// derived from the backup directory on every call, never cached.
func (m *Manager) List() ([]tree.BackupInfo, error) {
	var infos []tree.BackupInfo

	add := func(path string, typ tree.BackupType) {
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		infos = append(infos, tree.BackupInfo{
			Path:      path,
			Type:      typ,
			CreatedAt: info.ModTime(),
			SizeBytes: info.Size(),
		})
	}

	add(m.shadowPath(), tree.BackupShadow)

	for _, p := range m.glob(filepath.Join(m.dir, "daily", "*.db")) {
		add(p, tree.BackupDaily)
	}
	for _, p := range m.glob(filepath.Join(m.dir, "manual_*.db")) {
		add(p, tree.BackupManual)
	}
	for _, p := range m.glob(filepath.Join(m.dir, "exports", "*.json")) {
		add(p, tree.BackupExport)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return infos, nil
}

// Status summarizes the backup subsystem's condition.
type Status struct {
	Healthy        bool      // live store passes integrity verification
	ShadowPresent  bool      // rolling shadow backup exists
	DailyCount     int       // daily backups on disk
	ManualCount    int       // manual safety snapshots on disk
	ExportCount    int       // portable exports on disk
	NewestBackup   time.Time // creation time of the most recent recovery point
	TotalSizeBytes int64     // bytes across all recovery points
}

// Status reports the current backup inventory and live-store health.
func (m *Manager) Status() (*Status, error) {
	infos, err := m.List()
	if err != nil {
		return nil, err
	}

	st := &Status{Healthy: m.VerifyIntegrity() == nil}
	for _, info := range infos {
		st.TotalSizeBytes += info.SizeBytes
		if info.CreatedAt.After(st.NewestBackup) {
			st.NewestBackup = info.CreatedAt
		}
		switch info.Type {
		case tree.BackupShadow:
			st.ShadowPresent = true
		case tree.BackupDaily:
			st.DailyCount++
		case tree.BackupManual:
			st.ManualCount++
		case tree.BackupExport:
			st.ExportCount++
		}
	}
	return st, nil
}

// safetySnapshot writes the live store to a Manual backup via VACUUM INTO,
// which produces a compact, checkpointed copy in one statement.
func (m *Manager) safetySnapshot() error {
	dest := filepath.Join(m.dir, "manual_"+m.clock.Now().Format(timestampLayout)+".db")
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}
	// VACUUM INTO refuses to overwrite; a leftover from a failed earlier
	// run within the same clock second must go first.
	os.Remove(dest)

	quoted := strings.ReplaceAll(dest, "'", "''")
	if _, err := m.store.DB().Exec("VACUUM INTO '" + quoted + "'"); err != nil {
		return fmt.Errorf("vacuuming into safety snapshot: %w", err)
	}
	m.logger.Info("safety snapshot taken", "path", dest)
	return nil
}

// pruneDaily removes daily backups beyond the retention count, oldest
// first. Timestamped names sort chronologically, so lexical order is age
// order.
func (m *Manager) pruneDaily() error {
	paths := m.glob(filepath.Join(m.dir, "daily", "*.db"))
	sort.Strings(paths)

	if m.retention <= 0 || len(paths) <= m.retention {
		return nil
	}
	for _, p := range paths[:len(paths)-m.retention] {
		if err := os.Remove(p); err != nil {
			return fmt.Errorf("removing expired daily backup: %w", err)
		}
		m.logger.Debug("expired daily backup removed", "path", p)
	}
	return nil
}

// replicate copies a backup artifact to the offsite vault, encrypting it
// first when key material is configured. Replication failures are logged
// and never fail the backup that triggered them.
func (m *Manager) replicate(key, path string) {
	if m.vault == nil {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		m.logger.Warn("offsite replication skipped", "key", key, "error", err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		m.logger.Warn("offsite replication skipped", "key", key, "error", err)
		return
	}
	var src io.Reader = f
	size := info.Size()

	if m.encryptor != nil && m.encryptor.IsConfigured() {
		var buf bytes.Buffer
		if err := m.encryptor.Encrypt(f, &buf); err != nil {
			m.logger.Warn("offsite replication failed", "key", key, "error", err)
			return
		}
		key += ".age"
		size = int64(buf.Len())
		src = &buf
	}

	if err := m.vault.Put(key, src, size); err != nil {
		m.logger.Warn("offsite replication failed", "key", key, "error", err)
		return
	}
	m.logger.Info("backup replicated offsite", "key", key)
}

func (m *Manager) destPath(typ tree.BackupType) (string, error) {
	ts := m.clock.Now().Format(timestampLayout)
	switch typ {
	case tree.BackupShadow:
		return m.shadowPath(), nil
	case tree.BackupDaily:
		return filepath.Join(m.dir, "daily", "tree_daily_"+ts+".db"), nil
	case tree.BackupManual:
		return filepath.Join(m.dir, "manual_"+ts+".db"), nil
	default:
		return "", fmt.Errorf("unknown backup type: %s", typ)
	}
}

func (m *Manager) shadowPath() string {
	return filepath.Join(m.dir, "shadow", shadowFileName)
}

func (m *Manager) glob(pattern string) []string {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		m.logger.Warn("listing backups failed", "pattern", pattern, "error", err)
		return nil
	}
	return paths
}

// verifyStoreFile checks a store file on disk without touching the live
// pool: non-empty, structurally intact, and carrying the nodes table. A
// zero-byte file is a valid empty database to SQLite, so the table check is
// what catches truncation.
func verifyStoreFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("store file not accessible: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("store file is empty: %s", path)
	}

	// immutable keeps the read-only probe from materializing -wal/-shm
	// sidecars beside every backup copy.
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&immutable=1")
	if err != nil {
		return fmt.Errorf("opening store file read-only: %w", err)
	}
	defer db.Close()

	return verifyConn(db)
}

// verifyConn runs the structural integrity check and confirms the core
// table exists on an open connection.
func verifyConn(db *sql.DB) error {
	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("running integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	var count int
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'nodes'").Scan(&count); err != nil {
		return fmt.Errorf("probing for nodes table: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("store has no nodes table")
	}
	return nil
}

// copyFile copies src to dst via a temp file in dst's directory, then
// renames, so a half-written destination is never visible.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return err
	}
	success = true
	return nil
}
