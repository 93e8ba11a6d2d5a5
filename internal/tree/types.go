package tree

import "time"

// BackupType identifies the tier a backup belongs to.
type BackupType string

const (
	BackupShadow BackupType = "shadow" // continuously refreshed single-file mirror
	BackupDaily  BackupType = "daily"  // timestamped, N most recent retained
	BackupManual BackupType = "manual" // operator-triggered, retained indefinitely
	BackupExport BackupType = "export" // engine-independent JSON + text dump
)

// BackupInfo describes one available recovery point. It is derived by
// listing the backup directory, never persisted as domain data.
type BackupInfo struct {
	Path      string
	Type      BackupType
	CreatedAt time.Time
	SizeBytes int64
}

// HealthReport is a structured snapshot of the cache's condition.
type HealthReport struct {
	IsCorrupted    bool
	TotalNodes     int
	DeletedNodes   int
	OrphanedNodes  int
	StoreSizeBytes int64
	WALSizeBytes   int64
	SchemaCurrent  bool
	CheckedAt      time.Time
}

// MigrationStatus reports where the one-time legacy import stands.
type MigrationStatus string

const (
	MigrationNotNeeded MigrationStatus = "not_needed"
	MigrationPending   MigrationStatus = "pending"
	MigrationCompleted MigrationStatus = "completed"
	MigrationFailed    MigrationStatus = "failed"
)

// MigrationResult summarizes a legacy import run.
type MigrationResult struct {
	Success            bool
	CategoriesFound    int
	NotesFound         int
	NodesInserted      int
	LegacyItemsMerged  int
	LegacyItemsDropped int
	Message            string
	Duration           time.Duration
}

// RebuildProgress is reported periodically during a filesystem rebuild.
type RebuildProgress struct {
	Discovered int    // nodes discovered so far
	Inserted   int    // nodes written so far (0 during the scan phase)
	Current    string // path being visited
}

// ProgressFunc receives rebuild progress updates. May be nil.
type ProgressFunc func(RebuildProgress)
