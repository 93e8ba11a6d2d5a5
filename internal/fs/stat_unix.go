//go:build unix

package fs

import (
	"io/fs"
	"syscall"
	"time"
)

// accessTime extracts the atime from a FileInfo. Falls back to the given
// time when the platform data is not a *syscall.Stat_t.
func accessTime(info fs.FileInfo, fallback time.Time) time.Time {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return fallback
	}
	return time.Unix(stat.Atim.Sec, stat.Atim.Nsec)
}
