//go:build !unix

package fs

import (
	"io/fs"
	"time"
)

func accessTime(info fs.FileInfo, fallback time.Time) time.Time {
	return fallback
}
