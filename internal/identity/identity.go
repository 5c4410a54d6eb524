// Package identity derives the composite identity key used to decide
// whether a path's underlying content likely changed between observations.
package identity

import (
	"fmt"
	"os"
)

// Key is the composite fingerprint of a file:
// size, truncated mtime and ctime, inode number and device number.
// Two observations with the same key are assumed to denote the same
// physical content; truncation collisions are an accepted approximation.
type Key string

// FromFileInfo derives the identity key from a stat result. On platforms
// where inode/device/ctime are unavailable the missing parts are zero,
// which degrades the key to a size+mtime fingerprint.
func FromFileInfo(info os.FileInfo) Key {
	ino, dev, ctime := statExtra(info)
	return Key(fmt.Sprintf("%d:%d:%d:%d:%d",
		info.Size(), info.ModTime().Unix(), ctime, ino, dev))
}

// CTime returns the change time from a stat result as Unix seconds,
// falling back to the modification time where change time is
// unavailable.
func CTime(info os.FileInfo) float64 {
	_, _, ctime := statExtra(info)
	if ctime == 0 {
		return float64(info.ModTime().Unix())
	}
	return float64(ctime)
}
