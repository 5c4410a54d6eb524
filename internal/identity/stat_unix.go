//go:build unix

package identity

import (
	"os"
	"syscall"
)

// statExtra extracts inode, device and ctime from the platform stat data.
func statExtra(info os.FileInfo) (ino, dev uint64, ctime int64) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, 0
	}
	return uint64(stat.Ino), uint64(stat.Dev), int64(stat.Ctim.Sec)
}
