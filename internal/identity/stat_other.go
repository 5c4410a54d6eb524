//go:build !unix

package identity

import "os"

func statExtra(_ os.FileInfo) (ino, dev uint64, ctime int64) {
	return 0, 0, 0
}
