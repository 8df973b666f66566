package fs

import (
	"errors"
	"os"
	"syscall"

	"github.com/winfsp/cgofuse/fuse"
)

// errno translates a Go error from the backend into the negated errno
// the host expects, preserving the underlying OS error where one is
// present.
func errno(err error) int {
	if err == nil {
		return 0
	}
	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		return -int(sysErr)
	}
	switch {
	case os.IsNotExist(err):
		return -fuse.ENOENT
	case os.IsPermission(err):
		return -fuse.EACCES
	case os.IsExist(err):
		return -fuse.EEXIST
	}
	return -fuse.EIO
}
