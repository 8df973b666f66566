//go:build windows

package fs

import (
	"os"
	"syscall"
	"time"

	"github.com/winfsp/cgofuse/fuse"
)

func statTimes(fi os.FileInfo) (atime, mtime, ctime time.Time) {
	mtime = fi.ModTime()
	if st, ok := fi.Sys().(*syscall.Win32FileAttributeData); ok {
		atime = time.Unix(0, st.LastAccessTime.Nanoseconds())
		ctime = time.Unix(0, st.CreationTime.Nanoseconds())
		return
	}
	return mtime, mtime, mtime
}

// fillSys widens the permission bits so the host exposes full access;
// NTFS ACLs cannot be translated into the POSIX bits faithfully.
func fillSys(fi os.FileInfo, stat *fuse.Stat_t) {
	stat.Mode |= 0o777
	if st, ok := fi.Sys().(*syscall.Win32FileAttributeData); ok {
		stat.Birthtim = fuse.NewTimespec(time.Unix(0, st.CreationTime.Nanoseconds()))
	}
}
