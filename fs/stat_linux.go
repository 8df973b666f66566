//go:build linux

package fs

import (
	"os"
	"syscall"
	"time"

	"github.com/winfsp/cgofuse/fuse"
)

func statTimes(fi os.FileInfo) (atime, mtime, ctime time.Time) {
	mtime = fi.ModTime()
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		atime = time.Unix(st.Atim.Sec, st.Atim.Nsec)
		ctime = time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
		return
	}
	return mtime, mtime, mtime
}

func fillSys(fi os.FileInfo, stat *fuse.Stat_t) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return
	}
	stat.Uid = st.Uid
	stat.Gid = st.Gid
	stat.Nlink = uint32(st.Nlink)
	stat.Ino = st.Ino
	stat.Dev = st.Dev
}
