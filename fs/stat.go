package fs

import (
	"os"

	"github.com/winfsp/cgofuse/fuse"
)

// fillStat populates a host stat structure from an Lstat result.
// Platform-specific fields (owner, inode, birth time, Windows
// permission widening) are layered on by fillSys.
func fillStat(fi os.FileInfo, stat *fuse.Stat_t) {
	*stat = fuse.Stat_t{}
	stat.Mode = fuseFileMode(fi.Mode())
	stat.Size = fi.Size()
	stat.Nlink = 1
	if fi.IsDir() {
		stat.Nlink = 2
	}
	atime, mtime, ctime := statTimes(fi)
	stat.Atim = fuse.NewTimespec(atime)
	stat.Mtim = fuse.NewTimespec(mtime)
	stat.Ctim = fuse.NewTimespec(ctime)
	fillSys(fi, stat)
}

// fuseFileMode converts a Go file mode to host stat mode bits.
func fuseFileMode(m os.FileMode) uint32 {
	mode := uint32(m.Perm())
	switch {
	case m.IsDir():
		mode |= fuse.S_IFDIR
	case m&os.ModeSymlink != 0:
		mode |= fuse.S_IFLNK
	default:
		mode |= fuse.S_IFREG
	}
	return mode
}
