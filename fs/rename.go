package fs

import (
	"io"
	"os"
	pathpkg "path"
	"path/filepath"
	"strings"
	"time"

	"github.com/winfsp/cgofuse/fuse"
)

// savedTimes records a file's pre-rename access and modification
// times so they can be re-applied to the moved copy.
type savedTimes struct {
	atime time.Time
	mtime time.Time
}

// Rename moves old to new, possibly across backends and possibly
// recursively, while keeping open handles usable. Open descriptors
// under either tree are quiesced with their seek positions recorded,
// the tree is moved (native rename on the same backend, 4 KiB
// streaming otherwise), survivors are swept, and the quiesced handles
// are reopened at their new location with seek positions restored.
func (f *FS) Rename(oldpath string, newpath string) (errc int) {
	defer f.trace("Rename", oldpath, newpath)(&errc)
	release := f.gate.acquire(oldpath)
	defer release()

	// A skip-policy symlink created no artifact; the follow-up
	// rename must consume the marker and clear the destination.
	if f.consumeRenameExcluded(oldpath) {
		f.unlink(newpath)
		return 0
	}
	// A lnk-policy symlink lives under its artifact name.
	if f.consumeRenameAppendLnk(oldpath) {
		f.unlink(newpath)
		newpath = newpath + ".lnk"
	}

	if ok, err := f.canAccess(oldpath, accessRead); err != nil || !ok {
		return -fuse.ENOENT
	}
	if ok, err := f.canAccess(newpath, accessRead); err == nil && ok {
		if !f.overwriteRenameDest && !strings.Contains(oldpath, "fuse_hidden") {
			return -fuse.EEXIST
		}
	}

	oldPrefix, err := f.rightPath(oldpath)
	if err != nil {
		return errno(err)
	}

	// Quiesce: every handle under either tree is closed with its
	// seek position recorded. Only handles under the source are
	// reopened afterwards; the destination's are gone with the
	// files they pointed at.
	quiesced := f.handles.QuiesceUnder(oldPrefix)
	if newRight, nerr := f.rightPath(newpath); nerr == nil && lexists(newRight) {
		f.handles.QuiesceUnder(newRight)
	}

	saved := make(map[string]savedTimes)
	if errc := f.moveTree(oldpath, newpath, saved); errc != 0 {
		return errc
	}
	f.sweep(oldpath)

	newPrefix, err := f.rightPath(newpath)
	if err != nil {
		return errno(err)
	}
	for _, q := range quiesced {
		np := strings.Replace(q.path, oldPrefix, newPrefix, 1)
		file, oerr := reopenNative(np)
		if oerr != nil {
			return errno(oerr)
		}
		if _, serr := file.Seek(q.pos, io.SeekStart); serr != nil {
			file.Close()
			return errno(serr)
		}
		f.handles.Restore(q.id, np, file)
	}

	for logical, ts := range saved {
		right, rerr := f.rightPath(logical)
		if rerr != nil {
			continue
		}
		_ = os.Chtimes(right, ts.atime, ts.mtime)
	}
	return 0
}

// moveTree walks the source in the logical namespace and places each
// entry at its destination, letting the resolver decide which backend
// every new name belongs to.
func (f *FS) moveTree(old, new string, saved map[string]savedTimes) int {
	var st fuse.Stat_t
	if errc := f.Getattr(old, &st, ^uint64(0)); errc != 0 {
		return errc
	}

	switch st.Mode & fuse.S_IFMT {
	case fuse.S_IFDIR:
		if errc := f.mkdir(new, st.Mode&0o777); errc != 0 && errc != -fuse.EEXIST {
			return errc
		}
		for _, name := range f.readdirNames(old) {
			errc := f.moveTree(pathpkg.Join(old, name), pathpkg.Join(new, name), saved)
			if errc != 0 {
				return errc
			}
		}
		f.rmdir(old)
		return 0

	case fuse.S_IFLNK:
		srcRight, err := f.rightPath(old)
		if err != nil {
			return errno(err)
		}
		dstRight, err := f.rightPath(new)
		if err != nil {
			return errno(err)
		}
		if lexists(dstRight) {
			if rerr := os.Remove(dstRight); rerr != nil {
				return errno(rerr)
			}
		}
		target, lerr := os.Readlink(srcRight)
		if lerr != nil {
			return errno(lerr)
		}
		if err := f.mirrorMakedirs(filepath.Dir(dstRight)); err != nil {
			return errno(err)
		}
		return errno(os.Symlink(target, dstRight))
	}

	// Regular file.
	saved[new] = savedTimes{atime: st.Atim.Time(), mtime: st.Mtim.Time()}
	srcRight, err := f.rightPath(old)
	if err != nil {
		return errno(err)
	}
	dstRight, err := f.rightPath(new)
	if err != nil {
		return errno(err)
	}
	if err := f.mirrorMakedirs(filepath.Dir(dstRight)); err != nil {
		return errno(err)
	}
	if f.onCache(srcRight) == f.onCache(dstRight) {
		return errno(renameNative(srcRight, dstRight))
	}
	if err := streamCopy(srcRight, dstRight, os.FileMode(st.Mode&0o777)); err != nil {
		return errno(err)
	}
	_ = os.Chtimes(dstRight, st.Atim.Time(), st.Mtim.Time())
	return 0
}

// sweep removes whatever survived the move under the source's
// physical trees: symlinks are copied rather than moved, and a
// failure mid-recursion can leave partial state behind.
func (f *FS) sweep(old string) {
	for _, phys := range []string{f.fullPath(old), f.cachePath(old)} {
		if lexists(phys) {
			_ = os.RemoveAll(phys)
		}
	}
}

// streamCopy copies src to dst in 4 KiB chunks.
func streamCopy(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	buf := make([]byte, 4096)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				return werr
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			return rerr
		}
	}
	return out.Close()
}
