package fs

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/winfsp/cgofuse/fuse"
)

// SymlinkPolicy selects how symlink requests are materialized on
// hosts that may not allow real symlinks.
type SymlinkPolicy string

const (
	// PolicyRealSymlink creates a real OS symlink.
	PolicyRealSymlink SymlinkPolicy = "real_symlink"
	// PolicyError fails symlink creation with ENOTSUP.
	PolicyError SymlinkPolicy = "error"
	// PolicySkip reports success without creating an artifact and
	// neutralizes the follow-up rename.
	PolicySkip SymlinkPolicy = "skip"
	// PolicyCopy copies the target's bytes and metadata instead.
	PolicyCopy SymlinkPolicy = "copy"
	// PolicyCreateLnkfile fabricates a Windows shortcut and appends
	// ".lnk" on the follow-up rename.
	PolicyCreateLnkfile SymlinkPolicy = "create_lnkfile"
)

// ParseSymlinkPolicy validates a policy name from configuration.
func ParseSymlinkPolicy(name string) (SymlinkPolicy, bool) {
	switch SymlinkPolicy(name) {
	case PolicyRealSymlink, PolicyError, PolicySkip, PolicyCopy, PolicyCreateLnkfile:
		return SymlinkPolicy(name), true
	}
	return "", false
}

// Symlink creates a link-like object for newpath pointing at target,
// according to the mount's policy.
func (f *FS) Symlink(target string, newpath string) (errc int) {
	defer f.trace("Symlink", newpath, target)(&errc)
	release := f.gate.acquire(newpath)
	defer release()

	switch f.policy {
	case PolicyError:
		return -fuse.ENOTSUP

	case PolicySkip:
		f.renameExcludedSources = append(f.renameExcludedSources, newpath)
		return 0

	case PolicyCopy:
		srcRight, err := f.rightPath(target)
		if err != nil {
			return errno(err)
		}
		dstRight, err := f.rightPath(newpath)
		if err != nil {
			return errno(err)
		}
		return errno(copyFileWithMeta(srcRight, dstRight))

	case PolicyCreateLnkfile:
		stored := target
		if strings.HasPrefix(target, "/") {
			stored = f.mountpoint + string(os.PathSeparator) + strings.TrimPrefix(target, "/")
		}
		var st fuse.Stat_t
		if errc := f.Getattr(target, &st, ^uint64(0)); errc != 0 {
			return errc
		}
		f.renameAppendLnk = append(f.renameAppendLnk, newpath)
		right, err := f.rightPath(newpath)
		if err != nil {
			return errno(err)
		}
		dir := st.Mode&fuse.S_IFMT == fuse.S_IFDIR
		return errno(f.codec.Encode(right, stored, dir, st.Size))
	}

	// real_symlink
	right, err := f.rightPath(newpath)
	if err != nil {
		return errno(err)
	}
	return errno(os.Symlink(target, right))
}

// Readlink reads the target of a symlink. Under the lnk policy the
// stored shortcut target is decoded, and targets inside this mount
// are rewritten relative to the mount root.
func (f *FS) Readlink(path string) (errc int, target string) {
	defer f.trace("Readlink", path)(&errc)

	if f.policy == PolicyCreateLnkfile {
		right, err := f.rightPath(path + ".lnk")
		if err != nil {
			return errno(err), ""
		}
		stored, derr := f.codec.Decode(right)
		if derr != nil {
			return errno(derr), ""
		}
		if f.mountpoint != "" && strings.HasPrefix(stored, f.mountpoint) {
			rel := strings.TrimPrefix(stored, f.mountpoint)
			rel = strings.ReplaceAll(rel, "\\", "/")
			if !strings.HasPrefix(rel, "/") {
				rel = "/" + rel
			}
			return 0, rel
		}
		return 0, stored
	}

	right, err := f.rightPath(path)
	if err != nil {
		return errno(err), ""
	}
	if !lexists(right) {
		return -fuse.ENOENT, ""
	}
	link, lerr := os.Readlink(right)
	if lerr != nil {
		return errno(lerr), ""
	}
	return 0, link
}

// consumeRenameExcluded removes path from the skip-policy source list
// and reports whether it was present.
func (f *FS) consumeRenameExcluded(path string) bool {
	for i, p := range f.renameExcludedSources {
		if p == path {
			f.renameExcludedSources = append(f.renameExcludedSources[:i], f.renameExcludedSources[i+1:]...)
			return true
		}
	}
	return false
}

// consumeRenameAppendLnk removes path from the lnk-policy source list
// and reports whether it was present.
func (f *FS) consumeRenameAppendLnk(path string) bool {
	for i, p := range f.renameAppendLnk {
		if p == path {
			f.renameAppendLnk = append(f.renameAppendLnk[:i], f.renameAppendLnk[i+1:]...)
			return true
		}
	}
	return false
}

// copyFileWithMeta copies file bytes, mode and times, creating the
// destination's parent directory if needed.
func copyFileWithMeta(src, dst string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o777); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	atime, mtime, _ := statTimes(fi)
	return os.Chtimes(dst, atime, mtime)
}
