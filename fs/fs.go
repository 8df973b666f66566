// Package fs implements a pass-through filesystem that overlays one
// mount point on two backing directories, routing each path to the
// root or the cache backend according to glob exclusion patterns.
package fs

import (
	"os"
	pathpkg "path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/winfsp/cgofuse/fuse"

	"github.com/excludefs/excludefs/shortcut"
)

// Config carries the immutable mount configuration.
type Config struct {
	// Root is the primary backing directory.
	Root string
	// CacheDir is the backing directory for excluded paths.
	CacheDir string
	// Mountpoint is where the host exposes the unified namespace.
	// Needed to rewrite shortcut targets under the lnk policy.
	Mountpoint string
	// Patterns are the exclusion globs.
	Patterns []string
	// OverwriteRenameDest allows rename to clobber an existing
	// destination.
	OverwriteRenameDest bool
	// SymlinkPolicy selects how symlink requests are materialized.
	SymlinkPolicy SymlinkPolicy
	// Threads must be set when the host delivers concurrent
	// callbacks; it arms the per-path concurrency gate.
	Threads bool
	// Codec encodes and decodes shortcut artifacts for the
	// create_lnkfile policy. Defaults to the ShellLink codec.
	Codec shortcut.Codec
	// Log receives operation traces at debug level. Optional.
	Log *logrus.Logger
	// OnInit runs once the host has finished mounting.
	OnInit func()
}

// FS is the filesystem instance handed to the host.
type FS struct {
	fuse.FileSystemBase

	root       string
	cacheDir   string
	mountpoint string

	classifier *Classifier
	handles    *HandleTable
	gate       *pathGate
	codec      shortcut.Codec

	overwriteRenameDest bool
	policy              SymlinkPolicy

	// Consumed by the rename preconditions; see the symlink adaptor.
	renameExcludedSources []string
	renameAppendLnk       []string

	log    *logrus.Logger
	onInit func()
}

// New creates a filesystem over the two backing directories.
func New(cfg Config) (*FS, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}
	cacheDir, err := filepath.Abs(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	policy := cfg.SymlinkPolicy
	if policy == "" {
		policy = PolicyRealSymlink
	}
	codec := cfg.Codec
	if codec == nil {
		codec = shortcut.ShellLinkCodec{}
	}
	return &FS{
		root:                root,
		cacheDir:            cacheDir,
		mountpoint:          cfg.Mountpoint,
		classifier:          NewClassifier(cfg.Patterns),
		handles:             newHandleTable(),
		gate:                newPathGate(cfg.Threads),
		codec:               codec,
		overwriteRenameDest: cfg.OverwriteRenameDest,
		policy:              policy,
		log:                 cfg.Log,
		onInit:              cfg.OnInit,
	}, nil
}

// Init signals that the host finished mounting.
func (f *FS) Init() {
	if f.onInit != nil {
		f.onInit()
	}
}

// canAccess resolves the path and runs the native access check.
// A missing resolved path is ENOENT, not a failed check.
func (f *FS) canAccess(path string, mask uint32) (bool, error) {
	right, err := f.rightPath(path)
	if err != nil {
		return false, err
	}
	if !lexists(right) {
		return false, os.ErrNotExist
	}
	return nativeAccess(right, mask), nil
}

// Access checks whether the caller may access the path.
func (f *FS) Access(path string, mask uint32) (errc int) {
	defer f.trace("Access", path, mask)(&errc)

	ok, err := f.canAccess(path, mask)
	if err != nil {
		return errno(err)
	}
	if !ok {
		return -fuse.EACCES
	}
	return 0
}

// Getattr gets file attributes. Under the lnk policy a missing literal
// path falls back to its ".lnk" artifact, reported as a symlink.
func (f *FS) Getattr(path string, stat *fuse.Stat_t, fh uint64) (errc int) {
	defer f.trace("Getattr", path)(&errc)

	right, err := f.rightPath(path)
	if err != nil {
		return errno(err)
	}
	fi, lerr := os.Lstat(right)
	if lerr != nil {
		if f.policy == PolicyCreateLnkfile && !strings.HasSuffix(path, ".lnk") {
			if errc := f.Getattr(path+".lnk", stat, fh); errc == 0 {
				stat.Mode = stat.Mode&^uint32(fuse.S_IFMT) | fuse.S_IFLNK
				return 0
			}
		}
		return -fuse.ENOENT
	}
	fillStat(fi, stat)
	return 0
}

// readdirNames returns the union of both backends' entries for a
// logical directory, sorted, without "." and "..". Under the lnk
// policy a trailing ".lnk" is stripped so the namespace appears to
// hold a symlink.
func (f *FS) readdirNames(path string) []string {
	seen := make(map[string]struct{})
	for _, dir := range []string{f.fullPath(path), f.cachePath(path)} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if f.policy == PolicyCreateLnkfile {
				name = strings.TrimSuffix(name, ".lnk")
			}
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Readdir lists a directory as the union of both backends.
func (f *FS) Readdir(path string,
	fill func(name string, stat *fuse.Stat_t, ofst int64) bool,
	ofst int64, fh uint64) (errc int) {
	defer f.trace("Readdir", path)(&errc)

	fill(".", nil, 0)
	fill("..", nil, 0)
	for _, name := range f.readdirNames(path) {
		if !fill(name, nil, 0) {
			break
		}
	}
	return 0
}

// Opendir opens a directory, verifying it exists on either backend.
func (f *FS) Opendir(path string) (errc int, fh uint64) {
	if isDir(f.fullPath(path)) || isDir(f.cachePath(path)) {
		return 0, 0
	}
	return -fuse.ENOENT, ^uint64(0)
}

// Releasedir releases a directory handle.
func (f *FS) Releasedir(path string, fh uint64) int {
	return 0
}

// Open opens a file and returns a new handle ID. Symlinks are followed
// by re-invoking open on the link target; O_CREAT on a missing file
// delegates to Create.
func (f *FS) Open(path string, flags int) (errc int, fh uint64) {
	defer f.trace("Open", path, flags)(&errc)
	release := f.gate.acquire(path)
	defer release()

	right, err := f.rightPath(path)
	if err != nil {
		return errno(err), ^uint64(0)
	}
	if fi, lerr := os.Lstat(right); lerr == nil && fi.Mode()&os.ModeSymlink != 0 {
		errc, target := f.Readlink(path)
		if errc != 0 {
			return errc, ^uint64(0)
		}
		return f.Open(target, flags)
	}
	if lexists(right) {
		file, oerr := openNative(right, flags)
		if oerr != nil {
			return errno(oerr), ^uint64(0)
		}
		return 0, f.handles.Register(right, file, flags)
	}
	if flags&fuse.O_CREAT != 0 {
		return f.create(path, 0o777)
	}
	return -fuse.ENOENT, ^uint64(0)
}

// Create creates a file, mirroring missing parent directories on both
// backends, and returns a new handle ID.
func (f *FS) Create(path string, flags int, mode uint32) (errc int, fh uint64) {
	defer f.trace("Create", path, mode)(&errc)
	release := f.gate.acquire(path)
	defer release()

	return f.create(path, mode)
}

func (f *FS) create(path string, mode uint32) (errc int, fh uint64) {
	right, err := f.rightPath(path)
	if err != nil {
		return errno(err), ^uint64(0)
	}
	if err := f.mirrorMakedirs(filepath.Dir(right)); err != nil {
		return errno(err), ^uint64(0)
	}
	file, cerr := createNative(right, mode)
	if cerr != nil {
		return errno(cerr), ^uint64(0)
	}
	return 0, f.handles.Register(right, file, os.O_RDWR)
}

// Read reads from a file through its handle, seeking to the offset
// before every call so concurrent users of one handle observe a
// linear history.
func (f *FS) Read(path string, buff []byte, ofst int64, fh uint64) (n int) {
	defer f.trace("Read", path, ofst, len(buff))(&n)

	ok, err := f.canAccess(path, accessRead)
	if err != nil {
		return errno(err)
	}
	if !ok {
		return -fuse.EACCES
	}
	n, rerr := f.handles.Read(fh, buff, ofst)
	if rerr != nil {
		return errno(rerr)
	}
	return n
}

// Write writes to a file through its handle and fsyncs.
func (f *FS) Write(path string, buff []byte, ofst int64, fh uint64) (n int) {
	defer f.trace("Write", path, ofst, len(buff))(&n)
	release := f.gate.acquire(path)
	defer release()

	if _, ok := f.handles.Lookup(fh); !ok {
		return -fuse.EBADF
	}
	right, err := f.rightPath(path)
	if err != nil {
		return errno(err)
	}
	if !lexists(right) {
		return -fuse.ENOENT
	}
	n, werr := f.handles.Write(fh, buff, ofst)
	if werr != nil {
		return errno(werr)
	}
	return n
}

// Truncate resizes a file at its resolved path.
func (f *FS) Truncate(path string, size int64, fh uint64) (errc int) {
	defer f.trace("Truncate", path, size)(&errc)
	release := f.gate.acquire(path)
	defer release()

	right, err := f.rightPath(path)
	if err != nil {
		return errno(err)
	}
	if !lexists(right) {
		return -fuse.ENOENT
	}
	return errno(os.Truncate(right, size))
}

// Unlink closes any handles open on the resolved file, then deletes
// it through the platform delete primitive.
func (f *FS) Unlink(path string) (errc int) {
	defer f.trace("Unlink", path)(&errc)
	release := f.gate.acquire(path)
	defer release()

	return f.unlink(path)
}

func (f *FS) unlink(path string) int {
	right, err := f.rightPath(path)
	if err != nil {
		return errno(err)
	}
	f.handles.ReleaseByPath(right)
	if !lexists(right) {
		return -fuse.ENOENT
	}
	return errno(deleteFile(right))
}

// Mkdir creates a directory. The parent check is intentionally against
// the read bit, not the write bit, to sidestep Unix-to-Windows
// permission translation.
func (f *FS) Mkdir(path string, mode uint32) (errc int) {
	defer f.trace("Mkdir", path, mode)(&errc)
	release := f.gate.acquire(path)
	defer release()

	return f.mkdir(path, mode)
}

func (f *FS) mkdir(path string, mode uint32) int {
	if ok, err := f.canAccess(pathpkg.Dir(path), accessRead); err != nil || !ok {
		return -fuse.ENOENT
	}
	right, err := f.rightPath(path)
	if err != nil {
		return errno(err)
	}
	if err := f.mirrorMakedirs(filepath.Dir(right)); err != nil {
		return errno(err)
	}
	return errno(os.Mkdir(right, os.FileMode(mode&0o777)))
}

// Rmdir removes the directory from both backends, clearing the
// read-only flag first.
func (f *FS) Rmdir(path string) (errc int) {
	defer f.trace("Rmdir", path)(&errc)
	release := f.gate.acquire(path)
	defer release()

	return f.rmdir(path)
}

func (f *FS) rmdir(path string) int {
	full := f.fullPath(path)
	cache := f.cachePath(path)
	if !lexists(full) && !lexists(cache) {
		return -fuse.ENOENT
	}
	for _, dir := range []string{full, cache} {
		if !lexists(dir) {
			continue
		}
		clearReadOnly(dir)
		if err := os.Remove(dir); err != nil {
			return errno(err)
		}
	}
	return 0
}

// Chmod changes permission bits on the resolved path.
func (f *FS) Chmod(path string, mode uint32) (errc int) {
	defer f.trace("Chmod", path, mode)(&errc)
	release := f.gate.acquire(path)
	defer release()

	right, err := f.rightPath(path)
	if err != nil {
		return errno(err)
	}
	if !lexists(right) {
		return -fuse.ENOENT
	}
	return errno(os.Chmod(right, os.FileMode(mode&0o777)))
}

// Chown changes ownership on the resolved path. Not supported on
// Windows.
func (f *FS) Chown(path string, uid uint32, gid uint32) (errc int) {
	defer f.trace("Chown", path, uid, gid)(&errc)
	release := f.gate.acquire(path)
	defer release()

	if runtime.GOOS == "windows" {
		return -fuse.ENOTSUP
	}
	right, err := f.rightPath(path)
	if err != nil {
		return errno(err)
	}
	if !lexists(right) {
		return -fuse.ENOENT
	}
	return errno(os.Chown(right, int(int32(uid)), int(int32(gid))))
}

// Utimens sets access and modification times on the resolved path.
func (f *FS) Utimens(path string, tmsp []fuse.Timespec) (errc int) {
	defer f.trace("Utimens", path)(&errc)
	release := f.gate.acquire(path)
	defer release()

	right, err := f.rightPath(path)
	if err != nil {
		return errno(err)
	}
	if !lexists(right) {
		return -fuse.ENOENT
	}
	atime := fuse.Now().Time()
	mtime := atime
	if len(tmsp) == 2 {
		atime = tmsp[0].Time()
		mtime = tmsp[1].Time()
	}
	return errno(os.Chtimes(right, atime, mtime))
}

// Statfs reports the usage of the volume holding the resolved path
// with a fixed block size and a constant synthetic filesystem ID.
func (f *FS) Statfs(path string, stat *fuse.Statfs_t) (errc int) {
	defer f.trace("Statfs", path)(&errc)

	right, err := f.rightPath(path)
	if err != nil {
		return errno(err)
	}
	if !lexists(right) {
		return -fuse.ENOENT
	}
	total, free, serr := diskUsage(right)
	if serr != nil {
		return errno(serr)
	}
	const blockSize = 4096
	stat.Bsize = blockSize
	stat.Frsize = blockSize
	stat.Blocks = total / blockSize
	stat.Bfree = free / blockSize
	stat.Bavail = free / blockSize
	stat.Files = total / blockSize
	stat.Ffree = total / blockSize
	stat.Favail = total / blockSize
	stat.Flag = 0
	stat.Namemax = 255
	stat.Fsid = 123456789
	return 0
}

// Release closes a handle. Unknown handles and double-closes are
// swallowed.
func (f *FS) Release(path string, fh uint64) (errc int) {
	defer f.trace("Release", path, fh)(&errc)
	release := f.gate.acquire(path)
	defer release()

	f.handles.Release(fh)
	return 0
}

// Flush is a no-op; write already fsyncs.
func (f *FS) Flush(path string, fh uint64) int {
	return 0
}

// Fsync is a no-op; write already fsyncs.
func (f *FS) Fsync(path string, datasync bool, fh uint64) int {
	return 0
}

// isDir reports whether the physical path is an existing directory.
func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// clearReadOnly makes a path writable so it can be removed.
func clearReadOnly(path string) {
	if fi, err := os.Stat(path); err == nil {
		_ = os.Chmod(path, fi.Mode().Perm()|0o200)
	}
}
