package fs

import (
	"os"
	"path/filepath"
	"strings"
)

// mirrorMakedirs creates the ancestor chain of a physical directory
// one level at a time, keeping the chain present in BOTH backends.
// When one side already has a component, its mode, owner (where the
// platform supports it) and times are copied onto the side that was
// just created. EEXIST is success, so the walk is idempotent and
// tolerant of races.
func (f *FS) mirrorMakedirs(dir string) error {
	base, peer := f.root, f.cacheDir
	if f.onCache(dir) {
		base, peer = f.cacheDir, f.root
	}

	rel, err := filepath.Rel(base, dir)
	if err != nil {
		return err
	}
	if rel == "." || strings.HasPrefix(rel, "..") {
		return nil
	}

	current := ""
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "" {
			continue
		}
		current = filepath.Join(current, part)
		basePath := filepath.Join(base, current)
		peerPath := filepath.Join(peer, current)

		baseExisted := lexists(basePath)
		peerExisted := lexists(peerPath)

		if !baseExisted {
			if err := os.Mkdir(basePath, 0o777); err != nil && !os.IsExist(err) {
				return err
			}
			if peerExisted {
				copyDirMeta(peerPath, basePath)
			}
		}
		if !peerExisted {
			if err := os.Mkdir(peerPath, 0o777); err != nil && !os.IsExist(err) {
				return err
			}
			if baseExisted {
				copyDirMeta(basePath, peerPath)
			}
		}
	}
	return nil
}

// copyDirMeta copies mode, owner and times from src onto dst.
// Best-effort: a chain where one attribute cannot be applied is still
// better than no chain at all.
func copyDirMeta(src, dst string) {
	st, err := os.Stat(src)
	if err != nil {
		return
	}
	_ = os.Chmod(dst, st.Mode().Perm())
	copyOwner(src, dst)
	atime, mtime, _ := statTimes(st)
	_ = os.Chtimes(dst, atime, mtime)
}
