package fs

import (
	"os"
	"path/filepath"
	"strings"
)

// fullPath converts a logical path to its physical location under the
// root backend.
func (f *FS) fullPath(path string) string {
	p := strings.TrimPrefix(path, "/")
	p = strings.ReplaceAll(p, "/", string(filepath.Separator))
	return filepath.Join(f.root, p)
}

// cachePath converts a logical path to its physical location under the
// cache backend.
func (f *FS) cachePath(path string) string {
	p := strings.TrimPrefix(path, "/")
	p = strings.ReplaceAll(p, "/", string(filepath.Separator))
	return filepath.Join(f.cacheDir, p)
}

// onCache reports whether a physical path belongs to the cache backend.
func (f *FS) onCache(physical string) bool {
	return strings.HasPrefix(physical, f.cacheDir)
}

// lexists reports whether a path exists without following symlinks.
func lexists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// locate maps a logical path to its physical location without side
// effects. When both backends hold the name the copy with the strictly
// greater mtime wins, ties going to root. When neither exists the
// returned path is the intended location for a subsequent create and
// the second result is false.
func (f *FS) locate(path string) (string, bool) {
	full := f.fullPath(path)
	cache := f.cachePath(path)

	fullStat, fullErr := os.Lstat(full)
	cacheStat, cacheErr := os.Lstat(cache)

	switch {
	case fullErr == nil && cacheErr == nil:
		if cacheStat.ModTime().After(fullStat.ModTime()) {
			return cache, true
		}
		return full, true
	case fullErr == nil:
		return full, true
	case cacheErr == nil:
		return cache, true
	}
	if f.classifier.Excluded(path) {
		return cache, false
	}
	return full, false
}

// migrateIfNeeded moves a file to the backend its classification
// demands when it currently sits on the wrong side. The parent chain
// is mirrored on the destination side first and the move is a single
// native rename; failures surface the underlying OS error.
//
// When both backends hold the name the fresher copy wins: the stale
// one is dropped and the winner converges onto its classified side,
// restoring the at-most-one-copy invariant on first touch.
// Directories are exempt; the mirror keeps ancestor chains on both
// sides on purpose.
func (f *FS) migrateIfNeeded(path string) (string, error) {
	full := f.fullPath(path)
	cache := f.cachePath(path)
	excluded := f.classifier.Excluded(path)

	fullExists := lexists(full)
	cacheExists := lexists(cache)

	switch {
	case fullExists && cacheExists:
		return f.consolidate(path, full, cache, excluded)
	case fullExists && excluded:
		if err := f.mirrorMakedirs(filepath.Dir(cache)); err != nil {
			return "", err
		}
		if err := renameNative(full, cache); err != nil {
			return "", err
		}
		return cache, nil
	case cacheExists && !excluded:
		if err := f.mirrorMakedirs(filepath.Dir(full)); err != nil {
			return "", err
		}
		if err := renameNative(cache, full); err != nil {
			return "", err
		}
		return full, nil
	case fullExists:
		return full, nil
	case cacheExists:
		return cache, nil
	}
	if excluded {
		return cache, nil
	}
	return full, nil
}

// consolidate resolves a name present on both backends. The copy with
// the strictly greater mtime wins, ties going to root; for
// non-directories the loser is removed and the winner is moved onto
// the side its classification demands.
func (f *FS) consolidate(path, full, cache string, excluded bool) (string, error) {
	fullStat, err := os.Lstat(full)
	if err != nil {
		return "", err
	}
	cacheStat, err := os.Lstat(cache)
	if err != nil {
		return "", err
	}

	winner, loser := full, cache
	if cacheStat.ModTime().After(fullStat.ModTime()) {
		winner, loser = cache, full
	}
	if fullStat.IsDir() || cacheStat.IsDir() {
		return winner, nil
	}

	if err := os.Remove(loser); err != nil {
		return "", err
	}
	target := full
	if excluded {
		target = cache
	}
	if winner == target {
		return winner, nil
	}
	if err := f.mirrorMakedirs(filepath.Dir(target)); err != nil {
		return "", err
	}
	if err := renameNative(winner, target); err != nil {
		return "", err
	}
	return target, nil
}

// rightPath resolves a logical path to the physical path operations
// should touch, converging misplaced files onto the correct backend as
// a side effect.
func (f *FS) rightPath(path string) (string, error) {
	return f.migrateIfNeeded(path)
}
