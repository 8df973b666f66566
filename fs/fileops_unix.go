//go:build !windows

package fs

import "os"

// deleteFile removes a file through the platform's delete primitive.
func deleteFile(path string) error {
	return os.Remove(path)
}

// renameNative performs an atomic same-volume rename.
func renameNative(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

// openNative opens an existing file with the host-supplied flags.
func openNative(path string, flags int) (*os.File, error) {
	return os.OpenFile(path, flags, 0)
}

// createNative creates (or opens) a file read-write with the given
// permission bits.
func createNative(path string, mode uint32) (*os.File, error) {
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE, os.FileMode(mode&0o777))
}

// reopenNative reopens a file read-write after a rename moved it.
func reopenNative(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDWR, 0)
}
