//go:build !windows

package fs

import "golang.org/x/sys/unix"

const (
	accessRead  = unix.R_OK
	accessWrite = unix.W_OK
)

// nativeAccess runs the platform access check for an existing path
// without following a trailing symlink.
func nativeAccess(path string, mask uint32) bool {
	err := unix.Faccessat(unix.AT_FDCWD, path, mask, unix.AT_SYMLINK_NOFOLLOW)
	return err == nil
}
