//go:build windows

package fs

import "golang.org/x/sys/windows"

const (
	accessRead  = 0x4
	accessWrite = 0x2
)

// nativeAccess approximates the POSIX access check. Existence covers
// the read bit; the read-only attribute denies the write bit.
func nativeAccess(path string, mask uint32) bool {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return false
	}
	if mask&accessWrite != 0 && attrs&windows.FILE_ATTRIBUTE_READONLY != 0 &&
		attrs&windows.FILE_ATTRIBUTE_DIRECTORY == 0 {
		return false
	}
	return true
}
