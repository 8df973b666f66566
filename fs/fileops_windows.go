//go:build windows

package fs

import (
	"os"

	"golang.org/x/sys/windows"
)

// deleteFile removes a file through DeleteFileW, which behaves
// correctly when other processes still hold the file open with delete
// sharing.
func deleteFile(path string) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	return windows.DeleteFile(p)
}

// renameNative moves a file through MoveFileExW.
func renameNative(oldpath, newpath string) error {
	op, err := windows.UTF16PtrFromString(oldpath)
	if err != nil {
		return err
	}
	np, err := windows.UTF16PtrFromString(newpath)
	if err != nil {
		return err
	}
	return windows.MoveFileEx(op, np, 0)
}

// openNative opens an existing file read-write with full sharing so
// opens from other processes are never blocked, and with backup
// semantics so directories can be opened too. The host flags are
// intentionally ignored; every handle is read-write on Windows.
func openNative(path string, flags int) (*os.File, error) {
	return openShareAll(path, windows.OPEN_EXISTING)
}

// createNative creates (or opens) a file read-write.
func createNative(path string, mode uint32) (*os.File, error) {
	return openShareAll(path, windows.OPEN_ALWAYS)
}

// reopenNative reopens a file read-write after a rename moved it.
func reopenNative(path string) (*os.File, error) {
	return openShareAll(path, windows.OPEN_EXISTING)
}

func openShareAll(path string, disposition uint32) (*os.File, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}
	h, err := windows.CreateFile(
		p,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		disposition,
		windows.FILE_ATTRIBUTE_NORMAL|windows.FILE_FLAG_BACKUP_SEMANTICS,
		0,
	)
	if err != nil {
		return nil, err
	}
	return os.NewFile(uintptr(h), path), nil
}
