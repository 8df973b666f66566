//go:build windows

package fs

import "golang.org/x/sys/windows"

// diskUsage returns total and free bytes on the volume holding path.
func diskUsage(path string) (total, free uint64, err error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, 0, err
	}
	var freeToCaller, totalBytes, freeBytes uint64
	if err = windows.GetDiskFreeSpaceEx(p, &freeToCaller, &totalBytes, &freeBytes); err != nil {
		return 0, 0, err
	}
	return totalBytes, freeBytes, nil
}
