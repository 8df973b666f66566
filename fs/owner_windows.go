//go:build windows

package fs

// copyOwner is a no-op; Windows ownership does not map onto uid/gid.
func copyOwner(src, dst string) {}
