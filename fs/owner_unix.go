//go:build !windows

package fs

import (
	"os"
	"syscall"
)

// copyOwner transfers uid/gid from src onto dst.
func copyOwner(src, dst string) {
	fi, err := os.Stat(src)
	if err != nil {
		return
	}
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		_ = os.Chown(dst, int(st.Uid), int(st.Gid))
	}
}
