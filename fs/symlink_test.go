package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/winfsp/cgofuse/fuse"
)

func newPolicyFS(t *testing.T, policy SymlinkPolicy, patterns ...string) (*FS, string, string) {
	t.Helper()
	root := t.TempDir()
	cache := t.TempDir()
	f, err := New(Config{
		Root:                root,
		CacheDir:            cache,
		Mountpoint:          "/mnt/test",
		Patterns:            patterns,
		OverwriteRenameDest: true,
		SymlinkPolicy:       policy,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return f, root, cache
}

func TestSymlinkReal(t *testing.T) {
	f, root, _ := newPolicyFS(t, PolicyRealSymlink)
	writeThrough(t, f, "/t", "content")

	assertOk(t, f.Symlink("/t", "/l"), "Symlink real")

	fi, err := os.Lstat(filepath.Join(root, "l"))
	if err != nil {
		t.Fatalf("link missing: %v", err)
	}
	if fi.Mode()&os.ModeSymlink == 0 {
		t.Errorf("artifact is not a symlink")
	}

	var stat fuse.Stat_t
	assertOk(t, f.Getattr("/l", &stat, ^uint64(0)), "Getattr link")
	if stat.Mode&fuse.S_IFMT != fuse.S_IFLNK {
		t.Errorf("Getattr mode = 0x%x, expected symlink", stat.Mode)
	}

	errc, target := f.Readlink("/l")
	assertOk(t, errc, "Readlink")
	if target != "/t" {
		t.Errorf("Readlink = %q, expected %q", target, "/t")
	}
}

func TestOpenFollowsSymlink(t *testing.T) {
	f, _, _ := newPolicyFS(t, PolicyRealSymlink)
	writeThrough(t, f, "/t", "through the link")
	assertOk(t, f.Symlink("/t", "/l"), "Symlink")

	if got := readThrough(t, f, "/l"); got != "through the link" {
		t.Errorf("read(/l) = %q", got)
	}
}

func TestSymlinkErrorPolicy(t *testing.T) {
	f, root, cache := newPolicyFS(t, PolicyError)
	writeThrough(t, f, "/t", "x")

	assertErrc(t, f.Symlink("/t", "/l"), -fuse.ENOTSUP, "Symlink under error policy")
	if lexists(filepath.Join(root, "l")) || lexists(filepath.Join(cache, "l")) {
		t.Errorf("artifact created under error policy")
	}
}

func TestSymlinkSkipPolicyNeutralizesRename(t *testing.T) {
	f, root, cache := newPolicyFS(t, PolicySkip)
	writeThrough(t, f, "/t", "x")

	assertOk(t, f.Symlink("/t", "/staged"), "Symlink under skip policy")
	if lexists(filepath.Join(root, "staged")) || lexists(filepath.Join(cache, "staged")) {
		t.Errorf("skip policy must create no artifact")
	}

	// The follow-up rename consumes the marker and only clears the
	// (absent) destination.
	assertOk(t, f.Rename("/staged", "/final"), "Rename of skipped source")
	if lexists(filepath.Join(root, "final")) || lexists(filepath.Join(cache, "final")) {
		t.Errorf("rename of a skipped source must produce nothing")
	}
	if len(f.renameExcludedSources) != 0 {
		t.Errorf("marker not consumed")
	}
}

func TestSymlinkCopyPolicy(t *testing.T) {
	f, _, _ := newPolicyFS(t, PolicyCopy)
	writeThrough(t, f, "/t", "copied bytes")

	assertOk(t, f.Symlink("/t", "/c"), "Symlink under copy policy")
	if got := readThrough(t, f, "/c"); got != "copied bytes" {
		t.Errorf("read(/c) = %q", got)
	}
}

func TestSymlinkLnkPolicy(t *testing.T) {
	f, root, _ := newPolicyFS(t, PolicyCreateLnkfile)
	writeThrough(t, f, "/t", "abc")

	// Hosts create the link at a staging name, then rename it into
	// place; the artifact gains the .lnk suffix on that rename.
	assertOk(t, f.Symlink("/t", "/staged"), "Symlink under lnk policy")
	if !lexists(filepath.Join(root, "staged")) {
		t.Fatalf("shortcut artifact missing")
	}
	assertOk(t, f.Rename("/staged", "/link"), "Rename appends .lnk")
	if !lexists(filepath.Join(root, "link.lnk")) {
		t.Fatalf("renamed artifact missing .lnk suffix")
	}

	// The logical namespace hides the suffix.
	var stat fuse.Stat_t
	assertOk(t, f.Getattr("/link", &stat, ^uint64(0)), "Getattr hides .lnk")
	if stat.Mode&fuse.S_IFMT != fuse.S_IFLNK {
		t.Errorf("Getattr mode = 0x%x, expected symlink bit", stat.Mode)
	}

	errc, target := f.Readlink("/link")
	assertOk(t, errc, "Readlink decodes shortcut")
	if target != "/t" {
		t.Errorf("Readlink = %q, expected mount-relative %q", target, "/t")
	}

	names := readdirThrough(t, f, "/")
	for _, name := range names {
		if name == "link.lnk" {
			t.Errorf("readdir leaked the .lnk suffix: %v", names)
		}
	}
	found := false
	for _, name := range names {
		if name == "link" {
			found = true
		}
	}
	if !found {
		t.Errorf("readdir missing the logical link name: %v", names)
	}
}

func TestSymlinkLnkPolicyMountTargetComesBackRelative(t *testing.T) {
	f, _, _ := newPolicyFS(t, PolicyCreateLnkfile)
	writeThrough(t, f, "/t", "x")

	assertOk(t, f.Symlink("/t", "/s"), "Symlink")
	assertOk(t, f.Rename("/s", "/ln"), "Rename")

	// Targets outside the mount are reported verbatim; this one was
	// rewritten under the mount point, so it comes back relative.
	errc, target := f.Readlink("/ln")
	assertOk(t, errc, "Readlink")
	if target != "/t" {
		t.Errorf("Readlink = %q, expected %q", target, "/t")
	}
}
