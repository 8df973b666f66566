package fs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/winfsp/cgofuse/fuse"
)

func TestRenameSameBackend(t *testing.T) {
	f, root, _ := newTestFS(t)
	writeThrough(t, f, "/a", "payload")

	assertOk(t, f.Rename("/a", "/b"), "Rename /a /b")
	if lexists(filepath.Join(root, "a")) {
		t.Errorf("source survived rename")
	}
	if got := readThrough(t, f, "/b"); got != "payload" {
		t.Errorf("read(/b) = %q, expected %q", got, "payload")
	}
}

func TestRenameMissingSource(t *testing.T) {
	f, _, _ := newTestFS(t)
	assertErrc(t, f.Rename("/ghost", "/dst"), -fuse.ENOENT, "Rename missing source")
}

func TestRenameIntoExclusion(t *testing.T) {
	f, root, cache := newTestFS(t, "**/*.txt")

	if err := os.WriteFile(filepath.Join(root, "x"), []byte("k"), 0o644); err != nil {
		t.Fatal(err)
	}

	assertOk(t, f.Rename("/x", "/x.txt"), "Rename into exclusion")
	data, err := os.ReadFile(filepath.Join(cache, "x.txt"))
	if err != nil || string(data) != "k" {
		t.Fatalf("cache/x.txt = %q, %v", data, err)
	}
	if lexists(filepath.Join(root, "x")) || lexists(filepath.Join(root, "x.txt")) {
		t.Errorf("root still holds the file")
	}
}

func TestRenamePreservesMtime(t *testing.T) {
	f, _, _ := newTestFS(t)
	writeThrough(t, f, "/stamped", "c")

	when := time.Date(2020, 3, 14, 9, 26, 53, 0, time.UTC)
	tmsp := []fuse.Timespec{fuse.NewTimespec(when), fuse.NewTimespec(when)}
	assertOk(t, f.Utimens("/stamped", tmsp), "Utimens")

	assertOk(t, f.Rename("/stamped", "/moved"), "Rename")

	var stat fuse.Stat_t
	assertOk(t, f.Getattr("/moved", &stat, ^uint64(0)), "Getattr /moved")
	if stat.Mtim.Sec != when.Unix() {
		t.Errorf("mtime = %d, expected %d", stat.Mtim.Sec, when.Unix())
	}
}

func TestRenameCrossBackendPreservesMtime(t *testing.T) {
	f, _, cache := newTestFS(t, "**/*.txt")
	writeThrough(t, f, "/doc", "body")

	when := time.Date(2019, 7, 2, 0, 0, 0, 0, time.UTC)
	tmsp := []fuse.Timespec{fuse.NewTimespec(when), fuse.NewTimespec(when)}
	assertOk(t, f.Utimens("/doc", tmsp), "Utimens")

	assertOk(t, f.Rename("/doc", "/doc.txt"), "Rename across backends")

	fi, err := os.Stat(filepath.Join(cache, "doc.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.ModTime().Unix() != when.Unix() {
		t.Errorf("mtime = %d, expected %d", fi.ModTime().Unix(), when.Unix())
	}
}

func TestRenameMixedDirectory(t *testing.T) {
	f, root, cache := newTestFS(t, "**/*.txt")

	writeThrough(t, f, "/d/a.txt", "T1")
	writeThrough(t, f, "/d/b", "K")

	assertOk(t, f.Rename("/d", "/d2"), "Rename mixed directory")

	data, err := os.ReadFile(filepath.Join(cache, "d2", "a.txt"))
	if err != nil || string(data) != "T1" {
		t.Errorf("cache/d2/a.txt = %q, %v", data, err)
	}
	data, err = os.ReadFile(filepath.Join(root, "d2", "b"))
	if err != nil || string(data) != "K" {
		t.Errorf("root/d2/b = %q, %v", data, err)
	}
	if lexists(filepath.Join(root, "d")) || lexists(filepath.Join(cache, "d")) {
		t.Errorf("source directory survived on some backend")
	}
}

func TestRenameKeepsOpenHandleUsable(t *testing.T) {
	f, _, _ := newTestFS(t)

	errc, fh := f.Create("/f", 0, 0o644)
	assertOk(t, errc, "Create /f")
	if n := f.Write("/f", []byte("A"), 0, fh); n != 1 {
		t.Fatalf("Write A returned %d", n)
	}

	assertOk(t, f.Rename("/f", "/g"), "Rename with open handle")

	if n := f.Write("/g", []byte("B"), 1, fh); n != 1 {
		t.Fatalf("Write B through surviving handle returned %d", n)
	}
	assertOk(t, f.Release("/g", fh), "Release")

	if got := readThrough(t, f, "/g"); got != "AB" {
		t.Errorf("read(/g) = %q, expected %q", got, "AB")
	}
}

func TestRenameOverwriteGuard(t *testing.T) {
	f, _, _ := newTestFS(t)
	f.overwriteRenameDest = false

	writeThrough(t, f, "/a", "one")
	writeThrough(t, f, "/b", "two")

	assertErrc(t, f.Rename("/a", "/b"), -fuse.EEXIST, "Rename over occupied dest")
	if got := readThrough(t, f, "/a"); got != "one" {
		t.Errorf("source damaged: %q", got)
	}
	if got := readThrough(t, f, "/b"); got != "two" {
		t.Errorf("destination damaged: %q", got)
	}
}

func TestRenameOverwriteAllowed(t *testing.T) {
	f, _, _ := newTestFS(t)

	writeThrough(t, f, "/a", "new")
	writeThrough(t, f, "/b", "old")

	assertOk(t, f.Rename("/a", "/b"), "Rename with overwrite")
	if got := readThrough(t, f, "/b"); got != "new" {
		t.Errorf("read(/b) = %q, expected %q", got, "new")
	}
}

func TestRenameFuseHiddenBypassesGuard(t *testing.T) {
	f, _, _ := newTestFS(t)
	f.overwriteRenameDest = false

	writeThrough(t, f, "/.fuse_hidden0001", "tmp")
	writeThrough(t, f, "/target", "old")

	assertOk(t, f.Rename("/.fuse_hidden0001", "/target"), "Rename fuse_hidden temp")
	if got := readThrough(t, f, "/target"); got != "tmp" {
		t.Errorf("read(/target) = %q, expected %q", got, "tmp")
	}
}

func TestRenameSymlinkChild(t *testing.T) {
	f, root, _ := newTestFS(t)

	writeThrough(t, f, "/d/file", "x")
	if err := os.Symlink("/d/file", filepath.Join(root, "d", "ln")); err != nil {
		t.Fatal(err)
	}

	assertOk(t, f.Rename("/d", "/d2"), "Rename dir with symlink")

	target, err := os.Readlink(filepath.Join(root, "d2", "ln"))
	if err != nil {
		t.Fatalf("moved symlink unreadable: %v", err)
	}
	if target != "/d/file" {
		t.Errorf("link target = %q, expected preserved verbatim", target)
	}
	if lexists(filepath.Join(root, "d")) {
		t.Errorf("source dir survived")
	}
}
