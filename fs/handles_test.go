package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T, dir, name, content string) (string, *os.File) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	return path, file
}

func TestHandleIDAllocation(t *testing.T) {
	dir := t.TempDir()
	table := newHandleTable()

	p1, f1 := openTemp(t, dir, "a", "x")
	p2, f2 := openTemp(t, dir, "b", "x")
	p3, f3 := openTemp(t, dir, "c", "x")

	id1 := table.Register(p1, f1, os.O_RDWR)
	id2 := table.Register(p2, f2, os.O_RDWR)
	if id1 != 0 || id2 != 1 {
		t.Errorf("ids = %d, %d, expected 0, 1", id1, id2)
	}

	// Releasing the highest ID frees it for reuse; releasing a lower
	// one does not disturb max+1 allocation.
	table.Release(id2)
	id3 := table.Register(p3, f3, os.O_RDWR)
	if id3 != 1 {
		t.Errorf("id after releasing max = %d, expected 1", id3)
	}

	table.Release(id1)
	table.Release(id3)

	p4, f4 := openTemp(t, dir, "d", "x")
	if id := table.Register(p4, f4, os.O_RDWR); id != 0 {
		t.Errorf("id on empty table = %d, expected 0", id)
	}
}

func TestHandleReadWrite(t *testing.T) {
	dir := t.TempDir()
	table := newHandleTable()

	path, file := openTemp(t, dir, "rw", "")
	id := table.Register(path, file, os.O_RDWR)

	if n, err := table.Write(id, []byte("hello"), 0); n != 5 || err != nil {
		t.Fatalf("Write = %d, %v", n, err)
	}
	buf := make([]byte, 3)
	if n, err := table.Read(id, buf, 1); n != 3 || err != nil || string(buf) != "ell" {
		t.Fatalf("Read = %d, %v, %q", n, err, buf)
	}

	if _, err := table.Write(77, []byte("x"), 0); err == nil {
		t.Errorf("Write on unknown handle succeeded")
	}
	table.Release(id)
}

func TestHandleQuiesceRestore(t *testing.T) {
	dir := t.TempDir()
	table := newHandleTable()

	path, file := openTemp(t, dir, "q", "")
	id := table.Register(path, file, os.O_RDWR)
	if _, err := table.Write(id, []byte("abcd"), 0); err != nil {
		t.Fatal(err)
	}

	quiesced := table.QuiesceUnder(path)
	if len(quiesced) != 1 {
		t.Fatalf("quiesced %d handles, expected 1", len(quiesced))
	}
	q := quiesced[0]
	if q.id != id || q.pos != 4 {
		t.Errorf("quiesced = {id:%d pos:%d}, expected {id:%d pos:4}", q.id, q.pos, id)
	}
	if _, ok := table.Lookup(id); ok {
		t.Errorf("entry survived quiesce")
	}

	moved := filepath.Join(dir, "q2")
	if err := os.Rename(path, moved); err != nil {
		t.Fatal(err)
	}
	reopened, err := os.OpenFile(moved, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	table.Restore(q.id, moved, reopened)

	if got, ok := table.Lookup(q.id); !ok || got != moved {
		t.Errorf("Lookup after restore = %q, %v", got, ok)
	}
	if n, err := table.Write(q.id, []byte("E"), q.pos); n != 1 || err != nil {
		t.Fatalf("Write after restore = %d, %v", n, err)
	}
	data, _ := os.ReadFile(moved)
	if string(data) != "abcdE" {
		t.Errorf("file = %q, expected %q", data, "abcdE")
	}
	table.Release(q.id)
}

func TestHandleReleaseByPath(t *testing.T) {
	dir := t.TempDir()
	table := newHandleTable()

	path, file := openTemp(t, dir, "p", "x")
	other, otherFile := openTemp(t, dir, "other", "y")
	id1 := table.Register(path, file, os.O_RDWR)
	id2 := table.Register(other, otherFile, os.O_RDWR)

	table.ReleaseByPath(path)
	if _, ok := table.Lookup(id1); ok {
		t.Errorf("handle on target path survived")
	}
	if _, ok := table.Lookup(id2); !ok {
		t.Errorf("unrelated handle was dropped")
	}
	table.Release(id2)
}

func TestHandleDoubleRelease(t *testing.T) {
	dir := t.TempDir()
	table := newHandleTable()

	path, file := openTemp(t, dir, "d", "x")
	id := table.Register(path, file, os.O_RDWR)
	table.Release(id)
	table.Release(id) // must not panic or error
}
