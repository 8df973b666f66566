package fs

import (
	"io"
	"os"
	"strings"
	"sync"
	"syscall"
)

// handle pairs an exposed handle ID's physical path with the open
// native descriptor serving it.
type handle struct {
	path  string
	file  *os.File
	flags int
}

// HandleTable is the process-wide registry of open file handles. IDs
// are allocated as max(ids)+1, starting over at 0 when the table is
// empty, matching what hosts expect from a path-based filesystem.
type HandleTable struct {
	mu      sync.Mutex
	entries map[uint64]*handle
}

func newHandleTable() *HandleTable {
	return &HandleTable{entries: make(map[uint64]*handle)}
}

// Register adds an open file and returns its exposed handle ID.
func (t *HandleTable) Register(path string, file *os.File, flags int) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var next uint64
	for id := range t.entries {
		if id+1 > next {
			next = id + 1
		}
	}
	t.entries[next] = &handle{path: path, file: file, flags: flags}
	return next
}

// Lookup returns the physical path behind a handle ID, or false when
// the ID is unknown.
func (t *HandleTable) Lookup(fh uint64) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.entries[fh]
	if !ok {
		return "", false
	}
	return h.path, true
}

// Read seeks the native descriptor to ofst and reads into buff,
// looping until the buffer is full or EOF. Returns EBADF for unknown
// handles.
func (t *HandleTable) Read(fh uint64, buff []byte, ofst int64) (int, error) {
	t.mu.Lock()
	h, ok := t.entries[fh]
	t.mu.Unlock()
	if !ok {
		return 0, syscall.EBADF
	}

	if _, err := h.file.Seek(ofst, io.SeekStart); err != nil {
		return 0, err
	}
	total := 0
	for total < len(buff) {
		n, err := h.file.Read(buff[total:])
		total += n
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Write seeks the native descriptor to ofst, writes buff and fsyncs.
// Returns EBADF for unknown handles.
func (t *HandleTable) Write(fh uint64, buff []byte, ofst int64) (int, error) {
	t.mu.Lock()
	h, ok := t.entries[fh]
	t.mu.Unlock()
	if !ok {
		return 0, syscall.EBADF
	}

	if _, err := h.file.Seek(ofst, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := h.file.Write(buff)
	if err != nil {
		return n, err
	}
	if err := h.file.Sync(); err != nil {
		return n, err
	}
	return n, nil
}

// Release closes the native descriptor and drops the entry. A
// double-close is swallowed; unknown handles are a no-op.
func (t *HandleTable) Release(fh uint64) {
	t.mu.Lock()
	h, ok := t.entries[fh]
	if ok {
		delete(t.entries, fh)
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	closeQuiet(h.file)
}

// ReleaseByPath closes and drops every entry whose physical path
// equals the target. Used by unlink before deleting the file.
func (t *HandleTable) ReleaseByPath(path string) {
	t.mu.Lock()
	var files []*os.File
	for id, h := range t.entries {
		if h.path == path {
			files = append(files, h.file)
			delete(t.entries, id)
		}
	}
	t.mu.Unlock()
	for _, file := range files {
		closeQuiet(file)
	}
}

// quiescedHandle records what is needed to bring a handle back after
// its file has moved: the exposed ID, the physical path it pointed at
// and the seek position at quiesce time.
type quiescedHandle struct {
	id   uint64
	path string
	pos  int64
}

// QuiesceUnder closes every handle whose physical path starts with
// prefix, recording seek positions so the handles can be reopened at
// their new location. Entries are removed from the table.
func (t *HandleTable) QuiesceUnder(prefix string) []quiescedHandle {
	t.mu.Lock()
	var victims []quiescedHandle
	var files []*os.File
	for id, h := range t.entries {
		if !strings.HasPrefix(h.path, prefix) {
			continue
		}
		pos, err := h.file.Seek(0, io.SeekCurrent)
		if err != nil {
			pos = 0
		}
		victims = append(victims, quiescedHandle{id: id, path: h.path, pos: pos})
		files = append(files, h.file)
		delete(t.entries, id)
	}
	t.mu.Unlock()
	for _, file := range files {
		closeQuiet(file)
	}
	return victims
}

// Restore reinstates a quiesced handle at its original ID with a fresh
// descriptor.
func (t *HandleTable) Restore(id uint64, path string, file *os.File) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id] = &handle{path: path, file: file, flags: os.O_RDWR}
}

// closeQuiet fsyncs and closes a descriptor. EBADF from a racing
// close is swallowed, as are sync errors on read-only descriptors.
func closeQuiet(file *os.File) {
	_ = file.Sync()
	_ = file.Close()
}
