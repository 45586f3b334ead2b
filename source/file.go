package source

import (
	"container/list"
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Registry keeps many files "logically open" while bounding how many OS file
// descriptors are actually held at once. Sources above the capacity are
// closed between reads and transparently reopened on demand; the last seek
// position is cached so a reopen resumes exactly where the consumer left
// off. A single Registry is normally shared by every File a document opens.
type Registry struct {
	max int
	sem *semaphore.Weighted

	mu      sync.Mutex
	entries map[string]*list.Element // path -> LRU node
	lru     *list.List               // front = most recently used
}

type registryEntry struct {
	path string
	f    *os.File
}

// NewRegistry creates a Registry that keeps at most max descriptors open
// concurrently. A non-positive max disables the bound (descriptors are never
// closed early).
func NewRegistry(max int) *Registry {
	if max <= 0 {
		max = 1 << 30
	}
	return &Registry{
		max:     max,
		sem:     semaphore.NewWeighted(int64(max)),
		entries: make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// touch opens (or reopens) path, evicting the least-recently-used descriptor
// if the registry is at capacity, and returns the live *os.File. The caller
// must not retain the handle past its next call into the registry: another
// File's access can cause it to be closed and its slot reused.
func (r *Registry) touch(path string) (*os.File, error) {
	r.mu.Lock()
	if el, ok := r.entries[path]; ok {
		r.lru.MoveToFront(el)
		f := el.Value.(*registryEntry).f
		r.mu.Unlock()
		return f, nil
	}
	r.mu.Unlock()

	r.mu.Lock()
	if r.lru.Len() >= r.max {
		back := r.lru.Back()
		if back != nil {
			entry := back.Value.(*registryEntry)
			entry.f.Close()
			delete(r.entries, entry.path)
			r.lru.Remove(back)
			r.sem.Release(1)
		}
	}
	r.mu.Unlock()

	if err := r.sem.Acquire(context.Background(), 1); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		r.sem.Release(1)
		return nil, err
	}

	r.mu.Lock()
	el := r.lru.PushFront(&registryEntry{path: path, f: f})
	r.entries[path] = el
	r.mu.Unlock()
	return f, nil
}

// Close evicts and closes path's descriptor if currently open. Safe to call
// even when the path was never opened.
func (r *Registry) Close(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	el, ok := r.entries[path]
	if !ok {
		return nil
	}
	entry := el.Value.(*registryEntry)
	err := entry.f.Close()
	delete(r.entries, path)
	r.lru.Remove(el)
	r.sem.Release(1)
	return err
}

// File is a Source backed by an OS file, accessed through a Registry so
// many File sources can coexist without exhausting descriptor limits.
type File struct {
	path       string
	reg        *Registry
	pos        int64
	lastOffset int64
	size       int64
}

// OpenFile creates a File source for path using reg to bound descriptors.
// If reg is nil, a private Registry with no bound is created.
func OpenFile(path string, reg *Registry) (*File, error) {
	if reg == nil {
		reg = NewRegistry(0)
	}
	f, err := reg.touch(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return &File{path: path, reg: reg, size: fi.Size()}, nil
}

// Name implements Source.
func (fsrc *File) Name() string { return fsrc.path }

// Length implements Source.
func (fsrc *File) Length() (int64, error) { return fsrc.size, nil }

// Tell implements Source.
func (fsrc *File) Tell() (int64, error) { return fsrc.pos, nil }

// Seek implements Source.
func (fsrc *File) Seek(offset int64, whence int) (int64, error) {
	var np int64
	switch whence {
	case SeekStart:
		np = offset
	case SeekCurrent:
		np = fsrc.pos + offset
	case SeekEnd:
		np = fsrc.size + offset
	default:
		return 0, errors.New("source: invalid whence")
	}
	if np < 0 {
		return 0, errors.New("source: negative position")
	}
	fsrc.pos = np
	return np, nil
}

// Rewind implements Source.
func (fsrc *File) Rewind() error {
	fsrc.pos = 0
	return nil
}

// Read implements Source.
func (fsrc *File) Read(out []byte) (int, error) {
	fsrc.lastOffset = fsrc.pos
	n, err := fsrc.ReadAt(out, fsrc.pos)
	fsrc.pos += int64(n)
	return n, err
}

// ReadAt implements io.ReaderAt, reopening the underlying descriptor via the
// Registry if it was closed to make room for another source.
func (fsrc *File) ReadAt(out []byte, offset int64) (int, error) {
	f, err := fsrc.reg.touch(fsrc.path)
	if err != nil {
		return 0, err
	}
	n, err := f.ReadAt(out, offset)
	if err == io.EOF && n > 0 {
		return n, io.EOF
	}
	return n, err
}

// LastOffset implements Source.
func (fsrc *File) LastOffset() int64 { return fsrc.lastOffset }

// ReadLine implements Source.
func (fsrc *File) ReadLine(max int) (string, error) { return readLineGeneric(fsrc, max) }

// FindAndSkipNextEOL implements Source.
func (fsrc *File) FindAndSkipNextEOL() (int64, error) {
	const chunk = 4096
	buf := make([]byte, chunk)
	pos := fsrc.pos
	for pos < fsrc.size {
		n, err := fsrc.ReadAt(buf, pos)
		if n == 0 {
			break
		}
		for i := 0; i < n; i++ {
			if buf[i] == '\r' || buf[i] == '\n' {
				end := pos + int64(i) + 1
				if buf[i] == '\r' && i+1 < n && buf[i+1] == '\n' {
					end++
				} else if buf[i] == '\r' && i+1 == n && pos+int64(n) < fsrc.size {
					var next [1]byte
					if _, nerr := fsrc.ReadAt(next[:], end); nerr == nil && next[0] == '\n' {
						end++
					}
				}
				fsrc.pos = end
				return end, nil
			}
		}
		pos += int64(n)
		if err == io.EOF {
			break
		}
	}
	fsrc.pos = fsrc.size
	return fsrc.pos, nil
}

// FindFirst implements Source.
func (fsrc *File) FindFirst(needle []byte, offset, length int64, v Verifier) (bool, error) {
	return findFirstGeneric(fsrc, needle, offset, length, v)
}

// FindLast implements Source.
func (fsrc *File) FindLast(needle []byte, offset, length int64, v Verifier) (bool, error) {
	return findLastGeneric(fsrc, needle, offset, length, v)
}

// Close releases this file's descriptor back to the Registry immediately.
func (fsrc *File) Close() error {
	return fsrc.reg.Close(fsrc.path)
}
