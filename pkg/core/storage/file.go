package storage

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/itohio/nnrt/pkg/core/nnerr"
)

// FileLoader holds an open file descriptor and an alignment
// constraint. Load allocates a buffer whose length is size rounded up
// to a multiple of that constraint (the buffer's start address is not
// aligned) and pread()s into it, keeping the descriptor open for the loader's
// lifetime, per spec.md §4.1's file loader contract.
type FileLoader struct {
	mu        sync.Mutex
	file      *os.File
	alignment int64
	size      int64
}

// NewFileLoader opens path read-only and wraps it. alignment must be a
// power of two; every Load call rounds its allocation size up to a
// multiple of it, which does not change the requested offset/size
// semantics.
func NewFileLoader(path string, alignment int64) (*FileLoader, error) {
	if alignment <= 0 || alignment&(alignment-1) != 0 {
		return nil, nnerr.New(nnerr.InvalidArgument, "alignment must be a power of two")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nnerr.New(nnerr.AccessFailed, "open: "+err.Error())
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nnerr.New(nnerr.AccessFailed, "stat: "+err.Error())
	}
	return &FileLoader{file: f, alignment: alignment, size: info.Size()}, nil
}

// Load allocates an alignment-padded buffer and pread()s size bytes
// from offset into it. The returned FreeableBuffer's disposer is a
// no-op; the allocation is reclaimed by the GC once unreferenced.
func (l *FileLoader) Load(offset, size int64) (FreeableBuffer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return FreeableBuffer{}, nnerr.New(nnerr.InvalidState, "file loader is closed")
	}
	if err := checkRange(offset, size, l.size); err != nil {
		return FreeableBuffer{}, err
	}
	if size == 0 {
		return noopFreeable(nil), nil
	}

	padded := alignUp64(size, l.alignment)
	buf := make([]byte, padded)
	n, err := unix.Pread(int(l.file.Fd()), buf[:size], offset)
	if err != nil {
		return FreeableBuffer{}, nnerr.New(nnerr.AccessFailed, "pread: "+err.Error())
	}
	if int64(n) != size {
		return FreeableBuffer{}, nnerr.New(nnerr.AccessFailed, "short read")
	}
	return FreeableBuffer{data: buf[:size], dispose: func() {}}, nil
}

// Size returns the file's length as of construction.
func (l *FileLoader) Size() (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return 0, nnerr.New(nnerr.InvalidState, "file loader is closed")
	}
	return l.size, nil
}

// Close closes the underlying file descriptor.
func (l *FileLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func alignUp64(pos, align int64) int64 {
	if align <= 1 {
		return pos
	}
	rem := pos % align
	if rem == 0 {
		return pos
	}
	return pos + (align - rem)
}
