package storage

import (
	"os"
	"sync"

	mmapgo "github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"

	"github.com/itohio/nnrt/pkg/core/nnerr"
)

// MlockMode selects whether and how the mmap loader pins its mapping
// into physical memory, per spec.md §6's mmap lock mode enumeration.
type MlockMode uint8

const (
	// NoMlock leaves the mapping subject to normal paging.
	NoMlock MlockMode = iota
	// UseMlock fails construction if mlock cannot be obtained.
	UseMlock
	// UseMlockIgnoreErrors attempts mlock but proceeds unpinned if it fails.
	UseMlockIgnoreErrors
)

// MmapLoader maps a file once at construction; Load returns pointers
// into that mapping rather than copying bytes.
type MmapLoader struct {
	mu      sync.Mutex
	file    *os.File
	mapping mmapgo.MMap
	locked  bool
}

// NewMmapLoader opens path read-only, maps it entirely, and applies
// mode's mlock behavior.
func NewMmapLoader(path string, mode MlockMode) (*MmapLoader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nnerr.New(nnerr.AccessFailed, "open: "+err.Error())
	}
	m, err := mmapgo.Map(f, mmapgo.RDONLY, 0)
	if err != nil {
		_ = f.Close()
		return nil, nnerr.New(nnerr.AccessFailed, "mmap: "+err.Error())
	}

	l := &MmapLoader{file: f, mapping: m}
	switch mode {
	case UseMlock:
		if err := unix.Mlock(m); err != nil {
			_ = m.Unmap()
			_ = f.Close()
			return nil, nnerr.New(nnerr.AccessFailed, "mlock: "+err.Error())
		}
		l.locked = true
	case UseMlockIgnoreErrors:
		l.locked = unix.Mlock(m) == nil
	case NoMlock:
	}
	return l, nil
}

// Locked reports whether the mapping is currently mlock'd.
func (l *MmapLoader) Locked() bool { return l.locked }

// Load returns a zero-copy view into the mapping at [offset, offset+size).
func (l *MmapLoader) Load(offset, size int64) (FreeableBuffer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.mapping == nil {
		return FreeableBuffer{}, nnerr.New(nnerr.InvalidState, "mmap loader is closed")
	}
	if err := checkRange(offset, size, int64(len(l.mapping))); err != nil {
		return FreeableBuffer{}, err
	}
	return noopFreeable(l.mapping[offset : offset+size : offset+size]), nil
}

// Size returns the length of the mapped file.
func (l *MmapLoader) Size() (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mapping == nil {
		return 0, nnerr.New(nnerr.InvalidState, "mmap loader is closed")
	}
	return int64(len(l.mapping)), nil
}

// Close unmaps the file and unlocks it if it was locked.
func (l *MmapLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mapping == nil {
		return nil
	}
	if l.locked {
		_ = unix.Munlock(l.mapping)
	}
	err := l.mapping.Unmap()
	l.mapping = nil
	if l.file != nil {
		if cerr := l.file.Close(); err == nil {
			err = cerr
		}
		l.file = nil
	}
	return err
}
