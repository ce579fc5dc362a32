// Package storage implements the data-loader abstraction that
// supplies byte ranges to the program loader and method loader:
// buffer-backed, file-backed (pread), and memory-mapped variants, each
// returning a FreeableBuffer whose disposer reflects how the bytes
// were obtained.
package storage

import "github.com/itohio/nnrt/pkg/core/nnerr"

// FreeableBuffer is a byte range obtained from a Loader, paired with a
// disposer. Every loader here returns a no-op disposer: buffer- and
// mmap-backed ranges are owned by something else already, and the file
// loader's freshly allocated memory is reclaimed by the garbage
// collector once it is no longer referenced.
type FreeableBuffer struct {
	data    []byte
	dispose func()
}

// Bytes returns the buffer's contents. The slice is invalid after
// Free is called.
func (b FreeableBuffer) Bytes() []byte { return b.data }

// Free releases the buffer. Safe to call on a zero FreeableBuffer or
// to call more than once.
func (b FreeableBuffer) Free() {
	if b.dispose != nil {
		b.dispose()
	}
}

func noopFreeable(data []byte) FreeableBuffer {
	return FreeableBuffer{data: data, dispose: func() {}}
}

// Loader supplies byte ranges on demand. Implementations must be
// safe for concurrent use by multiple Methods sharing one Program, per
// spec.md §5's DataLoader sharing requirement.
type Loader interface {
	// Load returns size bytes starting at offset.
	Load(offset int64, size int64) (FreeableBuffer, error)
	// Size returns the total addressable length of the underlying data.
	Size() (int64, error)
	// Close releases any resources (open file descriptors, mappings)
	// held by the loader.
	Close() error
}

func checkRange(offset, size, total int64) error {
	if offset < 0 || size < 0 {
		return nnerr.New(nnerr.InvalidArgument, "negative offset or size")
	}
	if offset+size > total {
		return nnerr.New(nnerr.AccessFailed, "requested range exceeds data length")
	}
	return nil
}
