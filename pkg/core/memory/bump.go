// Package memory implements the three-allocator scheme that lets the
// engine run with zero dynamic allocation at execution time: a bump
// allocator over a caller-supplied buffer, a malloc-backed variant for
// hosts with a general heap, and a hierarchical allocator addressing a
// fixed set of memory-planned arenas.
package memory

import (
	"unsafe"

	"github.com/itohio/nnrt/pkg/core/nnerr"
)

// Allocator is satisfied by both BumpAllocator and MallocAllocator, so
// MemoryManager can hold either as method_allocator/temp_allocator.
type Allocator interface {
	// Allocate returns n bytes aligned to align (which must be a power
	// of two), or an error if the allocator is exhausted. The bytes are
	// not guaranteed to be zeroed: memory reused after Reset is handed
	// back with whatever it last held.
	Allocate(n int, align int) ([]byte, error)
	// Reset rewinds the allocator so future Allocate calls may reuse
	// this memory. Previously returned slices must not be read or
	// written after Reset.
	Reset()
}

// BumpAllocator is a linear (arena/bump) allocator over a
// caller-supplied buffer. It never frees individual allocations and
// never moves previously allocated memory; Reset rewinds the cursor to
// zero, matching spec.md §4.2's bump allocator invariants.
type BumpAllocator struct {
	buf    []byte
	cursor int
}

// NewBumpAllocator wraps buf. buf's backing array is never reallocated
// by the allocator.
func NewBumpAllocator(buf []byte) *BumpAllocator {
	return &BumpAllocator{buf: buf}
}

// Allocate advances the cursor to the next multiple of align, then by
// n bytes, returning the sub-slice at that position. Fails with
// MemoryAllocationFailed if the buffer would be exceeded.
func (a *BumpAllocator) Allocate(n int, align int) ([]byte, error) {
	if n < 0 || align <= 0 || (align&(align-1)) != 0 {
		return nil, nnerr.New(nnerr.InvalidArgument, "invalid allocation request")
	}

	aligned := alignUp(a.cursor, align)
	if aligned+n > len(a.buf) {
		return nil, nnerr.New(nnerr.MemoryAllocationFailed, "bump allocator exhausted")
	}
	a.cursor = aligned + n
	return a.buf[aligned : aligned+n : aligned+n], nil
}

// Reset rewinds the cursor to 0. Memory is not zeroed.
func (a *BumpAllocator) Reset() { a.cursor = 0 }

// Used returns the number of bytes allocated since the last Reset.
func (a *BumpAllocator) Used() int { return a.cursor }

// Capacity returns the size of the backing buffer.
func (a *BumpAllocator) Capacity() int { return len(a.buf) }

// uintptrOf returns the address of buf's first byte, used to compute
// alignment padding. It must not be retained past buf's lifetime.
func uintptrOf(buf []byte) uintptr {
	if len(buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&buf[0]))
}

func alignUp(pos, align int) int {
	if align <= 1 {
		return pos
	}
	rem := pos % align
	if rem == 0 {
		return pos
	}
	return pos + (align - rem)
}

// AllocateArray allocates n elements of T from a, returning a typed
// slice backed by arena memory. It is a thin wrapper around Allocate
// sized/aligned for T.
func AllocateArray[T any](a Allocator, n int) ([]T, error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	align := int(unsafe.Alignof(zero))
	if n == 0 {
		return nil, nil
	}
	buf, err := a.Allocate(size*n, align)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&buf[0])), n), nil
}

// AllocatePinned allocates storage for exactly one T at a stable
// address (stable until the allocator is Reset), matching spec.md
// §4.2's allocate_pinned<T>.
func AllocatePinned[T any](a Allocator) (*T, error) {
	var zero T
	buf, err := a.Allocate(int(unsafe.Sizeof(zero)), int(unsafe.Alignof(zero)))
	if err != nil {
		return nil, err
	}
	return (*T)(unsafe.Pointer(&buf[0])), nil
}
