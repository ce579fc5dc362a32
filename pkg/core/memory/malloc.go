package memory

import (
	"github.com/itohio/nnrt/pkg/core/nnerr"
	"github.com/itohio/nnrt/pkg/core/pal"
)

// MallocAllocator is the general-heap counterpart to BumpAllocator: it
// backs each Allocate with a request to the platform's general
// allocator rather than carving from a fixed arena, for hosts willing
// to trade determinism for not having to size a buffer up front. A
// platform with no general allocator (pal.Allocate returning ok=false)
// falls back to a plain Go allocation, so this type stays usable on
// hosts that never registered one. Reset releases everything allocated
// since the last Reset through pal.Free.
type MallocAllocator struct {
	live [][]byte
}

// NewMallocAllocator returns an allocator with no fixed capacity.
func NewMallocAllocator() *MallocAllocator {
	return &MallocAllocator{}
}

// Allocate returns a fresh, zeroed n-byte slice. align is honored by
// over-allocating and trimming to an aligned sub-slice; pal's general
// allocator (or Go's runtime allocator, on the fallback path) already
// aligns generously enough that this rarely costs more than a few
// bytes.
func (a *MallocAllocator) Allocate(n int, align int) ([]byte, error) {
	if n < 0 || align <= 0 || (align&(align-1)) != 0 {
		return nil, nnerr.New(nnerr.InvalidArgument, "invalid allocation request")
	}
	if n == 0 {
		return nil, nil
	}
	buf, ok := pal.Allocate(n + align)
	if !ok {
		buf = make([]byte, n+align)
	}
	addr := uintptrOf(buf)
	pad := alignUp(int(addr), align) - int(addr)
	out := buf[pad : pad+n : pad+n]
	a.live = append(a.live, buf)
	return out, nil
}

// Reset releases every slice handed out since construction or the
// last Reset back to the platform allocator.
func (a *MallocAllocator) Reset() {
	for _, buf := range a.live {
		pal.Free(buf)
	}
	a.live = a.live[:0]
}

// Count returns the number of outstanding allocations since the last
// Reset, mainly useful from tests.
func (a *MallocAllocator) Count() int { return len(a.live) }
