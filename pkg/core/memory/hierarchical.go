package memory

import "github.com/itohio/nnrt/pkg/core/nnerr"

// HierarchicalAllocator addresses a fixed set of memory-planned arenas
// by id, one BumpAllocator per arena. The memory planner assigns every
// tensor in a method to an arena id ahead of time; at load time the
// arena sizes it computed are handed to this allocator so tensor data
// pointers can be placed deterministically.
type HierarchicalAllocator struct {
	arenas []*BumpAllocator
}

// NewHierarchicalAllocator wraps one backing buffer per arena, indexed
// by position: arenas[i] backs arena id i.
func NewHierarchicalAllocator(arenas [][]byte) *HierarchicalAllocator {
	h := &HierarchicalAllocator{arenas: make([]*BumpAllocator, len(arenas))}
	for i, buf := range arenas {
		h.arenas[i] = NewBumpAllocator(buf)
	}
	return h
}

// NumArenas returns the number of arenas this allocator addresses.
func (h *HierarchicalAllocator) NumArenas() int { return len(h.arenas) }

// GetOffsetAddress returns the n-byte slice at byte offset offsetBytes
// within arena arenaID. This is how planned tensors are placed: the
// memory plan recorded at export time fixes both arenaID and
// offsetBytes for every planned tensor.
func (h *HierarchicalAllocator) GetOffsetAddress(arenaID int, offsetBytes int, n int) ([]byte, error) {
	if arenaID < 0 || arenaID >= len(h.arenas) {
		return nil, nnerr.New(nnerr.InvalidArgument, "arena id out of range")
	}
	buf := h.arenas[arenaID].buf
	if offsetBytes < 0 || offsetBytes+n > len(buf) {
		return nil, nnerr.New(nnerr.MemoryAllocationFailed, "planned offset exceeds arena size")
	}
	return buf[offsetBytes : offsetBytes+n : offsetBytes+n], nil
}

// Reset rewinds every arena. Used between loads of independent
// methods sharing one allocator; within a single method's lifetime,
// planned placements are fixed and Reset is not called.
func (h *HierarchicalAllocator) Reset() {
	for _, a := range h.arenas {
		a.Reset()
	}
}
