package memory

// Manager bundles the three allocators a loaded method draws from, per
// spec.md §4.2: method_allocator backs persistent method-lifetime
// metadata (the value table, kernel contexts), planned_memory places
// tensors whose offsets the memory planner fixed ahead of time, and
// temp_allocator backs scratch space reclaimed after every kernel call.
type Manager struct {
	MethodAllocator Allocator
	PlannedMemory   *HierarchicalAllocator
	TempAllocator   Allocator
}

// NewManager assembles a Manager from its three parts. Any may be nil
// if a method has no need for it (for instance a method with no
// planned tensors needs no PlannedMemory).
func NewManager(methodAllocator Allocator, planned *HierarchicalAllocator, temp Allocator) *Manager {
	return &Manager{
		MethodAllocator: methodAllocator,
		PlannedMemory:   planned,
		TempAllocator:   temp,
	}
}

// ResetTemp rewinds the temp allocator. Called by the execution engine
// after every kernel invocation so temporaries never accumulate across
// a method's op list.
func (m *Manager) ResetTemp() {
	if m.TempAllocator != nil {
		m.TempAllocator.Reset()
	}
}
