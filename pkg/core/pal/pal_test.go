package pal

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitIdempotent(t *testing.T) {
	initialized.Store(false)
	current.Store(nil)

	var calls int
	custom := &Impl{
		Abort:        func() {},
		CurrentTicks: func() uint64 { calls++; return 42 },
		TicksToNs:    func() (uint64, uint64) { return 1, 1e9 },
		EmitLog:      func(LogEntry) {},
	}
	RegisterImpl(custom)
	Init()
	Init() // second call must be a no-op w.r.t. the registered impl

	require.Equal(t, uint64(42), CurrentTicks())
	assert.Equal(t, 1, calls)

	// Registering again after Init is undefined-but-ignored: the
	// custom impl must persist.
	RegisterImpl(&Impl{
		Abort:        func() {},
		CurrentTicks: func() uint64 { return 0 },
		TicksToNs:    func() (uint64, uint64) { return 1, 1 },
		EmitLog:      func(LogEntry) {},
	})
	assert.Equal(t, uint64(42), CurrentTicks())
}

func TestAllocateWithoutImplIsUnsupported(t *testing.T) {
	initialized.Store(false)
	current.Store(nil)
	RegisterImpl(&Impl{
		Abort:        func() {},
		CurrentTicks: func() uint64 { return 0 },
		TicksToNs:    func() (uint64, uint64) { return 1, 1 },
		EmitLog:      func(LogEntry) {},
		// Allocate left nil: no general allocator on this platform.
	})
	Init()

	buf, ok := Allocate(16)
	assert.False(t, ok)
	assert.Nil(t, buf)
}

func TestEmitLogConcurrentSafe(t *testing.T) {
	initialized.Store(false)
	current.Store(nil)
	var mu sync.Mutex
	var n int
	RegisterImpl(&Impl{
		Abort:        func() {},
		CurrentTicks: func() uint64 { return 0 },
		TicksToNs:    func() (uint64, uint64) { return 1, 1 },
		EmitLog: func(LogEntry) {
			mu.Lock()
			n++
			mu.Unlock()
		},
	})
	Init()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			EmitLog(LogEntry{Msg: "hi"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, n)
}
