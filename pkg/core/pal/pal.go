// Package pal is the platform abstraction layer: the only seam through
// which the core touches the OS. A single process-wide implementation
// table is published once by Init and read by every other package.
//
// Registering a custom Impl before the first Init is the supported
// customization path; registering afterwards is undefined, matching
// spec.md's platform abstraction contract.
package pal

import (
	"sync/atomic"
	"time"
)

// Impl is the set of hooks a platform must provide. Allocate/Free are
// optional: a nil pair is valid and simply means the method loader
// using this pal instance must never fall off the arena-allocation
// path onto a general heap.
type Impl struct {
	Abort         func()
	CurrentTicks  func() uint64
	TicksToNs     func() (num, den uint64)
	EmitLog       func(entry LogEntry)
	Allocate      func(size int) ([]byte, bool)
	Free          func(buf []byte)
}

// LogEntry is passed to Impl.EmitLog for every log line. Fields are the
// teacher's pkg/logger field set (caller, level, message) plus a
// timestamp. There is no separate length field; Msg is a Go string and
// carries its own length.
type LogEntry struct {
	Timestamp uint64
	Level     Level
	File      string
	Func      string
	Line      int
	Msg       string
}

// Level mirrors the handful of levels spec.md's emit_log needs.
type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

var current atomic.Pointer[Impl]

// initialized guards the "before first Init" registration window:
// RegisterImpl is undefined behavior after the first Init per the
// spec, but in Go we can at least detect and refuse it instead of
// silently racing.
var initialized atomic.Bool

// RegisterImpl installs a custom Impl. Must be called before the first
// Init call; calling it afterwards is a no-op (the previous Impl wins)
// rather than undefined behavior, since Go cannot leave this as true UB.
func RegisterImpl(impl *Impl) {
	if initialized.Load() {
		return
	}
	current.Store(impl)
}

// Init performs one-shot setup. The second and later calls are no-ops
// with respect to the registered Impl: whatever was registered (default
// or custom) via RegisterImpl persists. Must be called before any
// worker goroutine that touches the core is spawned.
func Init() {
	if initialized.Swap(true) {
		return
	}
	if current.Load() == nil {
		current.Store(defaultImpl())
	}
}

func get() *Impl {
	impl := current.Load()
	if impl == nil {
		// Init was never called; fall back rather than panic so tests
		// that only exercise a single package don't need to remember
		// pal.Init() in every TestMain.
		return defaultImpl()
	}
	return impl
}

// Abort terminates the process on unrecoverable internal state.
func Abort() { get().Abort() }

// CurrentTicks returns the monotonic clock's current tick count.
func CurrentTicks() uint64 { return get().CurrentTicks() }

// TicksToNs returns the (numerator, denominator) ratio converting a
// tick count into nanoseconds.
func TicksToNs() (num, den uint64) { return get().TicksToNs() }

// EmitLog forwards a log entry to the installed sink. Safe for
// concurrent use, per spec.md §5's shared-resource policy.
func EmitLog(entry LogEntry) { get().EmitLog(entry) }

// Allocate requests size bytes from the platform's general allocator,
// for the rare Method code path that isn't satisfied by arena memory.
// Returns ok=false if the platform has no general allocator (e.g. a
// microcontroller build running only off caller-supplied buffers).
func Allocate(size int) ([]byte, bool) {
	impl := get()
	if impl.Allocate == nil {
		return nil, false
	}
	return impl.Allocate(size)
}

// Free releases memory obtained from Allocate.
func Free(buf []byte) {
	impl := get()
	if impl.Free != nil {
		impl.Free(buf)
	}
}

func defaultImpl() *Impl {
	start := time.Now()
	return &Impl{
		Abort:        func() { panic("pal: abort") },
		CurrentTicks: func() uint64 { return uint64(time.Since(start)) },
		TicksToNs:    func() (uint64, uint64) { return 1, 1 },
		EmitLog:      defaultEmitLog,
	}
}
