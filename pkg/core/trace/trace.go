// Package trace defines the event-tracer seam. The core only ever calls
// these three hooks around instruction dispatch; the actual profiling
// sink (chrome-trace export, perfetto, a ring buffer) lives entirely
// outside the core, per spec.md §1's "event-tracing/profiling sink
// format" Non-goal.
package trace

// EventTracer brackets instruction execution. Enter/Exit calls are
// always paired within a single execute() call, in LIFO order for
// nested delegate sub-graphs.
type EventTracer interface {
	Enter(name string) (token Token)
	Exit(token Token)
	Log(msg string)
}

// Token is an opaque tracer-defined handle threaded from Enter to the
// matching Exit. The core never inspects it.
type Token any

// Nop is an EventTracer that discards everything; the zero value is
// ready to use and is the default when a Method is loaded without an
// explicit tracer.
type Nop struct{}

func (Nop) Enter(string) Token { return nil }
func (Nop) Exit(Token)         {}
func (Nop) Log(string)         {}

var _ EventTracer = Nop{}
