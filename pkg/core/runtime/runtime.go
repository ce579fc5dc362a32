// Package runtime drives a loaded method through its execution state
// machine: Ready, Inputs_Partial, Inputs_Full, Executing, Executed, per
// spec.md §4.5. It owns no method-loading logic of its own; that lives
// in pkg/core/method.
package runtime

import (
	"github.com/itohio/nnrt/pkg/core/method"
	"github.com/itohio/nnrt/pkg/core/nnerr"
	"github.com/itohio/nnrt/pkg/core/trace"
	"github.com/itohio/nnrt/pkg/core/value"
)

// State is one state of the execution engine's state machine.
type State int

const (
	// Ready: no execution in progress; inputs from the previous
	// execution (if any) are stale.
	Ready State = iota
	// InputsPartial: start_execution was called but not every input has
	// been set yet.
	InputsPartial
	// InputsFull: every input has been set; execute() may run.
	InputsFull
	// Executing: execute() is in progress.
	Executing
	// Executed: execute() completed successfully; outputs are readable.
	Executed
)

func (s State) String() string {
	switch s {
	case Ready:
		return "Ready"
	case InputsPartial:
		return "Inputs_Partial"
	case InputsFull:
		return "Inputs_Full"
	case Executing:
		return "Executing"
	case Executed:
		return "Executed"
	default:
		return "Unknown"
	}
}

// Execution drives one *method.Method through the engine's state
// machine. It is not safe for concurrent use: a Method is
// strictly single-threaded per spec.md §5.
type Execution struct {
	m      *method.Method
	tracer trace.EventTracer

	state   State
	pending []bool
	missing int
}

// New wraps m for state-machine-driven execution. tracer may be nil,
// in which case instruction execution is untraced.
func New(m *method.Method, tracer trace.EventTracer) *Execution {
	if tracer == nil {
		tracer = trace.Nop{}
	}
	return &Execution{m: m, tracer: tracer, state: Ready}
}

// State returns the engine's current state.
func (e *Execution) State() State { return e.state }

// StartExecution transitions Ready (or Executed, beginning the next
// cycle) -> Inputs_Partial, or straight to Inputs_Full if the method
// takes zero inputs. InvalidState from Inputs_Partial/Inputs_Full/
// Executing.
func (e *Execution) StartExecution() error {
	if e.state != Ready && e.state != Executed {
		return nnerr.New(nnerr.InvalidState, "start_execution requires Ready or Executed")
	}
	n := e.m.NumInputs()
	e.pending = make([]bool, n)
	e.missing = n
	if n == 0 {
		e.state = InputsFull
	} else {
		e.state = InputsPartial
	}
	return nil
}

// SetInput binds v to input slot i. Requires Inputs_Partial or
// Inputs_Full (re-setting an already-set input is allowed, matching
// the bitset semantics of spec.md §4.5 — only the missing count is
// tracked, not a forbid-overwrite rule). Transitions to Inputs_Full
// once every input has been set at least once.
func (e *Execution) SetInput(i int, v value.Value) error {
	if e.state != InputsPartial && e.state != InputsFull {
		return nnerr.New(nnerr.InvalidState, "set_input requires Inputs_Partial or Inputs_Full")
	}
	if i < 0 || i >= len(e.pending) {
		return nnerr.New(nnerr.InvalidArgument, "set_input index out of range")
	}
	if err := e.m.SetInputSlot(i, v); err != nil {
		return err
	}
	if !e.pending[i] {
		e.pending[i] = true
		e.missing--
	}
	if e.missing == 0 {
		e.state = InputsFull
	}
	return nil
}

// Execute requires Inputs_Full, runs every instruction in order, and
// transitions to Executed on success. On instruction failure it aborts
// the remaining instructions and transitions back to Ready,
// propagating the error.
func (e *Execution) Execute() error {
	if e.state != InputsFull {
		return nnerr.New(nnerr.InvalidArgument, "execute requires Inputs_Full")
	}
	e.state = Executing
	if err := e.m.RunInstructions(e.tracer); err != nil {
		e.state = Ready
		return err
	}
	e.state = Executed
	return nil
}

// GetOutput returns a borrowed Value from the value table. Its payload
// is stable until the next Execute() call. Requires Executed.
func (e *Execution) GetOutput(i int) (*value.Value, error) {
	if e.state != Executed {
		return nil, nnerr.New(nnerr.InvalidState, "get_output requires Executed")
	}
	return e.m.OutputSlot(i)
}

// Reset returns the engine to Ready, discarding input-set bookkeeping,
// so the same Method can be driven through another start_execution.
func (e *Execution) Reset() {
	e.state = Ready
	e.pending = nil
	e.missing = 0
}
