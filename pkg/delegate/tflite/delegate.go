// Package tflite bridges a delegate instruction's sub-graph blob to a
// real TFLite interpreter, implementing kernel.Delegate.
package tflite

import (
	"fmt"

	tflite "github.com/mattn/go-tflite"

	"github.com/itohio/nnrt/pkg/core/kernel"
	"github.com/itohio/nnrt/pkg/core/nnerr"
	"github.com/itohio/nnrt/pkg/core/tensor"
)

// Delegate loads a TFLite flatbuffer sub-graph into an interpreter on
// Init and drives it on Execute. One Delegate instance may back
// multiple resolved instructions; each gets its own handle.
type Delegate struct {
	// NumThreads configures the interpreter's thread pool. Zero uses
	// the TFLite default.
	NumThreads int
}

// handle is the per-instruction state kept alive between Init and
// Destroy.
type handle struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
}

// New returns a Delegate with default interpreter options.
func New() *Delegate { return &Delegate{} }

// Init loads ctx.Blob as a TFLite model and allocates its interpreter.
func (d *Delegate) Init(ctx kernel.InitContext) (kernel.Handle, error) {
	if len(ctx.Blob) == 0 {
		return nil, nnerr.New(nnerr.DelegateInvalidCompatibility, "tflite delegate: empty sub-graph blob")
	}

	model := tflite.NewModel(ctx.Blob)
	if model == nil {
		return nil, nnerr.New(nnerr.DelegateMemoryAllocationFailed, "tflite delegate: failed to parse model")
	}

	options := tflite.NewInterpreterOptions()
	if options == nil {
		model.Delete()
		return nil, nnerr.New(nnerr.DelegateMemoryAllocationFailed, "tflite delegate: failed to create interpreter options")
	}
	if d.NumThreads > 0 {
		options.SetNumThread(d.NumThreads)
	}

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, nnerr.New(nnerr.DelegateMemoryAllocationFailed, "tflite delegate: failed to create interpreter")
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		options.Delete()
		model.Delete()
		return nil, nnerr.New(nnerr.DelegateMemoryAllocationFailed, fmt.Sprintf("tflite delegate: AllocateTensors failed with status %d", status))
	}

	return &handle{model: model, options: options, interpreter: interpreter}, nil
}

// Execute copies inputs into the interpreter's input tensors in order,
// invokes it, and copies its output tensors back into outputs.
func (d *Delegate) Execute(h kernel.Handle, inputs, outputs []tensor.Tensor) error {
	hd, ok := h.(*handle)
	if !ok || hd == nil || hd.interpreter == nil {
		return nnerr.New(nnerr.InvalidState, "tflite delegate: invalid or destroyed handle")
	}

	if hd.interpreter.GetInputTensorCount() != len(inputs) {
		return nnerr.New(nnerr.InvalidArgument, fmt.Sprintf("tflite delegate: expected %d inputs, got %d", hd.interpreter.GetInputTensorCount(), len(inputs)))
	}
	if hd.interpreter.GetOutputTensorCount() != len(outputs) {
		return nnerr.New(nnerr.InvalidArgument, fmt.Sprintf("tflite delegate: expected %d outputs, got %d", hd.interpreter.GetOutputTensorCount(), len(outputs)))
	}

	for i, in := range inputs {
		tfTensor := hd.interpreter.GetInputTensor(i)
		if tfTensor == nil {
			return nnerr.New(nnerr.InvalidState, "tflite delegate: missing input tensor")
		}
		if err := copyInto(tfTensor, in); err != nil {
			return err
		}
	}

	if status := hd.interpreter.Invoke(); status != tflite.OK {
		return nnerr.New(nnerr.DelegateInvalidCompatibility, fmt.Sprintf("tflite delegate: invoke failed with status %d", status))
	}

	for i, out := range outputs {
		tfTensor := hd.interpreter.GetOutputTensor(i)
		if tfTensor == nil {
			return nnerr.New(nnerr.InvalidState, "tflite delegate: missing output tensor")
		}
		if err := copyFrom(out, tfTensor); err != nil {
			return err
		}
	}
	return nil
}

// Destroy tears down the interpreter, its options, and its model, in
// that order (interpreter holds references into the other two).
func (d *Delegate) Destroy(h kernel.Handle) error {
	hd, ok := h.(*handle)
	if !ok || hd == nil {
		return nnerr.New(nnerr.InvalidArgument, "tflite delegate: not a handle produced by this delegate")
	}
	if hd.interpreter != nil {
		hd.interpreter.Delete()
		hd.interpreter = nil
	}
	if hd.options != nil {
		hd.options.Delete()
		hd.options = nil
	}
	if hd.model != nil {
		hd.model.Delete()
		hd.model = nil
	}
	return nil
}

// copyInto copies src's elements into a TFLite tensor, always through a
// float32 buffer whatever the TFLite tensor's element type.
func copyInto(dst *tflite.Tensor, src tensor.Tensor) error {
	impl := src.Impl()
	n := impl.Numel()
	buf := make([]float32, n)
	for i := 0; i < n; i++ {
		v, ok := impl.At(flatCoords(impl.Sizes(), i)...)
		if !ok {
			return nnerr.New(nnerr.InvalidArgument, "tflite delegate: input tensor element unreadable")
		}
		buf[i] = float32(v)
	}
	if status := dst.CopyFromBuffer(buf); status != tflite.OK {
		return nnerr.New(nnerr.DelegateInvalidCompatibility, fmt.Sprintf("tflite delegate: CopyFromBuffer failed with status %d", status))
	}
	return nil
}

// copyFrom copies a TFLite tensor's elements into dst.
func copyFrom(dst tensor.Tensor, src *tflite.Tensor) error {
	impl := dst.Impl()
	n := impl.Numel()
	buf := make([]float32, n)
	if status := src.CopyToBuffer(buf); status != tflite.OK {
		return nnerr.New(nnerr.DelegateInvalidCompatibility, fmt.Sprintf("tflite delegate: CopyToBuffer failed with status %d", status))
	}
	for i := 0; i < n; i++ {
		if !impl.SetAt(float64(buf[i]), flatCoords(impl.Sizes(), i)...) {
			return nnerr.New(nnerr.InvalidArgument, "tflite delegate: output tensor element unwritable")
		}
	}
	return nil
}

func flatCoords(sizes []int, idx int) []int {
	coords := make([]int, len(sizes))
	for i := len(sizes) - 1; i >= 0; i-- {
		if sizes[i] == 0 {
			continue
		}
		coords[i] = idx % sizes[i]
		idx /= sizes[i]
	}
	return coords
}
