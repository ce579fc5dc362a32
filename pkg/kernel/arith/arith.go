// Package arith provides a small set of concrete elementwise kernels
// (add, mul, relu) for float32 tensors, usable out of the box against
// method programs that reference them by name.
package arith

import (
	"github.com/chewxy/math32"
	gt "gorgonia.org/tensor"

	"github.com/itohio/nnrt/pkg/core/dtype"
	"github.com/itohio/nnrt/pkg/core/kernel"
	"github.com/itohio/nnrt/pkg/core/nnerr"
	"github.com/itohio/nnrt/pkg/core/tensor"
	"github.com/itohio/nnrt/pkg/core/value"
)

var (
	binarySig = []value.Tag{value.TensorTag, value.TensorTag, value.TensorTag}
	unarySig  = []value.Tag{value.TensorTag, value.TensorTag}
)

// Register installs aten::add.out, aten::mul.out and aten::relu.out
// into r.
func Register(r *kernel.Registry) error {
	if err := r.Register("aten::add.out", binarySig, addOut); err != nil {
		return err
	}
	if err := r.Register("aten::mul.out", binarySig, mulOut); err != nil {
		return err
	}
	if err := r.Register("aten::relu.out", unarySig, reluOut); err != nil {
		return err
	}
	return nil
}

func addOut(args []*value.Value) error { return binaryOut(args, gt.Add) }
func mulOut(args []*value.Value) error { return binaryOut(args, gt.Mul) }

type binaryOp func(a, b gt.Tensor, opts ...gt.FuncOpt) (gt.Tensor, error)

func binaryOut(args []*value.Value, op binaryOp) error {
	a, err := args[0].AsTensor()
	if err != nil {
		return err
	}
	b, err := args[1].AsTensor()
	if err != nil {
		return err
	}
	out, err := args[2].AsTensor()
	if err != nil {
		return err
	}

	da, err := toDense(a)
	if err != nil {
		return err
	}
	db, err := toDense(b)
	if err != nil {
		return err
	}

	result, err := op(da, db)
	if err != nil {
		return nnerr.New(nnerr.InvalidArgument, err.Error())
	}
	dense, ok := result.(*gt.Dense)
	if !ok {
		return nnerr.New(nnerr.InvalidState, "arith: unexpected result tensor type")
	}
	return copyDenseInto(out, dense)
}

// reluOut computes max(x, 0) elementwise via math32, without routing
// through gorgonia.org/tensor: no top-level Relu helper exists there,
// and the per-element formula is cheap to apply directly.
func reluOut(args []*value.Value) error {
	in, err := args[0].AsTensor()
	if err != nil {
		return err
	}
	out, err := args[1].AsTensor()
	if err != nil {
		return err
	}
	inImpl, outImpl := in.Impl(), out.Impl()
	if inImpl.ScalarType() != dtype.Float || outImpl.ScalarType() != dtype.Float {
		return nnerr.New(nnerr.InvalidType, "arith.relu: only Float tensors are supported")
	}
	n := inImpl.Numel()
	for i := 0; i < n; i++ {
		coords := flatCoords(inImpl.Sizes(), i)
		v, ok := inImpl.At(coords...)
		if !ok {
			return nnerr.New(nnerr.InvalidArgument, "arith.relu: input element unreadable")
		}
		r := math32.Max(float32(v), 0)
		if !outImpl.SetAt(float64(r), flatCoords(outImpl.Sizes(), i)...) {
			return nnerr.New(nnerr.InvalidArgument, "arith.relu: output element unwritable")
		}
	}
	return nil
}

// toDense copies t's elements into a row-major float32 gorgonia Dense
// tensor. Only dtype.Float tensors are supported; tensor.Impl exposes
// no raw-slice accessor, so elements are read out one at a time
// through At, mirroring the copy path pkg/core/method uses for
// set_input.
func toDense(t tensor.Tensor) (*gt.Dense, error) {
	impl := t.Impl()
	if impl.ScalarType() != dtype.Float {
		return nil, nnerr.New(nnerr.InvalidType, "arith: only Float tensors are supported")
	}
	sizes := impl.Sizes()
	n := impl.Numel()
	data := make([]float32, n)
	for i := 0; i < n; i++ {
		v, ok := impl.At(flatCoords(sizes, i)...)
		if !ok {
			return nil, nnerr.New(nnerr.InvalidArgument, "arith: tensor element unreadable")
		}
		data[i] = float32(v)
	}
	shape := append([]int(nil), sizes...)
	if len(shape) == 0 {
		shape = []int{1}
	}
	return gt.New(gt.WithShape(shape...), gt.WithBacking(data)), nil
}

// copyDenseInto writes d's row-major float32 data back into out.
func copyDenseInto(out tensor.Tensor, d *gt.Dense) error {
	data, ok := d.Data().([]float32)
	if !ok {
		return nnerr.New(nnerr.InvalidState, "arith: result tensor is not float32")
	}
	impl := out.Impl()
	if impl.Numel() != len(data) {
		return nnerr.New(nnerr.InvalidArgument, "arith: result size does not match output tensor")
	}
	sizes := impl.Sizes()
	for i, v := range data {
		if !impl.SetAt(float64(v), flatCoords(sizes, i)...) {
			return nnerr.New(nnerr.InvalidArgument, "arith: output element unwritable")
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
