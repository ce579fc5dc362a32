package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/nnrt/pkg/core/tensor"
	"github.com/itohio/nnrt/pkg/core/value"
)

func TestRegistryResolvesExactOverload(t *testing.T) {
	r := NewRegistry()
	called := false
	err := r.Register("aten::add.out", []value.Tag{value.TensorTag, value.TensorTag, value.TensorTag}, func(args []*value.Value) error {
		called = true
		return nil
	})
	require.NoError(t, err)

	fn, err := r.Resolve("aten::add.out", []value.Tag{value.TensorTag, value.TensorTag, value.TensorTag})
	require.NoError(t, err)
	require.NoError(t, fn(nil))
	assert.True(t, called)
}

func TestRegistryMissingOperatorIsOperatorMissing(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("aten::missing", []value.Tag{value.Int})
	assert.Error(t, err)
}

func TestRegistryMismatchedSignatureIsOperatorMissing(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("aten::add.out", []value.Tag{value.TensorTag}, func(args []*value.Value) error { return nil }))

	_, err := r.Resolve("aten::add.out", []value.Tag{value.Int})
	assert.Error(t, err)
}

func TestRegistryRejectsDuplicateOverload(t *testing.T) {
	r := NewRegistry()
	sig := []value.Tag{value.Int}
	require.NoError(t, r.Register("op", sig, func(args []*value.Value) error { return nil }))
	err := r.Register("op", sig, func(args []*value.Value) error { return nil })
	assert.Error(t, err)
}

type fakeDelegate struct{}

func (fakeDelegate) Init(ctx InitContext) (Handle, error)          { return "handle", nil }
func (fakeDelegate) Execute(h Handle, in, out []tensor.Tensor) error { return nil }
func (fakeDelegate) Destroy(h Handle) error                         { return nil }

func TestDelegateRegistryResolve(t *testing.T) {
	r := NewDelegateRegistry()
	r.Register("cpu", fakeDelegate{})

	d, err := r.Resolve("cpu")
	require.NoError(t, err)
	h, err := d.Init(InitContext{})
	require.NoError(t, err)
	assert.Equal(t, "handle", h)
}

func TestDelegateRegistryUnknownBackend(t *testing.T) {
	r := NewDelegateRegistry()
	_, err := r.Resolve("gpu")
	assert.Error(t, err)
}
