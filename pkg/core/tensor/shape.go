package tensor

import "github.com/itohio/nnrt/pkg/core/nnerr"

// canonicalStrides computes the canonical dense strides induced by
// sizes under dimOrder: visiting axes inner-to-outer in dimOrder order,
// each stride equals the running product of inner extents.
//
// Grounded on pkg/core/math/tensor/shape.go's Shape.Strides (row-major
// strides) generalized from a fixed inner-to-outer axis order to an
// arbitrary dim_order permutation.
func canonicalStrides(sizes, dimOrder []int) []int {
	n := len(sizes)
	strides := make([]int, n)
	running := 1
	for i := 0; i < n; i++ {
		axis := dimOrder[n-1-i]
		strides[axis] = running
		running *= sizes[axis]
	}
	return strides
}

// isPermutation reports whether order is a permutation of 0..n.
func isPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, v := range order {
		if v < 0 || v >= n || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

func validateShape(sizes, dimOrder, strides []int) error {
	n := len(sizes)
	if len(dimOrder) != n || len(strides) != n {
		return nnerr.New(nnerr.InvalidArgument, "sizes/dim_order/strides length mismatch")
	}
	for _, s := range sizes {
		if s < 0 {
			return nnerr.New(nnerr.InvalidArgument, "negative extent in sizes")
		}
	}
	if !isPermutation(dimOrder, n) {
		return nnerr.New(nnerr.InvalidArgument, "dim_order is not a permutation of 0..ndim")
	}
	want := canonicalStrides(sizes, dimOrder)
	for i := range want {
		if strides[i] != want[i] {
			return nnerr.New(nnerr.InvalidArgument, "strides are not the canonical dense strides for dim_order")
		}
	}
	return nil
}

// Numel returns the product of sizes (1 for a 0-dim scalar).
func Numel(sizes []int) int {
	n := 1
	for _, s := range sizes {
		n *= s
	}
	return n
}
