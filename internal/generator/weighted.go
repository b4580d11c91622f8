package generator

import (
	"github.com/cockroachdb/errors"

	"github.com/leapstack-labs/leapfuzz/internal/random"
)

// branch is one weighted alternative of a choice. Weights are computed from
// catalog state before the draw; a zero weight disables the branch.
type branch[T any] struct {
	name   string
	weight uint32
	build  func() T
}

// on returns weight when cond holds and zero otherwise.
func on(cond bool, weight uint32) uint32 {
	if cond {
		return weight
	}
	return 0
}

// Pick draws an index into weights with probability proportional to its
// weight: a uniform draw in [1, total] selects the first index whose
// cumulative weight reaches it. An all-zero table is an invariant
// violation.
func Pick(rng *random.Generator, weights []uint32) int {
	var total uint32
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		panic(errors.AssertionFailedf("weighted choice over %d branches has no feasible branch", len(weights)))
	}
	draw := rng.RandomInt(1, total)
	var acc uint32
	for i, w := range weights {
		acc += w
		if w > 0 && draw <= acc {
			return i
		}
	}
	panic(errors.AssertionFailedf("weighted draw %d outside total %d", draw, total))
}

// choose picks one branch of branches and runs its builder.
func choose[T any](rng *random.Generator, branches []branch[T]) T {
	weights := make([]uint32, len(branches))
	for i, b := range branches {
		weights[i] = b.weight
	}
	return branches[Pick(rng, weights)].build()
}

// feasible reports whether any branch has a non-zero weight.
func feasible[T any](branches []branch[T]) bool {
	for _, b := range branches {
		if b.weight > 0 {
			return true
		}
	}
	return false
}
