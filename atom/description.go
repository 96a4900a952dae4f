package atom

import (
	"fmt"
	"hash/fnv"
)

// DescriptionKey is a stable hash of a ground linear constraint — its
// normalized (sense, bound, sorted (coeff, var) pairs) tuple — used as
// the cache coordinate (spec.md §3, §4.1, and Design Notes: "a 64-bit
// hash of a normalized ... tuple").
type DescriptionKey uint64

// Describe computes the DescriptionKey for a grounded expression under
// the given sense and bound.
func Describe(expr Expr, sense Sense, bound float64) DescriptionKey {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%g", sense, bound)
	for _, t := range expr.Normalize() {
		fmt.Fprintf(h, "|%s:%g", t.Var, t.Coeff)
	}
	return DescriptionKey(h.Sum64())
}
