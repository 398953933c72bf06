// Package mathutil holds small numeric helpers shared by the export
// pipeline.
package mathutil

import "golang.org/x/exp/constraints"

// Clamp returns v limited to the range [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
