// Package safemath provides overflow-checked arithmetic for stake sums and
// generation/round bookkeeping, where silent wraparound would corrupt a
// supermajority computation.
package safemath

import (
	"errors"
	"math"
)

var ErrOverflow = errors.New("overflow")

// Add64 returns a + b, erroring instead of wrapping on overflow.
func Add64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Min returns the smaller of a and b.
func Min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
