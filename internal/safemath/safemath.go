package safemath

import (
	"errors"
	"math/bits"
)

var ErrOverflow = errors.New("number overflow")

func Add32(a, b uint32) (uint32, bool) {
	v, carry := bits.Add32(a, b, 0)
	return v, carry == 0
}

func Add64(a, b uint64) (uint64, bool) {
	v, carry := bits.Add64(a, b, 0)
	return v, carry == 0
}

func Sub32(a, b uint32) (uint32, bool) {
	v, borrow := bits.Sub32(a, b, 0)
	return v, borrow == 0
}

func Sub64(a, b uint64) (uint64, bool) {
	v, borrow := bits.Sub64(a, b, 0)
	return v, borrow == 0
}

// AddBounded adds a and b and reports false if the sum does not fit in
// limit, which must be an all-ones mask such as 1<<48 - 1.
func AddBounded(a, b, limit uint64) (uint64, bool) {
	v, ok := Add64(a, b)
	if !ok || v > limit {
		return 0, false
	}
	return v, true
}
