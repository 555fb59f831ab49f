// Package fpmath provides the fixed-point and wide-integer arithmetic used by
// the market core. All monetary amounts are uint64 in the asset's smallest
// unit; prices are fixed-point with a 1e12 scale factor; fee rates are basis
// points of 10_000. Multiply-then-divide sequences widen through Uint128 (and
// the TWAP accumulator through Uint256) before narrowing back with explicit
// overflow checks.
package fpmath

import (
	"errors"
	"math/bits"
)

const (
	// BasisPoints is the fixed-point price scale: price = stable * BasisPoints / asset.
	BasisPoints uint64 = 1_000_000_000_000

	// FeeScale is the denominator for fee rates expressed in basis points.
	FeeScale uint64 = 10_000

	// MaxUint64 is the largest representable amount.
	MaxUint64 uint64 = ^uint64(0)
)

var (
	// ErrOverflow indicates a checked arithmetic operation exceeded uint64 range.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrDivideByZero indicates division by a zero denominator.
	ErrDivideByZero = errors.New("division by zero")
)

// CheckedAdd returns a+b or ErrOverflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// CheckedSub returns a-b or ErrOverflow if b > a.
func CheckedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrOverflow
	}
	return diff, nil
}

// CheckedMul returns a*b or ErrOverflow.
func CheckedMul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// SaturatingAdd returns a+b, clamped to MaxUint64.
func SaturatingAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return MaxUint64
	}
	return sum
}

// SaturatingSub returns a-b, clamped to zero.
func SaturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// MulDiv computes a*b/den with a 128-bit intermediate. It fails with
// ErrDivideByZero when den is zero and ErrOverflow when the quotient does not
// fit in a uint64.
func MulDiv(a, b, den uint64) (uint64, error) {
	if den == 0 {
		return 0, ErrDivideByZero
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= den {
		return 0, ErrOverflow
	}
	quo, _ := bits.Div64(hi, lo, den)
	return quo, nil
}

// FeeAmount computes amount * feeBps / FeeScale, rounding down.
func FeeAmount(amount, feeBps uint64) uint64 {
	out, _ := MulDiv(amount, feeBps, FeeScale)
	return out
}

// WithinBps reports whether a and b differ by no more than tolBps basis
// points of the larger value. Used to bound liquidity-deposit ratio drift.
func WithinBps(a, b, tolBps uint64) bool {
	hi, lo := a, b
	if lo > hi {
		hi, lo = lo, hi
	}
	diff := hi - lo
	// diff * FeeScale <= hi * tolBps, compared in 128 bits
	dh, dl := bits.Mul64(diff, FeeScale)
	th, tl := bits.Mul64(hi, tolBps)
	if dh != th {
		return dh < th
	}
	return dl <= tl
}

// Sqrt returns the integer square root of a 128-bit product. The result of
// sqrt(u64 * u64) always fits in a uint64.
func Sqrt(v Uint128) uint64 {
	if v.IsZero() {
		return 0
	}
	// Initial guess: 2^ceil(bitlen/2), then Newton's iteration on Uint128.
	bitLen := v.BitLen()
	shift := (bitLen + 1) / 2
	x := MaxUint64
	if shift < 64 {
		x = uint64(1) << shift
	}
	for {
		// y = (x + v/x) / 2
		q, _ := v.Div64(x)
		if q.Hi != 0 {
			// v/x still exceeds 64 bits; grow the guess.
			x = MaxUint64
			continue
		}
		y := x/2 + q.Lo/2 + (x&q.Lo)&1
		if y >= x {
			return x
		}
		x = y
	}
}
