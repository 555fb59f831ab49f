package fpmath

import "math/bits"

// Uint128 is an unsigned 128-bit integer built from two uint64 limbs. It is
// the working width for price and reserve products: u64 reserves multiplied
// together, or a u64 amount scaled by BasisPoints, always fit.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// U128From64 lifts a uint64 into a Uint128.
func U128From64(v uint64) Uint128 {
	return Uint128{Lo: v}
}

// Mul64 returns the full 128-bit product a*b.
func Mul64(a, b uint64) Uint128 {
	hi, lo := bits.Mul64(a, b)
	return Uint128{Hi: hi, Lo: lo}
}

// IsZero reports whether v == 0.
func (v Uint128) IsZero() bool {
	return v.Hi == 0 && v.Lo == 0
}

// BitLen returns the minimum number of bits required to represent v.
func (v Uint128) BitLen() int {
	if v.Hi != 0 {
		return 64 + bits.Len64(v.Hi)
	}
	return bits.Len64(v.Lo)
}

// Cmp returns -1, 0 or 1 comparing v with o.
func (v Uint128) Cmp(o Uint128) int {
	switch {
	case v.Hi != o.Hi:
		if v.Hi < o.Hi {
			return -1
		}
		return 1
	case v.Lo != o.Lo:
		if v.Lo < o.Lo {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// Add returns v+o or ErrOverflow on wraparound.
func (v Uint128) Add(o Uint128) (Uint128, error) {
	lo, carry := bits.Add64(v.Lo, o.Lo, 0)
	hi, carry := bits.Add64(v.Hi, o.Hi, carry)
	if carry != 0 {
		return Uint128{}, ErrOverflow
	}
	return Uint128{Hi: hi, Lo: lo}, nil
}

// Sub returns v-o or ErrOverflow if o > v.
func (v Uint128) Sub(o Uint128) (Uint128, error) {
	lo, borrow := bits.Sub64(v.Lo, o.Lo, 0)
	hi, borrow := bits.Sub64(v.Hi, o.Hi, borrow)
	if borrow != 0 {
		return Uint128{}, ErrOverflow
	}
	return Uint128{Hi: hi, Lo: lo}, nil
}

// Add64 returns v+o or ErrOverflow on wraparound.
func (v Uint128) Add64(o uint64) (Uint128, error) {
	return v.Add(U128From64(o))
}

// Div64 divides v by a 64-bit divisor, returning quotient and remainder.
func (v Uint128) Div64(d uint64) (Uint128, uint64) {
	if d == 0 {
		return Uint128{}, 0
	}
	qhi := v.Hi / d
	rem := v.Hi % d
	qlo, rem := bits.Div64(rem, v.Lo, d)
	return Uint128{Hi: qhi, Lo: qlo}, rem
}

// To64 narrows v to a uint64, failing with ErrOverflow when it does not fit.
func (v Uint128) To64() (uint64, error) {
	if v.Hi != 0 {
		return 0, ErrOverflow
	}
	return v.Lo, nil
}
