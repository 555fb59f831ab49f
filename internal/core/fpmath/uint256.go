package fpmath

import "math/bits"

// Uint256 is an unsigned 256-bit integer from four uint64 limbs, least
// significant first. It backs the oracle's cumulative price register, which
// integrates price (up to 128 bits) times elapsed milliseconds and must not
// wrap over a market's lifetime.
type Uint256 struct {
	Limbs [4]uint64
}

// IsZero reports whether v == 0.
func (v Uint256) IsZero() bool {
	return v.Limbs[0] == 0 && v.Limbs[1] == 0 && v.Limbs[2] == 0 && v.Limbs[3] == 0
}

// Cmp returns -1, 0 or 1 comparing v with o.
func (v Uint256) Cmp(o Uint256) int {
	for i := 3; i >= 0; i-- {
		if v.Limbs[i] != o.Limbs[i] {
			if v.Limbs[i] < o.Limbs[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// AddU128 returns v plus a 128-bit addend, or ErrOverflow on wraparound.
func (v Uint256) AddU128(o Uint128) (Uint256, error) {
	var out Uint256
	var carry uint64
	out.Limbs[0], carry = bits.Add64(v.Limbs[0], o.Lo, 0)
	out.Limbs[1], carry = bits.Add64(v.Limbs[1], o.Hi, carry)
	out.Limbs[2], carry = bits.Add64(v.Limbs[2], 0, carry)
	out.Limbs[3], carry = bits.Add64(v.Limbs[3], 0, carry)
	if carry != 0 {
		return Uint256{}, ErrOverflow
	}
	return out, nil
}

// Sub returns v-o or ErrOverflow if o > v.
func (v Uint256) Sub(o Uint256) (Uint256, error) {
	var out Uint256
	var borrow uint64
	for i := 0; i < 4; i++ {
		out.Limbs[i], borrow = bits.Sub64(v.Limbs[i], o.Limbs[i], borrow)
	}
	if borrow != 0 {
		return Uint256{}, ErrOverflow
	}
	return out, nil
}

// Div64 divides v by a 64-bit divisor, returning the 256-bit quotient.
func (v Uint256) Div64(d uint64) (Uint256, uint64) {
	if d == 0 {
		return Uint256{}, 0
	}
	var out Uint256
	var rem uint64
	for i := 3; i >= 0; i-- {
		out.Limbs[i], rem = bits.Div64(rem, v.Limbs[i], d)
	}
	return out, rem
}

// To128 narrows v to a Uint128, failing with ErrOverflow when it does not fit.
func (v Uint256) To128() (Uint128, error) {
	if v.Limbs[2] != 0 || v.Limbs[3] != 0 {
		return Uint128{}, ErrOverflow
	}
	return Uint128{Hi: v.Limbs[1], Lo: v.Limbs[0]}, nil
}

// To64 narrows v to a uint64, failing with ErrOverflow when it does not fit.
func (v Uint256) To64() (uint64, error) {
	if v.Limbs[1] != 0 || v.Limbs[2] != 0 || v.Limbs[3] != 0 {
		return 0, ErrOverflow
	}
	return v.Limbs[0], nil
}
