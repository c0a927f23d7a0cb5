// Package f16 implements IEEE-754 binary16 (float16) encoding/decoding.
//
// This package is internal: it exists to support float16 as a storage format
// while keeping execution in float32.
package f16

import (
	"math"
)

// Bits is the raw IEEE-754 binary16 bit-pattern.
//
// Layout:
//
//	sign: 1 bit
//	exp:  5 bits (bias 15)
//	frac: 10 bits
type Bits uint16

const (
	signMask Bits = 0x8000
	expMask  Bits = 0x7C00
	fracMask Bits = 0x03FF

	f32ExpMask  uint32 = 0x7F800000
	f32FracMask uint32 = 0x007FFFFF
)

// ToFloat32 converts a binary16 bit-pattern to float32.
func ToFloat32(h Bits) float32 {
	sign := uint32(h&signMask) << 16
	exp := uint32(h&expMask) >> 10
	frac := uint32(h & fracMask)

	switch exp {
	case 0:
		if frac == 0 {
			return math.Float32frombits(sign)
		}
		// Subnormal: normalize the fraction.
		// Half subnormals have an exponent of -14 and no implicit leading 1.
		e := int32(-14)
		m := frac
		for (m & 0x0400) == 0 {
			m <<= 1
			e--
		}
		m &= 0x03FF // strip leading 1
		f32Exp := uint32(int32(127)+e) << 23
		return math.Float32frombits(sign | f32Exp | m<<13)
	case 0x1F:
		// Inf/NaN
		if frac == 0 {
			return math.Float32frombits(sign | f32ExpMask)
		}
		return math.Float32frombits(sign | f32ExpMask | (frac << 13))
	default:
		// Normalized
		f32Exp := uint32(int32(exp)-15+127) << 23
		return math.Float32frombits(sign | f32Exp | frac<<13)
	}
}

// FromFloat32 converts a float32 value into a binary16 bit-pattern.
//
// Rounding mode: round-to-nearest, ties-to-even.
func FromFloat32(f float32) Bits {
	bits := math.Float32bits(f)
	sign := Bits((bits >> 16) & uint32(signMask))
	exp := int32((bits & f32ExpMask) >> 23)
	frac := bits & f32FracMask

	// NaN / Inf
	if exp == 0xFF {
		if frac == 0 {
			return sign | expMask // infinity
		}
		// Keep a quiet NaN; ensure the fraction stays non-zero.
		q := Bits(frac>>13) & fracMask
		if q == 0 {
			q = 1
		}
		return sign | expMask | q
	}

	e := exp - 127 + 15
	if e >= 0x1F {
		return sign | expMask // overflow to infinity
	}

	if e <= 0 {
		// Subnormal half (or zero on underflow).
		if e < -10 {
			return sign
		}
		m := frac | 0x800000 // restore implicit leading 1
		shift := uint32(14 - e)
		// Round to nearest, ties to even.
		rounded := m + ((1 << (shift - 1)) - 1) + ((m >> shift) & 1)
		// A carry out of the fraction lands in the exponent field and yields
		// the smallest normal, which is exactly right.
		return sign | Bits(rounded>>shift)
	}

	// Normal half: drop 13 fraction bits with ties-to-even rounding.
	rounded := frac + 0x0FFF + ((frac >> 13) & 1)
	if rounded&0x800000 != 0 {
		rounded = 0
		e++
		if e >= 0x1F {
			return sign | expMask
		}
	}
	return sign | Bits(uint32(e)<<10) | Bits(rounded>>13)&fracMask
}
