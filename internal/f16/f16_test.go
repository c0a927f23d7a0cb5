package f16

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundtripExactValues(t *testing.T) {
	// Values exactly representable in binary16 survive the roundtrip.
	for _, v := range []float32{0, 1, -1, 0.5, 2, -2.5, 1024, -0.125, 65504} {
		got := ToFloat32(FromFloat32(v))
		assert.Equal(t, v, got, "value %v", v)
	}
}

func TestRoundtripPrecision(t *testing.T) {
	// binary16 carries 11 significand bits: relative error within 2^-11.
	for _, v := range []float32{0.1, 0.3, 3.14159, 123.456, -0.000347} {
		got := ToFloat32(FromFloat32(v))
		assert.InEpsilon(t, v, got, 1.0/2048, "value %v", v)
	}
}

func TestSpecials(t *testing.T) {
	assert.True(t, math.IsInf(float64(ToFloat32(FromFloat32(float32(math.Inf(1))))), 1))
	assert.True(t, math.IsInf(float64(ToFloat32(FromFloat32(float32(math.Inf(-1))))), -1))
	assert.True(t, math.IsNaN(float64(ToFloat32(FromFloat32(float32(math.NaN()))))))

	// Overflow saturates to infinity.
	assert.True(t, math.IsInf(float64(ToFloat32(FromFloat32(1e6))), 1))

	// Underflow flushes toward zero through subnormals.
	tiny := ToFloat32(FromFloat32(1e-10))
	assert.InDelta(t, 0, tiny, 1e-7)
}

func TestSignPreserved(t *testing.T) {
	neg := ToFloat32(FromFloat32(float32(math.Copysign(0, -1))))
	assert.True(t, math.Signbit(float64(neg)))
}
