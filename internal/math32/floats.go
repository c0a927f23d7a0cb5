// Package math32 provides float32 vector kernels used by the distance and
// quantization packages. Implementations are plain Go; slices are assumed to
// be equal length (caller's responsibility).
package math32

import "math"

// Dot returns the dot product of a and b.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredL2 returns the squared Euclidean distance between a and b.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Sqrt returns the square root of x.
func Sqrt(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

// ScaleInPlace multiplies every element of v by s.
func ScaleInPlace(v []float32, s float32) {
	for i := range v {
		v[i] *= s
	}
}

// MinMax returns the smallest and largest values in v.
// It returns (0, 0) for an empty slice.
func MinMax(v []float32) (minVal, maxVal float32) {
	if len(v) == 0 {
		return 0, 0
	}
	minVal, maxVal = v[0], v[0]
	for _, x := range v[1:] {
		if x < minVal {
			minVal = x
		}
		if x > maxVal {
			maxVal = x
		}
	}
	return minVal, maxVal
}
