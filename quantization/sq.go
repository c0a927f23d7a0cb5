package quantization

import (
	"context"
	"errors"
	"math"
)

// Compile-time check.
var _ Quantizer = (*ScalarQuantizer)(nil)

// ScalarQuantizer implements 8-bit scalar quantization: each coordinate is
// mapped independently to a byte using per-dimension min/max bounds. This is
// a 4x reduction over float32 storage.
type ScalarQuantizer struct {
	mins      []float32 // per-dimension minimum values
	maxs      []float32 // per-dimension maximum values
	scales    []float32 // 255 / (max - min)
	invScales []float32 // (max - min) / 255
	dimension int
	trained   bool
}

// NewScalarQuantizer creates an untrained 8-bit scalar quantizer.
func NewScalarQuantizer(dimension int) (*ScalarQuantizer, error) {
	if dimension <= 0 {
		return nil, errors.New("quantization: dimension must be positive")
	}
	return &ScalarQuantizer{dimension: dimension}, nil
}

// Trained reports whether bounds have been computed.
func (sq *ScalarQuantizer) Trained() bool { return sq.trained }

// CodeSize returns one byte per dimension.
func (sq *ScalarQuantizer) CodeSize() int { return sq.dimension }

// Mins returns the per-dimension minimum values.
func (sq *ScalarQuantizer) Mins() []float32 { return sq.mins }

// Maxs returns the per-dimension maximum values.
func (sq *ScalarQuantizer) Maxs() []float32 { return sq.maxs }

// Train computes per-dimension min/max bounds over the training vectors.
func (sq *ScalarQuantizer) Train(_ context.Context, vectors []float32, rows int) error {
	if rows <= 0 {
		return errors.New("quantization: no vectors provided for training")
	}
	if len(vectors) < rows*sq.dimension {
		return errors.New("quantization: training buffer shorter than rows*dimension")
	}

	mins := make([]float32, sq.dimension)
	maxs := make([]float32, sq.dimension)
	copy(mins, vectors[:sq.dimension])
	copy(maxs, vectors[:sq.dimension])

	for i := 1; i < rows; i++ {
		row := vectors[i*sq.dimension : (i+1)*sq.dimension]
		for d, v := range row {
			if v < mins[d] {
				mins[d] = v
			}
			if v > maxs[d] {
				maxs[d] = v
			}
		}
	}

	return sq.SetBounds(mins, maxs)
}

// SetBounds initializes the quantizer with pre-computed bounds.
func (sq *ScalarQuantizer) SetBounds(mins, maxs []float32) error {
	if len(mins) != sq.dimension || len(maxs) != sq.dimension {
		return errors.New("quantization: bounds dimension mismatch")
	}
	sq.mins = make([]float32, sq.dimension)
	sq.maxs = make([]float32, sq.dimension)
	sq.scales = make([]float32, sq.dimension)
	sq.invScales = make([]float32, sq.dimension)

	copy(sq.mins, mins)
	copy(sq.maxs, maxs)

	for i := range sq.dimension {
		diff := sq.maxs[i] - sq.mins[i]
		if diff < 1e-9 {
			sq.scales[i] = 0
			sq.invScales[i] = 0
		} else {
			sq.scales[i] = 255.0 / diff
			sq.invScales[i] = diff / 255.0
		}
	}
	sq.trained = true
	return nil
}

// Encode quantizes vec into code, one byte per dimension.
// Values outside the trained bounds are clamped.
func (sq *ScalarQuantizer) Encode(vec []float32, code []byte) {
	for i := 0; i < sq.dimension; i++ {
		q := math.Round(float64((vec[i] - sq.mins[i]) * sq.scales[i]))
		if q < 0 {
			q = 0
		}
		if q > 255 {
			q = 255
		}
		code[i] = byte(q)
	}
}

// Decode reconstructs a vector from code into out.
func (sq *ScalarQuantizer) Decode(code []byte, out []float32) {
	for i := 0; i < sq.dimension; i++ {
		out[i] = sq.mins[i] + float32(code[i])*sq.invScales[i]
	}
}
