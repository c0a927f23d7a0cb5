package quantization

import (
	"context"
	"encoding/binary"
	"errors"

	"github.com/hupe1980/vecbench/internal/f16"
)

// Compile-time check.
var _ Quantizer = (*HalfQuantizer)(nil)

// HalfQuantizer stores each coordinate as an IEEE-754 binary16 value,
// halving storage relative to float32. It is stateless: Train is a no-op.
type HalfQuantizer struct {
	dimension int
}

// NewHalfQuantizer creates a float16 storage quantizer.
func NewHalfQuantizer(dimension int) (*HalfQuantizer, error) {
	if dimension <= 0 {
		return nil, errors.New("quantization: dimension must be positive")
	}
	return &HalfQuantizer{dimension: dimension}, nil
}

// Trained always reports true: float16 storage needs no calibration.
func (hq *HalfQuantizer) Trained() bool { return true }

// CodeSize returns two bytes per dimension.
func (hq *HalfQuantizer) CodeSize() int { return 2 * hq.dimension }

// Train is a no-op.
func (hq *HalfQuantizer) Train(context.Context, []float32, int) error { return nil }

// Encode converts each coordinate to binary16.
func (hq *HalfQuantizer) Encode(vec []float32, code []byte) {
	for i := 0; i < hq.dimension; i++ {
		binary.LittleEndian.PutUint16(code[i*2:], uint16(f16.FromFloat32(vec[i])))
	}
}

// Decode converts each binary16 coordinate back to float32.
func (hq *HalfQuantizer) Decode(code []byte, out []float32) {
	for i := 0; i < hq.dimension; i++ {
		out[i] = f16.ToFloat32(f16.Bits(binary.LittleEndian.Uint16(code[i*2:])))
	}
}
