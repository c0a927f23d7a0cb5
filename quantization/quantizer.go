// Package quantization provides the vector compression codecs used by the
// inverted-file indexes: product quantization and scalar quantization
// (8-bit and float16 storage).
package quantization

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotTrained is returned when Encode/Decode is called before Train.
var ErrNotTrained = errors.New("quantization: quantizer not trained")

// ErrUnknownKind indicates a scalar quantizer kind outside the supported set.
var ErrUnknownKind = errors.New("quantization: unknown quantizer kind")

// Kind identifies a scalar quantization storage format.
type Kind int

const (
	KindFP16 Kind = iota
	KindInt8
)

func (k Kind) String() string {
	switch k {
	case KindFP16:
		return "fp16"
	case KindInt8:
		return "int8"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// ParseKind maps a kind name to its Kind value.
// Only "fp16" and "int8" are supported.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "fp16":
		return KindFP16, nil
	case "int8":
		return KindInt8, nil
	default:
		return 0, fmt.Errorf("%w: %q (supported: fp16, int8)", ErrUnknownKind, s)
	}
}

// Quantizer defines the contract for vector compression codecs.
type Quantizer interface {
	// Train calibrates the quantizer on row-major training vectors.
	Train(ctx context.Context, vectors []float32, rows int) error

	// Trained reports whether the quantizer is ready to encode.
	Trained() bool

	// CodeSize returns the encoded size of one vector in bytes.
	CodeSize() int

	// Encode quantizes vec into code, which must be CodeSize() bytes.
	Encode(vec []float32, code []byte)

	// Decode reconstructs a vector from code into out.
	Decode(code []byte, out []float32)
}
