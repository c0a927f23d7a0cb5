package ivf

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/vecbench/distance"
	"github.com/hupe1980/vecbench/quantization"
)

// ListCodec turns vectors into the per-list storage format and computes
// query-to-code distances. RawCodec stores float32 verbatim; the quantized
// codecs delegate to the quantization package.
type ListCodec interface {
	// Train calibrates the codec on row-major training vectors.
	Train(ctx context.Context, vectors []float32, rows int) error

	// Trained reports whether the codec is ready to encode.
	Trained() bool

	// CodeSize returns the encoded size of one vector in bytes.
	CodeSize() int

	// Encode writes the code for vec into code (CodeSize bytes).
	Encode(vec []float32, code []byte)

	// Decode reconstructs a vector from code into out.
	Decode(code []byte, out []float32)

	// NewDistancer returns per-query distance state for code scans.
	NewDistancer(query []float32) (Distancer, error)
}

// Distancer computes the distance between the query it was created for and
// an encoded vector. Implementations are single-goroutine state.
type Distancer interface {
	Distance(code []byte) float32
}

// decodeDistancer is the generic distancer: decode into a scratch buffer and
// apply the metric's distance function.
type decodeDistancer struct {
	query    []float32
	distFunc distance.Func
	decode   func(code []byte, out []float32)
	scratch  []float32
}

func (d *decodeDistancer) Distance(code []byte) float32 {
	d.decode(code, d.scratch)
	return d.distFunc(d.query, d.scratch)
}

// RawCodec stores vectors uncompressed (4 bytes per dimension).
type RawCodec struct {
	dim      int
	distFunc distance.Func
}

var _ ListCodec = (*RawCodec)(nil)

// NewRawCodec creates the identity codec used by the IVF-Flat index.
func NewRawCodec(dim int, metric distance.Metric) (*RawCodec, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("ivf: invalid dimension %d", dim)
	}
	distFunc, err := distance.Provider(metric)
	if err != nil {
		return nil, err
	}
	return &RawCodec{dim: dim, distFunc: distFunc}, nil
}

func (c *RawCodec) Train(ctx context.Context, _ []float32, _ int) error { return ctx.Err() }
func (c *RawCodec) Trained() bool                                       { return true }
func (c *RawCodec) CodeSize() int                                       { return c.dim * 4 }

func (c *RawCodec) Encode(vec []float32, code []byte) {
	for i := 0; i < c.dim; i++ {
		binary.LittleEndian.PutUint32(code[i*4:], math.Float32bits(vec[i]))
	}
}

func (c *RawCodec) Decode(code []byte, out []float32) {
	for i := 0; i < c.dim; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(code[i*4:]))
	}
}

func (c *RawCodec) NewDistancer(query []float32) (Distancer, error) {
	return &decodeDistancer{
		query:    query,
		distFunc: c.distFunc,
		decode:   c.Decode,
		scratch:  make([]float32, c.dim),
	}, nil
}

// PQCodec stores product-quantized codes and computes asymmetric distances,
// optionally through a per-query precomputed table.
type PQCodec struct {
	pq             *quantization.ProductQuantizer
	metric         distance.Metric
	usePrecomputed bool
	dim            int
}

var _ ListCodec = (*PQCodec)(nil)

// NewPQCodec wraps a product quantizer for IVF list storage.
func NewPQCodec(pq *quantization.ProductQuantizer, dim int, metric distance.Metric, usePrecomputed bool) (*PQCodec, error) {
	if _, err := distance.Provider(metric); err != nil {
		return nil, err
	}
	return &PQCodec{pq: pq, metric: metric, usePrecomputed: usePrecomputed, dim: dim}, nil
}

// Quantizer returns the wrapped product quantizer (serialization path).
func (c *PQCodec) Quantizer() *quantization.ProductQuantizer { return c.pq }

// UsePrecomputedTables reports whether per-query tables are enabled.
func (c *PQCodec) UsePrecomputedTables() bool { return c.usePrecomputed }

func (c *PQCodec) Train(ctx context.Context, vectors []float32, rows int) error {
	return c.pq.Train(ctx, vectors, rows)
}

func (c *PQCodec) Trained() bool { return c.pq.Trained() }
func (c *PQCodec) CodeSize() int { return c.pq.CodeSize() }

func (c *PQCodec) Encode(vec []float32, code []byte) { c.pq.Encode(vec, code) }
func (c *PQCodec) Decode(code []byte, out []float32) { c.pq.Decode(code, out) }

func (c *PQCodec) NewDistancer(query []float32) (Distancer, error) {
	if c.usePrecomputed {
		table := make([]float32, c.pq.TableSize())
		if err := c.pq.DistanceTable(c.metric, query, table); err != nil {
			return nil, err
		}
		return &pqTableDistancer{pq: c.pq, table: table}, nil
	}
	return &pqDirectDistancer{pq: c.pq, metric: c.metric, query: query}, nil
}

type pqTableDistancer struct {
	pq    *quantization.ProductQuantizer
	table []float32
}

func (d *pqTableDistancer) Distance(code []byte) float32 {
	return d.pq.LookupDistance(d.table, code)
}

type pqDirectDistancer struct {
	pq     *quantization.ProductQuantizer
	metric distance.Metric
	query  []float32
}

func (d *pqDirectDistancer) Distance(code []byte) float32 {
	// The metric was validated when the codec was constructed.
	dist, _ := d.pq.AsymmetricDistance(d.metric, d.query, code)
	return dist
}

// SQCodec stores scalar-quantized codes (int8 or fp16 storage).
type SQCodec struct {
	q        quantization.Quantizer
	kind     quantization.Kind
	dim      int
	distFunc distance.Func
}

var _ ListCodec = (*SQCodec)(nil)

// NewSQCodec wraps a scalar quantizer for IVF list storage.
func NewSQCodec(q quantization.Quantizer, kind quantization.Kind, dim int, metric distance.Metric) (*SQCodec, error) {
	distFunc, err := distance.Provider(metric)
	if err != nil {
		return nil, err
	}
	return &SQCodec{q: q, kind: kind, dim: dim, distFunc: distFunc}, nil
}

// Kind returns the scalar quantizer kind.
func (c *SQCodec) Kind() quantization.Kind { return c.kind }

// Quantizer returns the wrapped quantizer (serialization path).
func (c *SQCodec) Quantizer() quantization.Quantizer { return c.q }

func (c *SQCodec) Train(ctx context.Context, vectors []float32, rows int) error {
	return c.q.Train(ctx, vectors, rows)
}

func (c *SQCodec) Trained() bool { return c.q.Trained() }
func (c *SQCodec) CodeSize() int { return c.q.CodeSize() }

func (c *SQCodec) Encode(vec []float32, code []byte) { c.q.Encode(vec, code) }
func (c *SQCodec) Decode(code []byte, out []float32) { c.q.Decode(code, out) }

func (c *SQCodec) NewDistancer(query []float32) (Distancer, error) {
	return &decodeDistancer{
		query:    query,
		distFunc: c.distFunc,
		decode:   c.Decode,
		scratch:  make([]float32, c.dim),
	}, nil
}
