package quantization

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecbench/distance"
	"github.com/hupe1980/vecbench/internal/kmeans"
	"github.com/hupe1980/vecbench/internal/math32"
	"github.com/hupe1980/vecbench/resource"
)

// Compile-time check.
var _ Quantizer = (*ProductQuantizer)(nil)

// ProductQuantizer splits vectors into M subvectors and quantizes each
// independently against a per-subspace codebook of 2^nbits centroids.
// Codes are stored one byte per subquantizer.
type ProductQuantizer struct {
	m         int // number of subquantizers
	nbits     int // bits per code
	ksub      int // centroids per subspace: 1 << nbits
	dimension int
	dsub      int       // dimensions per subvector
	codebooks []float32 // m * ksub * dsub, subspace-major
	trained   bool

	ctrl *resource.Controller
	seed int64
}

// PQOptions configures a ProductQuantizer.
type PQOptions struct {
	// Controller bounds training parallelism. Nil means unbounded.
	Controller *resource.Controller

	// Seed drives the per-subspace k-means initialization.
	Seed int64
}

// DefaultPQOptions are the default ProductQuantizer options.
var DefaultPQOptions = PQOptions{}

// NewProductQuantizer creates a product quantizer for vectors of the given
// dimension, split into m subvectors with nbits bits per code.
func NewProductQuantizer(dimension, m, nbits int, optFns ...func(o *PQOptions)) (*ProductQuantizer, error) {
	opts := DefaultPQOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if dimension <= 0 || m <= 0 {
		return nil, errors.New("quantization: dimension and subquantizer count must be positive")
	}
	if dimension%m != 0 {
		return nil, fmt.Errorf("quantization: dimension %d not divisible by %d subquantizers", dimension, m)
	}
	if nbits < 1 || nbits > 8 {
		return nil, fmt.Errorf("quantization: bits per code must be in [1,8], got %d", nbits)
	}

	ksub := 1 << nbits
	dsub := dimension / m

	return &ProductQuantizer{
		m:         m,
		nbits:     nbits,
		ksub:      ksub,
		dimension: dimension,
		dsub:      dsub,
		codebooks: make([]float32, m*ksub*dsub),
		ctrl:      opts.Controller,
		seed:      opts.Seed,
	}, nil
}

// SubQuantizers returns the number of subquantizers (M).
func (pq *ProductQuantizer) SubQuantizers() int { return pq.m }

// BitsPerCode returns the number of bits per code.
func (pq *ProductQuantizer) BitsPerCode() int { return pq.nbits }

// Trained reports whether the codebooks have been trained.
func (pq *ProductQuantizer) Trained() bool { return pq.trained }

// CodeSize returns the encoded size of one vector: one byte per subquantizer.
func (pq *ProductQuantizer) CodeSize() int { return pq.m }

// Train builds one codebook per subspace using k-means.
// Subspaces train concurrently, bounded by the controller's worker slots.
func (pq *ProductQuantizer) Train(ctx context.Context, vectors []float32, rows int) error {
	if rows <= 0 {
		return errors.New("quantization: no vectors provided for training")
	}
	if len(vectors) < rows*pq.dimension {
		return errors.New("quantization: training buffer shorter than rows*dimension")
	}

	g, gctx := errgroup.WithContext(ctx)

	for m := 0; m < pq.m; m++ {
		g.Go(func() error {
			if err := pq.ctrl.AcquireWorker(gctx); err != nil {
				return err
			}
			defer pq.ctrl.ReleaseWorker()

			// Extract the subspace columns into a contiguous buffer.
			sub := make([]float32, rows*pq.dsub)
			start := m * pq.dsub
			for i := 0; i < rows; i++ {
				copy(sub[i*pq.dsub:(i+1)*pq.dsub], vectors[i*pq.dimension+start:i*pq.dimension+start+pq.dsub])
			}

			k := pq.ksub
			if rows < k {
				// Degenerate training set: fewer points than centroids.
				// Use what we have; unused codebook entries stay zero.
				k = rows
			}

			centroids, err := kmeans.Train(sub, pq.dsub, k, distance.MetricL2, kmeans.Params{
				Seed: pq.seed + int64(m),
			})
			if err != nil {
				return err
			}

			copy(pq.codebooks[m*pq.ksub*pq.dsub:], centroids)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	pq.trained = true
	return nil
}

// Encode quantizes vec into code (CodeSize bytes): per subspace, the byte is
// the id of the nearest codebook centroid.
func (pq *ProductQuantizer) Encode(vec []float32, code []byte) {
	for m := 0; m < pq.m; m++ {
		sub := vec[m*pq.dsub : (m+1)*pq.dsub]
		base := m * pq.ksub * pq.dsub

		best := 0
		minDist := float32(math.MaxFloat32)
		for j := 0; j < pq.ksub; j++ {
			d := math32.SquaredL2(sub, pq.codebooks[base+j*pq.dsub:base+(j+1)*pq.dsub])
			if d < minDist {
				minDist = d
				best = j
			}
		}
		code[m] = byte(best)
	}
}

// Decode reconstructs the centroid concatenation for code into out.
func (pq *ProductQuantizer) Decode(code []byte, out []float32) {
	for m := 0; m < pq.m; m++ {
		base := m * pq.ksub * pq.dsub
		j := int(code[m])
		copy(out[m*pq.dsub:(m+1)*pq.dsub], pq.codebooks[base+j*pq.dsub:base+(j+1)*pq.dsub])
	}
}

// TableSize returns the length of a per-query distance table.
func (pq *ProductQuantizer) TableSize() int { return pq.m * pq.ksub }

// DistanceTable fills table (TableSize entries) with per-subspace partial
// distances between query and every codebook centroid. Summing the looked-up
// entries for a code yields the asymmetric distance between query and the
// decoded vector under the given metric.
func (pq *ProductQuantizer) DistanceTable(metric distance.Metric, query []float32, table []float32) error {
	distFunc, err := distance.Provider(metric)
	if err != nil {
		return err
	}
	for m := 0; m < pq.m; m++ {
		sub := query[m*pq.dsub : (m+1)*pq.dsub]
		base := m * pq.ksub * pq.dsub
		for j := 0; j < pq.ksub; j++ {
			table[m*pq.ksub+j] = distFunc(sub, pq.codebooks[base+j*pq.dsub:base+(j+1)*pq.dsub])
		}
	}
	return nil
}

// LookupDistance sums the table entries selected by code.
func (pq *ProductQuantizer) LookupDistance(table []float32, code []byte) float32 {
	var sum float32
	for m := 0; m < pq.m; m++ {
		sum += table[m*pq.ksub+int(code[m])]
	}
	return sum
}

// AsymmetricDistance computes the distance between query and the decoded
// code directly, without a precomputed table.
func (pq *ProductQuantizer) AsymmetricDistance(metric distance.Metric, query []float32, code []byte) (float32, error) {
	distFunc, err := distance.Provider(metric)
	if err != nil {
		return 0, err
	}
	var sum float32
	for m := 0; m < pq.m; m++ {
		sub := query[m*pq.dsub : (m+1)*pq.dsub]
		base := m * pq.ksub * pq.dsub
		j := int(code[m])
		sum += distFunc(sub, pq.codebooks[base+j*pq.dsub:base+(j+1)*pq.dsub])
	}
	return sum, nil
}

// Codebooks exposes the trained codebooks for serialization.
func (pq *ProductQuantizer) Codebooks() []float32 { return pq.codebooks }

// SetCodebooks restores trained codebooks (deserialization path).
func (pq *ProductQuantizer) SetCodebooks(cb []float32) error {
	if len(cb) != pq.m*pq.ksub*pq.dsub {
		return fmt.Errorf("quantization: codebook length %d, want %d", len(cb), pq.m*pq.ksub*pq.dsub)
	}
	pq.codebooks = cb
	pq.trained = true
	return nil
}
