// Package refine implements search-time re-ranking: a base index over-fetches
// candidates, which are then re-scored against their reconstructed vectors
// and cut down to k.
package refine

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/vecbench/distance"
	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/internal/queue"
)

// Options configures a Refiner.
type Options struct {
	// KFactor is the over-fetch factor: the base index is asked for
	// ceil(k * KFactor) candidates. Must be at least 1.
	KFactor float32
}

// DefaultOptions holds the baseline refinement configuration.
var DefaultOptions = Options{
	KFactor: 1,
}

// Refiner wraps a base index and re-ranks its candidates. Re-scoring uses the
// reconstructor's vectors, so refinement over raw storage is exact while
// refinement over quantized storage re-scores against decoded vectors.
type Refiner struct {
	base     index.Index
	recon    index.Reconstructor
	distFunc distance.Func
	kFactor  float32
}

// Compile-time interface check.
var _ index.Index = (*Refiner)(nil)

// New wraps base with re-ranking through recon.
func New(base index.Index, recon index.Reconstructor, metric distance.Metric, optFns ...func(o *Options)) (*Refiner, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.KFactor < 1 {
		return nil, fmt.Errorf("refine: k factor %v must be at least 1", opts.KFactor)
	}

	distFunc, err := distance.Provider(metric)
	if err != nil {
		return nil, err
	}

	return &Refiner{
		base:     base,
		recon:    recon,
		distFunc: distFunc,
		kFactor:  opts.KFactor,
	}, nil
}

// Base returns the wrapped index.
func (r *Refiner) Base() index.Index { return r.base }

// KFactor returns the current over-fetch factor.
func (r *Refiner) KFactor() float32 { return r.kFactor }

// SetKFactor updates the over-fetch factor. Must be at least 1.
func (r *Refiner) SetKFactor(f float32) error {
	if f < 1 {
		return fmt.Errorf("refine: k factor %v must be at least 1", f)
	}

	r.kFactor = f

	return nil
}

func (r *Refiner) Train(ctx context.Context, vectors []float32, rows int) error {
	return r.base.Train(ctx, vectors, rows)
}

func (r *Refiner) Add(ctx context.Context, vectors []float32, rows int) error {
	return r.base.Add(ctx, vectors, rows)
}

func (r *Refiner) IsTrained() bool { return r.base.IsTrained() }

func (r *Refiner) NTotal() int { return r.base.NTotal() }

func (r *Refiner) Dimension() int { return r.base.Dimension() }

// WriteTo persists the base index. The refinement wrapper itself holds no
// vector data.
func (r *Refiner) WriteTo(w io.Writer) (int64, error) { return r.base.WriteTo(w) }

// Search over-fetches ceil(k * KFactor) candidates from the base index,
// re-scores each against its reconstructed vector and returns the best k.
func (r *Refiner) Search(ctx context.Context, query []float32, k int, opts *index.SearchOptions) ([]index.SearchResult, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}

	baseK := int(math.Ceil(float64(k) * float64(r.kFactor)))

	candidates, err := r.base.Search(ctx, query, baseK, opts)
	if err != nil {
		return nil, err
	}

	scratch := make([]float32, r.base.Dimension())
	topK := queue.NewTopK(k)

	for _, cand := range candidates {
		if err := r.recon.Reconstruct(cand.ID, scratch); err != nil {
			return nil, fmt.Errorf("refine: reconstructing %d failed: %w", cand.ID, err)
		}

		topK.Push(queue.Item{ID: cand.ID, Distance: r.distFunc(query, scratch)})
	}

	items := topK.Sorted()

	results := make([]index.SearchResult, len(items))
	for i, it := range items {
		results[i] = index.SearchResult{ID: it.ID, Distance: it.Distance}
	}

	return results, nil
}
