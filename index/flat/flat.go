// Package flat provides an exact-match index that scans every stored vector.
// It doubles as the coarse quantizer for the inverted-file indexes.
package flat

import (
	"context"
	"sync"

	"github.com/hupe1980/vecbench/distance"
	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/internal/queue"
	"github.com/hupe1980/vecbench/persistence"
)

// Compile-time checks to ensure Flat satisfies required interfaces.
var _ index.Index = (*Flat)(nil)
var _ index.Reconstructor = (*Flat)(nil)

// Options contains configuration options for the flat index.
type Options struct {
	// Dimension is the fixed vector dimensionality for this index.
	// It must be > 0 and is enforced for all adds and searches.
	Dimension int

	// Metric is the distance metric used for vector comparison.
	Metric distance.Metric

	// Compression applies to the serialized form only.
	Compression persistence.CompressionType
}

// DefaultOptions contains the default configuration options for the flat index.
var DefaultOptions = Options{
	Dimension: 0,
	Metric:    distance.MetricL2,
}

// Flat stores vectors row-major and answers queries by exhaustive scan.
//
// A flat index has no training phase: it is trained from construction.
type Flat struct {
	opts     Options
	distFunc distance.Func

	writeMu sync.Mutex // serializes Add; Search is lock-free per the index contract
	vectors []float32  // row-major, count x Dimension
	count   int
}

// New creates a new flat index. Dimension must be set.
func New(optFns ...func(o *Options)) (*Flat, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, &index.ErrDimensionMismatch{Expected: 1, Actual: opts.Dimension}
	}

	distFunc, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}

	return &Flat{
		opts:     opts,
		distFunc: distFunc,
	}, nil
}

// Metric returns the configured distance metric.
func (f *Flat) Metric() distance.Metric { return f.opts.Metric }

// Dimension returns the fixed vector dimensionality.
func (f *Flat) Dimension() int { return f.opts.Dimension }

// IsTrained always reports true: a flat index needs no training.
func (f *Flat) IsTrained() bool { return true }

// NTotal returns the number of stored vectors.
func (f *Flat) NTotal() int { return f.count }

// Train is a no-op for the flat index.
func (f *Flat) Train(ctx context.Context, vectors []float32, rows int) error {
	return ctx.Err()
}

// Add appends rows row-major vectors to the index.
func (f *Flat) Add(ctx context.Context, vectors []float32, rows int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(vectors) < rows*f.opts.Dimension {
		return &index.ErrDimensionMismatch{Expected: rows * f.opts.Dimension, Actual: len(vectors)}
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	f.vectors = append(f.vectors, vectors[:rows*f.opts.Dimension]...)
	f.count += rows
	return nil
}

// Search returns the k nearest stored vectors to query, best first.
func (f *Flat) Search(ctx context.Context, query []float32, k int, opts *index.SearchOptions) ([]index.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if len(query) != f.opts.Dimension {
		return nil, &index.ErrDimensionMismatch{Expected: f.opts.Dimension, Actual: len(query)}
	}
	if f.count == 0 {
		return nil, nil
	}

	actualK := k
	if actualK > f.count {
		actualK = f.count
	}
	top := queue.NewTopK(actualK)

	dim := f.opts.Dimension
	for id := 0; id < f.count; id++ {
		if !opts.Allows(uint32(id)) {
			continue
		}
		d := f.distFunc(query, f.vectors[id*dim:(id+1)*dim])
		top.Push(queue.Item{ID: uint32(id), Distance: d})
	}

	items := top.Sorted()
	results := make([]index.SearchResult, len(items))
	for i, it := range items {
		results[i] = index.SearchResult{ID: it.ID, Distance: it.Distance}
	}
	return results, nil
}

// Reconstruct copies the stored vector for id into out. Exact.
func (f *Flat) Reconstruct(id uint32, out []float32) error {
	if int(id) >= f.count {
		return &index.ErrNodeNotFound{ID: id}
	}
	dim := f.opts.Dimension
	copy(out, f.vectors[int(id)*dim:(int(id)+1)*dim])
	return nil
}

// Vector returns a read-only view of the stored vector for id.
// The returned slice aliases internal memory; callers must not modify it.
func (f *Flat) Vector(id uint32) ([]float32, error) {
	if int(id) >= f.count {
		return nil, &index.ErrNodeNotFound{ID: id}
	}
	dim := f.opts.Dimension
	return f.vectors[int(id)*dim : (int(id)+1)*dim], nil
}
