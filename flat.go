package vecbench

import (
	"context"
	"fmt"

	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/index/flat"
	"github.com/hupe1980/vecbench/persistence"
)

// FlatAlgorithm benchmarks the exact exhaustive-scan index. It has no
// coarse quantizer and nothing to tune at search time.
type FlatAlgorithm struct {
	adapterBase
	flat *flat.Flat
}

// Compile-time interface check.
var _ Algorithm = (*FlatAlgorithm)(nil)

// NewFlat constructs the flat variant.
func NewFlat(metric Metric, dim int, optFns ...func(o *Options)) (*FlatAlgorithm, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	base, err := newAdapterBase("flat", persistence.IndexTypeFlat, metric, dim, opts)
	if err != nil {
		return nil, err
	}

	a := &FlatAlgorithm{adapterBase: base}

	idx, err := flat.New(func(o *flat.Options) {
		o.Dimension = dim
		o.Metric = base.dm
		o.Compression = a.opts.Compression
	})
	if err != nil {
		return nil, err
	}

	a.flat = idx
	a.idx = idx
	a.install = a.installIndex

	return a, nil
}

// Build adds all rows. The flat index needs no training.
func (a *FlatAlgorithm) Build(ctx context.Context, dataset []float32, rows int) error {
	release, err := a.opts.Controller.SingleWorker(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := a.flat.Train(ctx, dataset, rows); err != nil {
		return err
	}

	return a.flat.Add(ctx, dataset, rows)
}

// SetSearchParam is a no-op: the flat variant has no probe count to tune and
// gains nothing from refinement.
func (a *FlatAlgorithm) SetSearchParam(_ SearchParam) error {
	return nil
}

func (a *FlatAlgorithm) installIndex(idx index.Index) error {
	f, ok := idx.(*flat.Flat)
	if !ok {
		return fmt.Errorf("%w: loaded index is %T", ErrIndexTypeMismatch, idx)
	}

	a.flat = f

	return nil
}
