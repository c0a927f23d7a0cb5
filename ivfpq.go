package vecbench

import (
	"github.com/hupe1980/vecbench/index/ivf"
	"github.com/hupe1980/vecbench/persistence"
	"github.com/hupe1980/vecbench/quantization"
)

// IVFPQAlgorithm benchmarks the inverted-file index with product-quantized
// list storage.
type IVFPQAlgorithm struct {
	ivfAdapter
}

// Compile-time interface check.
var _ Algorithm = (*IVFPQAlgorithm)(nil)

// NewIVFPQ constructs the IVF-PQ variant. SubQuantizers must divide dim.
func NewIVFPQ(metric Metric, dim int, param IVFPQParam, optFns ...func(o *Options)) (*IVFPQAlgorithm, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := param.validate(); err != nil {
		return nil, err
	}

	base, err := newAdapterBase("ivf_pq", persistence.IndexTypeIVFPQ, metric, dim, opts)
	if err != nil {
		return nil, err
	}

	a := &IVFPQAlgorithm{ivfAdapter: ivfAdapter{adapterBase: base, param: param.BuildParam}}

	pq, err := quantization.NewProductQuantizer(dim, param.SubQuantizers, param.BitsPerCode, func(o *quantization.PQOptions) {
		o.Controller = opts.Controller
		o.Seed = opts.Seed
	})
	if err != nil {
		return nil, err
	}

	codec, err := ivf.NewPQCodec(pq, dim, a.dm, param.UsePrecomputedTables)
	if err != nil {
		return nil, err
	}

	if err := a.initIndex(codec); err != nil {
		return nil, err
	}

	return a, nil
}
