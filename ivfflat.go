package vecbench

import (
	"github.com/hupe1980/vecbench/index/ivf"
	"github.com/hupe1980/vecbench/persistence"
)

// IVFFlatAlgorithm benchmarks the inverted-file index with uncompressed list
// storage.
type IVFFlatAlgorithm struct {
	ivfAdapter
}

// Compile-time interface check.
var _ Algorithm = (*IVFFlatAlgorithm)(nil)

// NewIVFFlat constructs the IVF-Flat variant.
func NewIVFFlat(metric Metric, dim int, param BuildParam, optFns ...func(o *Options)) (*IVFFlatAlgorithm, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := param.validate(); err != nil {
		return nil, err
	}

	base, err := newAdapterBase("ivf_flat", persistence.IndexTypeIVFFlat, metric, dim, opts)
	if err != nil {
		return nil, err
	}

	a := &IVFFlatAlgorithm{ivfAdapter: ivfAdapter{adapterBase: base, param: param}}

	codec, err := ivf.NewRawCodec(dim, a.dm)
	if err != nil {
		return nil, err
	}

	if err := a.initIndex(codec); err != nil {
		return nil, err
	}

	return a, nil
}
