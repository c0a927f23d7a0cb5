package vecbench

import (
	"fmt"

	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/index/ivf"
	"github.com/hupe1980/vecbench/persistence"
	"github.com/hupe1980/vecbench/quantization"
)

// IVFSQAlgorithm benchmarks the inverted-file index with scalar-quantized
// list storage (fp16 or int8).
type IVFSQAlgorithm struct {
	ivfAdapter
	kind quantization.Kind
}

// Compile-time interface check.
var _ Algorithm = (*IVFSQAlgorithm)(nil)

// NewIVFSQ constructs the IVF-SQ variant. The quantizer kind is validated
// before any index is allocated; kinds outside {fp16, int8} fail with
// ErrUnsupportedQuantizerKind.
func NewIVFSQ(metric Metric, dim int, param IVFSQParam, optFns ...func(o *Options)) (*IVFSQAlgorithm, error) {
	kind, err := param.parseKind()
	if err != nil {
		return nil, err
	}

	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := param.validate(); err != nil {
		return nil, err
	}

	base, err := newAdapterBase("ivf_sq", persistence.IndexTypeIVFSQ, metric, dim, opts)
	if err != nil {
		return nil, err
	}

	a := &IVFSQAlgorithm{
		ivfAdapter: ivfAdapter{adapterBase: base, param: param.BuildParam},
		kind:       kind,
	}

	var q quantization.Quantizer
	switch kind {
	case quantization.KindInt8:
		q, err = quantization.NewScalarQuantizer(dim)
	case quantization.KindFP16:
		q, err = quantization.NewHalfQuantizer(dim)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedQuantizerKind, param.Kind)
	}
	if err != nil {
		return nil, err
	}

	codec, err := ivf.NewSQCodec(q, kind, dim, a.dm)
	if err != nil {
		return nil, err
	}

	if err := a.initIndex(codec); err != nil {
		return nil, err
	}

	a.install = a.installSQIndex

	return a, nil
}

// installSQIndex additionally guards against a file written with the other
// scalar kind, which shares the IVF-SQ type tag.
func (a *IVFSQAlgorithm) installSQIndex(idx index.Index) error {
	restored, ok := idx.(*ivf.Index)
	if !ok {
		return fmt.Errorf("%w: loaded index is %T", ErrIndexTypeMismatch, idx)
	}

	codec, ok := restored.Codec().(*ivf.SQCodec)
	if !ok {
		return fmt.Errorf("%w: loaded codec is %T", ErrIndexTypeMismatch, restored.Codec())
	}

	if codec.Kind() != a.kind {
		return fmt.Errorf("%w: file holds %s codes, adapter expects %s", ErrIndexTypeMismatch, codec.Kind(), a.kind)
	}

	a.ivf = restored

	return nil
}
