package vecbench

import (
	"fmt"

	"github.com/hupe1980/vecbench/distance"
	"github.com/hupe1980/vecbench/quantization"
)

// Metric identifies the distance function an index is built and searched
// with. It is fixed at construction.
type Metric int

const (
	// MetricInnerProduct ranks by maximum inner product.
	MetricInnerProduct Metric = iota

	// MetricEuclidean ranks by minimum squared Euclidean distance.
	MetricEuclidean
)

func (m Metric) String() string {
	switch m {
	case MetricInnerProduct:
		return "inner_product"
	case MetricEuclidean:
		return "euclidean"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

// parseMetric maps the benchmark metric onto the index library's distance
// identifier. Values outside the two supported metrics are rejected.
func parseMetric(m Metric) (distance.Metric, error) {
	switch m {
	case MetricInnerProduct:
		return distance.MetricInnerProduct, nil
	case MetricEuclidean:
		return distance.MetricL2, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedMetric, m)
	}
}

// BuildParam describes how an inverted-file index is constructed.
type BuildParam struct {
	// NList is the number of inverted lists (coarse clusters). Must be at
	// least 1.
	NList int

	// SampleRatio is the denominator controlling what fraction of the
	// dataset is used for training: trainset = rows / SampleRatio. Must be
	// at least 1.
	SampleRatio int
}

func (p BuildParam) validate() error {
	if p.NList < 1 {
		return &ErrInvalidBuildParam{Field: "NList", Value: p.NList}
	}
	if p.SampleRatio < 1 {
		return &ErrInvalidBuildParam{Field: "SampleRatio", Value: p.SampleRatio}
	}
	return nil
}

// IVFPQParam extends BuildParam with product-quantization settings.
type IVFPQParam struct {
	BuildParam

	// SubQuantizers is the number of PQ subspaces. Must divide the
	// dimensionality.
	SubQuantizers int

	// BitsPerCode is the number of bits per PQ code.
	BitsPerCode int

	// UsePrecomputedTables enables per-query distance tables during search.
	UsePrecomputedTables bool
}

// IVFSQParam extends BuildParam with the scalar quantizer kind.
type IVFSQParam struct {
	BuildParam

	// Kind selects the scalar storage format, one of "fp16" or "int8".
	Kind string
}

func (p IVFSQParam) parseKind() (quantization.Kind, error) {
	kind, err := quantization.ParseKind(p.Kind)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedQuantizerKind, p.Kind)
	}
	return kind, nil
}

// SearchParam describes the search-time tuning of an inverted-file index.
type SearchParam struct {
	// NProbe is the number of coarse clusters visited per query. Must not
	// exceed the index's NList.
	NProbe int

	// RefineRatio enables a refinement pass when greater than 1: the index
	// over-fetches k*RefineRatio candidates and re-ranks them by
	// reconstructed-vector distances. Once enabled the refinement wrapper
	// stays in place for all later searches.
	RefineRatio float32
}
