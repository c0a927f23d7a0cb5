package vecbench

import (
	"context"
	"fmt"

	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/index/ivf"
	"github.com/hupe1980/vecbench/index/refine"
	"github.com/hupe1980/vecbench/internal/kmeans"
)

// ivfAdapter is the shared behavior of the inverted-file variants: the
// clustering-policy computation during build, probe-count tuning and the
// sticky refinement wrapper.
type ivfAdapter struct {
	adapterBase
	param BuildParam
	ivf   *ivf.Index
}

// initIndex creates the underlying inverted-file index over codec and wires
// it into the base adapter.
func (a *ivfAdapter) initIndex(codec ivf.ListCodec) error {
	idx, err := ivf.New(codec, func(o *ivf.Options) {
		o.Dimension = a.dim
		o.Metric = a.dm
		o.NList = a.param.NList
		o.Seed = a.opts.Seed
		o.Compression = a.opts.Compression
	})
	if err != nil {
		return err
	}

	a.ivf = idx
	a.idx = idx
	a.install = a.installIndex

	return nil
}

// Build derives the clustering bounds from the sample ratio, trains the
// index and adds all rows, all inside the controller's single-worker scope.
// A training budget below the k-means recommended minimum logs a warning and
// proceeds: it signals under-trained clusters, not a correctness violation.
func (a *ivfAdapter) Build(ctx context.Context, dataset []float32, rows int) error {
	release, err := a.opts.Controller.SingleWorker(ctx)
	if err != nil {
		return err
	}
	defer release()

	trainset := rows / a.param.SampleRatio
	minPPC := trainset / a.param.NList
	maxPPC := (trainset + a.param.NList - 1) / a.param.NList

	if minPPC < kmeans.DefaultMinPointsPerCentroid {
		a.opts.Logger.Warn("insufficient training points per centroid",
			"variant", a.variant,
			"rows", rows,
			"sample_ratio", a.param.SampleRatio,
			"trainset", trainset,
			"nlist", a.param.NList,
			"points_per_centroid", minPPC,
			"recommended_min", kmeans.DefaultMinPointsPerCentroid,
		)
	}

	cp := a.ivf.ClusteringPolicy()
	cp.MinPointsPerCentroid = minPPC
	cp.MaxPointsPerCentroid = maxPPC

	if err := a.ivf.Train(ctx, dataset, rows); err != nil {
		return err
	}

	return a.ivf.Add(ctx, dataset, rows)
}

// SetSearchParam applies the probe count and, for RefineRatio > 1, puts a
// refinement wrapper in front of the index. The wrapper is created lazily on
// the first such call and then stays in place for all later searches, even
// if a later call passes RefineRatio == 1; only its over-fetch factor is
// updated.
func (a *ivfAdapter) SetSearchParam(param SearchParam) error {
	if param.NProbe > a.param.NList {
		return fmt.Errorf("%w: nprobe %d > nlist %d", ErrProbesExceedLists, param.NProbe, a.param.NList)
	}

	nprobe := param.NProbe
	if nprobe < 1 {
		nprobe = 1
	}

	if err := a.ivf.SetNProbe(nprobe); err != nil {
		return err
	}

	if param.RefineRatio > 1 {
		if a.refiner == nil {
			r, err := refine.New(a.ivf, a.ivf, a.dm, func(o *refine.Options) {
				o.KFactor = param.RefineRatio
			})
			if err != nil {
				return err
			}
			a.refiner = r
			return nil
		}
		return a.refiner.SetKFactor(param.RefineRatio)
	}

	return nil
}

func (a *ivfAdapter) installIndex(idx index.Index) error {
	restored, ok := idx.(*ivf.Index)
	if !ok {
		return fmt.Errorf("%w: loaded index is %T", ErrIndexTypeMismatch, idx)
	}

	a.ivf = restored

	return nil
}
