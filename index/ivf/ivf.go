// Package ivf implements an inverted-file index: vectors are assigned to the
// nearest of nlist centroids and stored in per-centroid lists through a
// pluggable ListCodec. Searches probe the nprobe closest lists only.
package ivf

import (
	"context"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vecbench/distance"
	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/index/flat"
	"github.com/hupe1980/vecbench/internal/kmeans"
	"github.com/hupe1980/vecbench/internal/queue"
	"github.com/hupe1980/vecbench/persistence"
)

// ClusteringPolicy bounds the k-means training set. Both fields may be
// adjusted before Train; zero values fall back to the kmeans defaults.
type ClusteringPolicy struct {
	// MinPointsPerCentroid is the number of training points per centroid
	// below which the clustering is considered under-trained.
	MinPointsPerCentroid int

	// MaxPointsPerCentroid caps the training points per centroid; the
	// training set is subsampled beyond it.
	MaxPointsPerCentroid int
}

// Options configures an inverted-file index.
type Options struct {
	// Dimension is the vector dimensionality.
	Dimension int

	// Metric selects the distance measure.
	Metric distance.Metric

	// NList is the number of inverted lists (coarse centroids).
	NList int

	// Seed feeds the k-means initialization.
	Seed int64

	// Compression selects the on-disk payload compression.
	Compression persistence.CompressionType
}

// DefaultOptions holds the baseline configuration for an IVF index.
var DefaultOptions = Options{
	Metric: distance.MetricL2,
	NList:  1,
}

// Index is an inverted-file index over a coarse quantizer and a list codec.
type Index struct {
	opts  Options
	codec ListCodec

	// quantizer holds the nlist centroids; probing is a flat search over it.
	quantizer *flat.Flat

	cp     ClusteringPolicy
	nprobe int

	writeMu  sync.Mutex
	lists    [][]byte
	ids      [][]uint32
	nonEmpty *roaring.Bitmap

	// listOf and offOf locate a vector's code by id, for reconstruction.
	listOf []uint32
	offOf  []uint32

	count   int
	trained bool
}

// Compile-time interface checks.
var (
	_ index.Index         = (*Index)(nil)
	_ index.Reconstructor = (*Index)(nil)
)

// New creates an untrained inverted-file index storing vectors through codec.
func New(codec ListCodec, optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("ivf: invalid dimension %d", opts.Dimension)
	}

	if opts.NList < 1 {
		return nil, fmt.Errorf("ivf: invalid nlist %d", opts.NList)
	}

	if _, err := distance.Provider(opts.Metric); err != nil {
		return nil, err
	}

	quantizer, err := flat.New(func(o *flat.Options) {
		o.Dimension = opts.Dimension
		o.Metric = opts.Metric
	})
	if err != nil {
		return nil, err
	}

	return &Index{
		opts:      opts,
		codec:     codec,
		quantizer: quantizer,
		cp: ClusteringPolicy{
			MinPointsPerCentroid: kmeans.DefaultMinPointsPerCentroid,
			MaxPointsPerCentroid: kmeans.DefaultMinPointsPerCentroid * 256,
		},
		nprobe:   1,
		lists:    make([][]byte, opts.NList),
		ids:      make([][]uint32, opts.NList),
		nonEmpty: roaring.New(),
	}, nil
}

// Metric returns the configured distance metric.
func (ivf *Index) Metric() distance.Metric { return ivf.opts.Metric }

// Dimension returns the vector dimensionality.
func (ivf *Index) Dimension() int { return ivf.opts.Dimension }

// NList returns the number of inverted lists.
func (ivf *Index) NList() int { return ivf.opts.NList }

// NProbe returns the number of lists probed per search.
func (ivf *Index) NProbe() int { return ivf.nprobe }

// Codec returns the list codec.
func (ivf *Index) Codec() ListCodec { return ivf.codec }

// Quantizer returns the coarse quantizer holding the centroids.
func (ivf *Index) Quantizer() *flat.Flat { return ivf.quantizer }

// ClusteringPolicy returns the mutable training bounds. Adjustments take
// effect on the next Train call.
func (ivf *Index) ClusteringPolicy() *ClusteringPolicy { return &ivf.cp }

// IsTrained reports whether centroids and codec are ready.
func (ivf *Index) IsTrained() bool { return ivf.trained && ivf.codec.Trained() }

// NTotal returns the number of stored vectors.
func (ivf *Index) NTotal() int { return ivf.count }

// SetNProbe sets the number of inverted lists visited per search. The value
// must be between 1 and nlist.
func (ivf *Index) SetNProbe(nprobe int) error {
	if nprobe < 1 || nprobe > ivf.opts.NList {
		return fmt.Errorf("ivf: nprobe %d out of range [1, %d]", nprobe, ivf.opts.NList)
	}

	ivf.nprobe = nprobe

	return nil
}

// Train clusters the training vectors into nlist centroids and calibrates the
// list codec on the same set.
func (ivf *Index) Train(ctx context.Context, vectors []float32, rows int) error {
	ivf.writeMu.Lock()
	defer ivf.writeMu.Unlock()

	if ivf.trained {
		return fmt.Errorf("ivf: index is already trained")
	}

	if rows*ivf.opts.Dimension != len(vectors) {
		return &index.ErrDimensionMismatch{Expected: rows * ivf.opts.Dimension, Actual: len(vectors)}
	}

	centroids, err := kmeans.Train(vectors, ivf.opts.Dimension, ivf.opts.NList, ivf.opts.Metric, kmeans.Params{
		MinPointsPerCentroid: ivf.cp.MinPointsPerCentroid,
		MaxPointsPerCentroid: ivf.cp.MaxPointsPerCentroid,
		Seed:                 ivf.opts.Seed,
	})
	if err != nil {
		return fmt.Errorf("ivf: clustering failed: %w", err)
	}

	if err := ivf.quantizer.Add(ctx, centroids, ivf.opts.NList); err != nil {
		return fmt.Errorf("ivf: adding centroids failed: %w", err)
	}

	if err := ivf.codec.Train(ctx, vectors, rows); err != nil {
		return fmt.Errorf("ivf: codec training failed: %w", err)
	}

	ivf.trained = true

	return nil
}

// Add assigns each vector to its nearest centroid and appends the encoded
// form to that centroid's list. Ids are assigned sequentially.
func (ivf *Index) Add(ctx context.Context, vectors []float32, rows int) error {
	ivf.writeMu.Lock()
	defer ivf.writeMu.Unlock()

	if !ivf.IsTrained() {
		return index.ErrNotTrained
	}

	if rows*ivf.opts.Dimension != len(vectors) {
		return &index.ErrDimensionMismatch{Expected: rows * ivf.opts.Dimension, Actual: len(vectors)}
	}

	codeSize := ivf.codec.CodeSize()
	code := make([]byte, codeSize)

	for row := 0; row < rows; row++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		vec := vectors[row*ivf.opts.Dimension : (row+1)*ivf.opts.Dimension]

		nearest, err := ivf.quantizer.Search(ctx, vec, 1, nil)
		if err != nil {
			return fmt.Errorf("ivf: centroid assignment failed: %w", err)
		}

		list := nearest[0].ID
		id := uint32(ivf.count)

		ivf.codec.Encode(vec, code)

		ivf.listOf = append(ivf.listOf, list)
		ivf.offOf = append(ivf.offOf, uint32(len(ivf.ids[list])))

		ivf.lists[list] = append(ivf.lists[list], code...)
		ivf.ids[list] = append(ivf.ids[list], id)
		ivf.nonEmpty.Add(list)

		ivf.count++
	}

	return nil
}

// Search probes the nprobe nearest inverted lists and returns up to k results
// ordered from best to worst. Fewer than k results are returned when the
// probed lists hold fewer candidates.
func (ivf *Index) Search(ctx context.Context, query []float32, k int, opts *index.SearchOptions) ([]index.SearchResult, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}

	if !ivf.IsTrained() {
		return nil, index.ErrNotTrained
	}

	if len(query) != ivf.opts.Dimension {
		return nil, &index.ErrDimensionMismatch{Expected: ivf.opts.Dimension, Actual: len(query)}
	}

	probes, err := ivf.quantizer.Search(ctx, query, ivf.nprobe, nil)
	if err != nil {
		return nil, fmt.Errorf("ivf: probing failed: %w", err)
	}

	distancer, err := ivf.codec.NewDistancer(query)
	if err != nil {
		return nil, err
	}

	codeSize := ivf.codec.CodeSize()
	topK := queue.NewTopK(k)

	for _, probe := range probes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		list := probe.ID
		if !ivf.nonEmpty.Contains(list) {
			continue
		}

		codes := ivf.lists[list]
		ids := ivf.ids[list]

		for i, id := range ids {
			if !opts.Allows(id) {
				continue
			}

			d := distancer.Distance(codes[i*codeSize : (i+1)*codeSize])

			topK.Push(queue.Item{ID: id, Distance: d})
		}
	}

	items := topK.Sorted()

	results := make([]index.SearchResult, len(items))
	for i, it := range items {
		results[i] = index.SearchResult{ID: it.ID, Distance: it.Distance}
	}

	return results, nil
}

// Reconstruct decodes the stored form of the vector with the given id. The
// result is exact for the raw codec and lossy for quantized codecs.
func (ivf *Index) Reconstruct(id uint32, out []float32) error {
	if int(id) >= ivf.count {
		return &index.ErrNodeNotFound{ID: id}
	}

	list := ivf.listOf[id]
	off := int(ivf.offOf[id])
	codeSize := ivf.codec.CodeSize()

	ivf.codec.Decode(ivf.lists[list][off*codeSize:(off+1)*codeSize], out)

	return nil
}
