// Package kmeans implements Lloyd's algorithm for training the coarse
// centroids and quantizer codebooks used by the inverted-file indexes.
package kmeans

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/hupe1980/vecbench/distance"
)

// DefaultMinPointsPerCentroid is the minimum number of training points per
// centroid below which clustering quality becomes questionable. Callers may
// warn when their training budget falls under this value.
const DefaultMinPointsPerCentroid = 39

// DefaultMaxIter is the default number of Lloyd iterations.
const DefaultMaxIter = 25

// ErrNotEnoughPoints is returned when fewer training points than centroids
// are provided.
var ErrNotEnoughPoints = errors.New("kmeans: fewer training points than centroids")

// Params bounds the clustering work. The zero value disables both bounds.
type Params struct {
	// MinPointsPerCentroid is advisory: training proceeds even when the
	// training set is smaller than Min*k. See DefaultMinPointsPerCentroid.
	MinPointsPerCentroid int

	// MaxPointsPerCentroid caps the training set at Max*k points; larger
	// training sets are subsampled before clustering.
	MaxPointsPerCentroid int

	// MaxIter is the Lloyd iteration cap. Zero means DefaultMaxIter.
	MaxIter int

	// Seed drives centroid initialization and subsampling.
	Seed int64
}

// Train clusters the row-major vectors (n x dim) into k centroids and returns
// them flattened (k * dim).
func Train(vectors []float32, dim, k int, metric distance.Metric, params Params) ([]float32, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("kmeans: invalid dimension %d", dim)
	}
	n := len(vectors) / dim
	if n < k {
		return nil, fmt.Errorf("%w: %d < %d", ErrNotEnoughPoints, n, k)
	}

	distFunc, err := distance.Provider(metric)
	if err != nil {
		return nil, err
	}

	maxIter := params.MaxIter
	if maxIter <= 0 {
		maxIter = DefaultMaxIter
	}

	rng := rand.New(rand.NewSource(params.Seed))

	// Subsample when the training set exceeds the per-centroid budget.
	if params.MaxPointsPerCentroid > 0 && n > params.MaxPointsPerCentroid*k {
		keep := params.MaxPointsPerCentroid * k
		perm := rng.Perm(n)
		sampled := make([]float32, keep*dim)
		for i := 0; i < keep; i++ {
			copy(sampled[i*dim:(i+1)*dim], vectors[perm[i]*dim:(perm[i]+1)*dim])
		}
		vectors = sampled
		n = keep
	}

	centroids := make([]float32, k*dim)

	// Initialize centroids from distinct data points.
	perm := rng.Perm(n)
	for i := 0; i < k; i++ {
		copy(centroids[i*dim:(i+1)*dim], vectors[perm[i]*dim:(perm[i]+1)*dim])
	}

	assignments := make([]int, n)
	counts := make([]int, k)
	sums := make([]float32, k*dim)

	for iter := 0; iter < maxIter; iter++ {
		changed := false

		// Assignment step
		for i := 0; i < n; i++ {
			vec := vectors[i*dim : (i+1)*dim]
			best := -1
			minDist := float32(math.MaxFloat32)

			for j := 0; j < k; j++ {
				d := distFunc(vec, centroids[j*dim:(j+1)*dim])
				if d < minDist {
					minDist = d
					best = j
				}
			}

			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		if !changed && iter > 0 {
			break
		}

		// Update step
		for i := range sums {
			sums[i] = 0
		}
		for i := range counts {
			counts[i] = 0
		}

		for i := 0; i < n; i++ {
			c := assignments[i]
			vec := vectors[i*dim : (i+1)*dim]
			for d := 0; d < dim; d++ {
				sums[c*dim+d] += vec[d]
			}
			counts[c]++
		}

		for j := 0; j < k; j++ {
			if counts[j] > 0 {
				scale := 1.0 / float32(counts[j])
				for d := 0; d < dim; d++ {
					centroids[j*dim+d] = sums[j*dim+d] * scale
				}
			} else {
				// Re-seed an empty cluster with a random point.
				idx := rng.Intn(n)
				copy(centroids[j*dim:(j+1)*dim], vectors[idx*dim:(idx+1)*dim])
			}
		}
	}

	return centroids, nil
}
