package kmeans

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecbench/distance"
)

func clusteredData(t *testing.T, n, dim, clusters int, spread float32) ([]float32, []float32) {
	t.Helper()

	rng := rand.New(rand.NewSource(42))

	centers := make([]float32, clusters*dim)
	for i := range centers {
		centers[i] = rng.Float32() * 10
	}

	data := make([]float32, n*dim)
	for i := 0; i < n; i++ {
		c := i % clusters
		for d := 0; d < dim; d++ {
			data[i*dim+d] = centers[c*dim+d] + float32(rng.NormFloat64())*spread
		}
	}

	return data, centers
}

func TestTrainRecoversClusters(t *testing.T) {
	dim := 4
	data, centers := clusteredData(t, 400, dim, 4, 0.05)

	centroids, err := Train(data, dim, 4, distance.MetricL2, Params{Seed: 1})
	require.NoError(t, err)
	require.Len(t, centroids, 4*dim)

	// Every true center has a learned centroid nearby.
	for c := 0; c < 4; c++ {
		center := centers[c*dim : (c+1)*dim]

		best := float32(1e30)
		for j := 0; j < 4; j++ {
			d := distance.SquaredL2(center, centroids[j*dim:(j+1)*dim])
			if d < best {
				best = d
			}
		}

		assert.Less(t, best, float32(0.5), "center %d", c)
	}
}

func TestTrainNotEnoughPoints(t *testing.T) {
	data := make([]float32, 3*4)

	_, err := Train(data, 4, 8, distance.MetricL2, Params{})
	require.ErrorIs(t, err, ErrNotEnoughPoints)
}

func TestTrainSubsamples(t *testing.T) {
	dim := 4
	data, _ := clusteredData(t, 1000, dim, 4, 0.1)

	// Capping at 10 points per centroid trains on 40 of the 1000 vectors
	// and must still produce valid centroids.
	centroids, err := Train(data, dim, 4, distance.MetricL2, Params{
		MaxPointsPerCentroid: 10,
		Seed:                 2,
	})
	require.NoError(t, err)
	require.Len(t, centroids, 4*dim)

	for _, v := range centroids {
		assert.False(t, v != v, "centroid value is NaN")
	}
}

func TestTrainDeterministicForSeed(t *testing.T) {
	dim := 4
	data, _ := clusteredData(t, 200, dim, 4, 0.1)

	a, err := Train(data, dim, 4, distance.MetricL2, Params{Seed: 7})
	require.NoError(t, err)

	b, err := Train(data, dim, 4, distance.MetricL2, Params{Seed: 7})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}
