package quantization

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecbench/distance"
)

func randomVectors(seed int64, rows, dim int) []float32 {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float32, rows*dim)
	for i := range data {
		data[i] = rng.Float32()
	}
	return data
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("fp16")
	require.NoError(t, err)
	assert.Equal(t, KindFP16, kind)

	kind, err = ParseKind("int8")
	require.NoError(t, err)
	assert.Equal(t, KindInt8, kind)

	_, err = ParseKind("int4")
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestScalarQuantizer(t *testing.T) {
	ctx := context.Background()
	dim := 8

	sq, err := NewScalarQuantizer(dim)
	require.NoError(t, err)
	assert.False(t, sq.Trained())
	assert.Equal(t, dim, sq.CodeSize())

	vectors := randomVectors(1, 200, dim)
	require.NoError(t, sq.Train(ctx, vectors, 200))
	require.True(t, sq.Trained())

	code := make([]byte, sq.CodeSize())
	decoded := make([]float32, dim)

	for row := 0; row < 50; row++ {
		vec := vectors[row*dim : (row+1)*dim]
		sq.Encode(vec, code)
		sq.Decode(code, decoded)

		for d := 0; d < dim; d++ {
			step := (sq.Maxs()[d] - sq.Mins()[d]) / 255
			assert.InDelta(t, vec[d], decoded[d], float64(step)+1e-6)
		}
	}
}

func TestScalarQuantizerClamps(t *testing.T) {
	sq, err := NewScalarQuantizer(2)
	require.NoError(t, err)
	require.NoError(t, sq.SetBounds([]float32{0, 0}, []float32{1, 1}))

	code := make([]byte, 2)
	decoded := make([]float32, 2)

	// Out-of-range values clamp to the trained bounds.
	sq.Encode([]float32{-5, 5}, code)
	sq.Decode(code, decoded)
	assert.InDelta(t, 0, decoded[0], 1e-6)
	assert.InDelta(t, 1, decoded[1], 1e-6)
}

func TestHalfQuantizer(t *testing.T) {
	dim := 8

	hq, err := NewHalfQuantizer(dim)
	require.NoError(t, err)
	assert.True(t, hq.Trained())
	assert.Equal(t, 2*dim, hq.CodeSize())

	vectors := randomVectors(2, 20, dim)
	code := make([]byte, hq.CodeSize())
	decoded := make([]float32, dim)

	for row := 0; row < 20; row++ {
		vec := vectors[row*dim : (row+1)*dim]
		hq.Encode(vec, code)
		hq.Decode(code, decoded)

		// Values in [0, 1) decode within the binary16 step size.
		for d := 0; d < dim; d++ {
			assert.InDelta(t, vec[d], decoded[d], 1e-3)
		}
	}
}

func TestProductQuantizer(t *testing.T) {
	ctx := context.Background()
	dim := 8

	t.Run("InvalidSubQuantizers", func(t *testing.T) {
		_, err := NewProductQuantizer(dim, 3, 4)
		require.Error(t, err)
	})

	t.Run("TrainEncodeDecode", func(t *testing.T) {
		pq, err := NewProductQuantizer(dim, 2, 4)
		require.NoError(t, err)
		assert.Equal(t, 2, pq.CodeSize())

		vectors := randomVectors(3, 500, dim)
		require.NoError(t, pq.Train(ctx, vectors, 500))
		require.True(t, pq.Trained())

		code := make([]byte, pq.CodeSize())
		decoded := make([]float32, dim)

		// Reconstruction error is bounded by the data spread, not tight,
		// but a trained codebook must land in the data's range.
		vec := vectors[:dim]
		pq.Encode(vec, code)
		pq.Decode(code, decoded)
		assert.Less(t, distance.SquaredL2(vec, decoded), float32(float64(dim)*0.25))
	})

	t.Run("TableMatchesDirectDistance", func(t *testing.T) {
		pq, err := NewProductQuantizer(dim, 2, 4)
		require.NoError(t, err)

		vectors := randomVectors(4, 300, dim)
		require.NoError(t, pq.Train(ctx, vectors, 300))

		query := vectors[:dim]
		table := make([]float32, pq.TableSize())
		require.NoError(t, pq.DistanceTable(distance.MetricL2, query, table))

		code := make([]byte, pq.CodeSize())
		for row := 1; row < 50; row++ {
			pq.Encode(vectors[row*dim:(row+1)*dim], code)

			direct, err := pq.AsymmetricDistance(distance.MetricL2, query, code)
			require.NoError(t, err)

			assert.InDelta(t, direct, pq.LookupDistance(table, code), 1e-4)
		}
	})

	t.Run("CodebookRoundtrip", func(t *testing.T) {
		pq, err := NewProductQuantizer(dim, 2, 4)
		require.NoError(t, err)

		vectors := randomVectors(5, 300, dim)
		require.NoError(t, pq.Train(ctx, vectors, 300))

		restored, err := NewProductQuantizer(dim, 2, 4)
		require.NoError(t, err)
		require.NoError(t, restored.SetCodebooks(pq.Codebooks()))
		require.True(t, restored.Trained())

		code := make([]byte, pq.CodeSize())
		restoredCode := make([]byte, restored.CodeSize())

		vec := vectors[dim : 2*dim]
		pq.Encode(vec, code)
		restored.Encode(vec, restoredCode)
		assert.Equal(t, code, restoredCode)
	})
}
