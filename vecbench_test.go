package vecbench

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecbench/blobstore"
	"github.com/hupe1980/vecbench/distance"
	"github.com/hupe1980/vecbench/testutil"
)

func quiet(o *Options) {
	o.Logger = NoopLogger()
}

func TestFlat(t *testing.T) {
	ctx := context.Background()

	t.Run("BuildContainsAllRows", func(t *testing.T) {
		for _, metric := range []Metric{MetricEuclidean, MetricInnerProduct} {
			rng := testutil.NewRNG(1)
			dataset := rng.UniformFlat(100, 16)

			algo, err := NewFlat(metric, 16, quiet)
			require.NoError(t, err)

			require.NoError(t, algo.Build(ctx, dataset, 100))

			stats := algo.Stats()
			assert.Equal(t, 100, stats.NTotal)
			assert.True(t, stats.Trained)
		}
	})

	t.Run("SetSearchParamIsNoop", func(t *testing.T) {
		algo, err := NewFlat(MetricEuclidean, 8, quiet)
		require.NoError(t, err)

		require.NoError(t, algo.SetSearchParam(SearchParam{NProbe: 1000, RefineRatio: 2}))
	})

	t.Run("SearchMatchesExhaustiveScan", func(t *testing.T) {
		rng := testutil.NewRNG(2)
		dataset := rng.UniformFlat(500, 8)
		query := rng.UniformFlat(1, 8)

		algo, err := NewFlat(MetricEuclidean, 8, quiet)
		require.NoError(t, err)
		require.NoError(t, algo.Build(ctx, dataset, 500))

		ids := make([]uint32, 10)
		distances := make([]float32, 10)
		require.NoError(t, algo.SearchBatch(ctx, query, 1, 10, ids, distances))

		exact := testutil.ExactTopK(query, dataset, 8, 10, distance.SquaredL2)
		for i, want := range exact {
			assert.Equal(t, want.ID, ids[i])
			assert.InDelta(t, want.Distance, distances[i], 1e-5)
		}
	})

	t.Run("UnsupportedMetric", func(t *testing.T) {
		algo, err := NewFlat(Metric(42), 8, quiet)
		require.ErrorIs(t, err, ErrUnsupportedMetric)
		assert.Nil(t, algo)
	})
}

func TestSentinelFill(t *testing.T) {
	ctx := context.Background()

	rng := testutil.NewRNG(3)
	dataset := rng.UniformFlat(3, 4)
	query := rng.UniformFlat(1, 4)

	algo, err := NewFlat(MetricEuclidean, 4, quiet)
	require.NoError(t, err)
	require.NoError(t, algo.Build(ctx, dataset, 3))

	k := 5
	ids := make([]uint32, k)
	distances := make([]float32, k)
	require.NoError(t, algo.SearchBatch(ctx, query, 1, k, ids, distances))

	for i := 0; i < 3; i++ {
		assert.NotEqual(t, uint32(NoMatchID), ids[i], "slot %d", i)
	}
	for i := 3; i < k; i++ {
		assert.Equal(t, uint32(NoMatchID), ids[i], "slot %d", i)
	}
}

func TestIVFFlat(t *testing.T) {
	ctx := context.Background()

	t.Run("ProbesExceedListsRejected", func(t *testing.T) {
		algo, err := NewIVFFlat(MetricEuclidean, 8, BuildParam{NList: 4, SampleRatio: 1}, quiet)
		require.NoError(t, err)

		err = algo.SetSearchParam(SearchParam{NProbe: 8})
		require.ErrorIs(t, err, ErrProbesExceedLists)
	})

	t.Run("FullProbingMatchesFlat", func(t *testing.T) {
		rng := testutil.NewRNG(4)
		dataset := rng.UniformFlat(1000, 8)
		query := rng.UniformFlat(1, 8)

		ivfAlgo, err := NewIVFFlat(MetricEuclidean, 8, BuildParam{NList: 4, SampleRatio: 1}, quiet)
		require.NoError(t, err)
		require.NoError(t, ivfAlgo.Build(ctx, dataset, 1000))
		require.NoError(t, ivfAlgo.SetSearchParam(SearchParam{NProbe: 4}))

		flatAlgo, err := NewFlat(MetricEuclidean, 8, quiet)
		require.NoError(t, err)
		require.NoError(t, flatAlgo.Build(ctx, dataset, 1000))

		k := 5
		ivfIDs := make([]uint32, k)
		ivfDists := make([]float32, k)
		require.NoError(t, ivfAlgo.SearchBatch(ctx, query, 1, k, ivfIDs, ivfDists))

		flatIDs := make([]uint32, k)
		flatDists := make([]float32, k)
		require.NoError(t, flatAlgo.SearchBatch(ctx, query, 1, k, flatIDs, flatDists))

		// Probing every list degenerates to an exhaustive scan; only the
		// internal id assignment differs, so compare by distance.
		for i := 0; i < k; i++ {
			assert.InDelta(t, flatDists[i], ivfDists[i], 1e-5, "rank %d", i)
		}
	})

	t.Run("BuildCount", func(t *testing.T) {
		rng := testutil.NewRNG(5)
		dataset := rng.ClusteredFlat(400, 8, 4, 0.1)

		algo, err := NewIVFFlat(MetricEuclidean, 8, BuildParam{NList: 4, SampleRatio: 1}, quiet)
		require.NoError(t, err)
		require.NoError(t, algo.Build(ctx, dataset, 400))

		assert.Equal(t, 400, algo.Stats().NTotal)
	})
}

func TestRefinementNeverWorse(t *testing.T) {
	ctx := context.Background()

	rng := testutil.NewRNG(6)
	dataset := rng.ClusteredFlat(800, 8, 8, 0.2)
	queries := rng.GaussianFlat(8, 8)

	algo, err := NewIVFFlat(MetricEuclidean, 8, BuildParam{NList: 8, SampleRatio: 1}, quiet)
	require.NoError(t, err)
	require.NoError(t, algo.Build(ctx, dataset, 800))

	k := 5
	batch := 8

	require.NoError(t, algo.SetSearchParam(SearchParam{NProbe: 1}))
	plainIDs := make([]uint32, batch*k)
	plainDists := make([]float32, batch*k)
	require.NoError(t, algo.SearchBatch(ctx, queries, batch, k, plainIDs, plainDists))

	require.NoError(t, algo.SetSearchParam(SearchParam{NProbe: 1, RefineRatio: 3}))
	assert.True(t, algo.Stats().Refined)

	refinedIDs := make([]uint32, batch*k)
	refinedDists := make([]float32, batch*k)
	require.NoError(t, algo.SearchBatch(ctx, queries, batch, k, refinedIDs, refinedDists))

	for i := 0; i < batch*k; i++ {
		if plainIDs[i] == uint32(NoMatchID) || refinedIDs[i] == uint32(NoMatchID) {
			continue
		}
		assert.LessOrEqual(t, refinedDists[i], plainDists[i]+1e-6, "slot %d", i)
	}
}

func TestStickyRefinementWrapper(t *testing.T) {
	ctx := context.Background()

	rng := testutil.NewRNG(7)
	dataset := rng.UniformFlat(200, 8)

	algo, err := NewIVFFlat(MetricEuclidean, 8, BuildParam{NList: 2, SampleRatio: 1}, quiet)
	require.NoError(t, err)
	require.NoError(t, algo.Build(ctx, dataset, 200))

	require.NoError(t, algo.SetSearchParam(SearchParam{NProbe: 2, RefineRatio: 2}))
	require.True(t, algo.Stats().Refined)

	// Dropping the ratio back to 1 keeps the wrapper in place.
	require.NoError(t, algo.SetSearchParam(SearchParam{NProbe: 2, RefineRatio: 1}))
	assert.True(t, algo.Stats().Refined)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	ctx := context.Background()

	rng := testutil.NewRNG(8)
	dataset := rng.UniformFlat(600, 8)
	queries := rng.UniformFlat(4, 8)

	k := 5
	batch := 4

	t.Run("IVFFlat", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ivfflat.vbx")

		algo, err := NewIVFFlat(MetricEuclidean, 8, BuildParam{NList: 4, SampleRatio: 1}, quiet)
		require.NoError(t, err)
		require.NoError(t, algo.Build(ctx, dataset, 600))
		require.NoError(t, algo.SetSearchParam(SearchParam{NProbe: 2}))

		wantIDs := make([]uint32, batch*k)
		wantDists := make([]float32, batch*k)
		require.NoError(t, algo.SearchBatch(ctx, queries, batch, k, wantIDs, wantDists))

		require.NoError(t, algo.Save(ctx, path))

		restored, err := NewIVFFlat(MetricEuclidean, 8, BuildParam{NList: 4, SampleRatio: 1}, quiet)
		require.NoError(t, err)
		require.NoError(t, restored.Load(ctx, path))
		require.NoError(t, restored.SetSearchParam(SearchParam{NProbe: 2}))

		gotIDs := make([]uint32, batch*k)
		gotDists := make([]float32, batch*k)
		require.NoError(t, restored.SearchBatch(ctx, queries, batch, k, gotIDs, gotDists))

		assert.Equal(t, wantIDs, gotIDs)
		assert.Equal(t, wantDists, gotDists)
	})

	t.Run("Flat", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "flat.vbx")

		algo, err := NewFlat(MetricInnerProduct, 8, quiet)
		require.NoError(t, err)
		require.NoError(t, algo.Build(ctx, dataset, 600))

		wantIDs := make([]uint32, batch*k)
		wantDists := make([]float32, batch*k)
		require.NoError(t, algo.SearchBatch(ctx, queries, batch, k, wantIDs, wantDists))

		require.NoError(t, algo.Save(ctx, path))

		restored, err := NewFlat(MetricInnerProduct, 8, quiet)
		require.NoError(t, err)
		require.NoError(t, restored.Load(ctx, path))

		gotIDs := make([]uint32, batch*k)
		gotDists := make([]float32, batch*k)
		require.NoError(t, restored.SearchBatch(ctx, queries, batch, k, gotIDs, gotDists))

		assert.Equal(t, wantIDs, gotIDs)
		assert.Equal(t, wantDists, gotDists)
	})

	t.Run("WrongVariantRejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "flat.vbx")

		algo, err := NewFlat(MetricEuclidean, 8, quiet)
		require.NoError(t, err)
		require.NoError(t, algo.Build(ctx, dataset, 600))
		require.NoError(t, algo.Save(ctx, path))

		wrong, err := NewIVFFlat(MetricEuclidean, 8, BuildParam{NList: 4, SampleRatio: 1}, quiet)
		require.NoError(t, err)

		err = wrong.Load(ctx, path)
		require.ErrorIs(t, err, ErrIndexTypeMismatch)
	})
}

func TestIVFPQ(t *testing.T) {
	ctx := context.Background()

	rng := testutil.NewRNG(9)
	dataset := rng.ClusteredFlat(1000, 8, 4, 0.2)
	query := rng.GaussianFlat(1, 8)

	for _, precomputed := range []bool{false, true} {
		algo, err := NewIVFPQ(MetricEuclidean, 8, IVFPQParam{
			BuildParam:           BuildParam{NList: 4, SampleRatio: 1},
			SubQuantizers:        2,
			BitsPerCode:          4,
			UsePrecomputedTables: precomputed,
		}, quiet)
		require.NoError(t, err)

		require.NoError(t, algo.Build(ctx, dataset, 1000))
		assert.Equal(t, 1000, algo.Stats().NTotal)
		require.NoError(t, algo.SetSearchParam(SearchParam{NProbe: 4}))

		k := 10
		ids := make([]uint32, k)
		distances := make([]float32, k)
		require.NoError(t, algo.SearchBatch(ctx, query, 1, k, ids, distances))

		for i := 0; i < k; i++ {
			assert.Less(t, ids[i], uint32(1000))
		}
	}
}

func TestIVFSQ(t *testing.T) {
	ctx := context.Background()

	t.Run("UnsupportedKind", func(t *testing.T) {
		algo, err := NewIVFSQ(MetricEuclidean, 8, IVFSQParam{
			BuildParam: BuildParam{NList: 4, SampleRatio: 1},
			Kind:       "int4",
		}, quiet)
		require.ErrorIs(t, err, ErrUnsupportedQuantizerKind)
		assert.Nil(t, algo)
	})

	for _, kind := range []string{"fp16", "int8"} {
		t.Run(kind, func(t *testing.T) {
			rng := testutil.NewRNG(10)
			dataset := rng.UniformFlat(500, 8)
			query := rng.UniformFlat(1, 8)

			algo, err := NewIVFSQ(MetricEuclidean, 8, IVFSQParam{
				BuildParam: BuildParam{NList: 4, SampleRatio: 1},
				Kind:       kind,
			}, quiet)
			require.NoError(t, err)

			require.NoError(t, algo.Build(ctx, dataset, 500))
			require.NoError(t, algo.SetSearchParam(SearchParam{NProbe: 4}))

			k := 5
			ids := make([]uint32, k)
			distances := make([]float32, k)
			require.NoError(t, algo.SearchBatch(ctx, query, 1, k, ids, distances))

			// Full probing with mild quantization error still recovers most
			// of the exact neighborhood.
			exact := testutil.ExactTopK(query, dataset, 8, k, distance.SquaredL2)
			approx := make([]testutil.SearchResult, k)
			for i := 0; i < k; i++ {
				approx[i] = testutil.SearchResult{ID: ids[i], Distance: distances[i]}
			}
			assert.GreaterOrEqual(t, testutil.ComputeRecall(exact, approx), 0.6)
		})
	}
}

func TestUnderTrainingWarning(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	logger := NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	rng := testutil.NewRNG(11)
	dataset := rng.UniformFlat(200, 8)

	algo, err := NewIVFFlat(MetricEuclidean, 8, BuildParam{NList: 4, SampleRatio: 2}, func(o *Options) {
		o.Logger = logger
	})
	require.NoError(t, err)

	// trainset = 100, 25 points per centroid, below the recommended 39.
	require.NoError(t, algo.Build(ctx, dataset, 200))
	assert.Contains(t, buf.String(), "insufficient training points per centroid")
}

func TestBlobstoreRoundtrip(t *testing.T) {
	ctx := context.Background()

	rng := testutil.NewRNG(12)
	dataset := rng.UniformFlat(300, 8)
	queries := rng.UniformFlat(2, 8)

	store := blobstore.NewMemoryStore()

	algo, err := NewIVFFlat(MetricEuclidean, 8, BuildParam{NList: 2, SampleRatio: 1}, quiet)
	require.NoError(t, err)
	require.NoError(t, algo.Build(ctx, dataset, 300))
	require.NoError(t, algo.SaveTo(ctx, store, "indexes/ivfflat.vbx"))

	restored, err := NewIVFFlat(MetricEuclidean, 8, BuildParam{NList: 2, SampleRatio: 1}, quiet)
	require.NoError(t, err)
	require.NoError(t, restored.LoadFrom(ctx, store, "indexes/ivfflat.vbx"))

	k := 5
	wantIDs := make([]uint32, 2*k)
	wantDists := make([]float32, 2*k)
	require.NoError(t, algo.SearchBatch(ctx, queries, 2, k, wantIDs, wantDists))

	gotIDs := make([]uint32, 2*k)
	gotDists := make([]float32, 2*k)
	require.NoError(t, restored.SearchBatch(ctx, queries, 2, k, gotIDs, gotDists))

	assert.Equal(t, wantIDs, gotIDs)
	assert.Equal(t, wantDists, gotDists)
}

func TestPreference(t *testing.T) {
	algo, err := NewFlat(MetricEuclidean, 8, quiet)
	require.NoError(t, err)

	pref := algo.Preference()
	assert.Equal(t, MemoryHost, pref.Dataset)
	assert.Equal(t, MemoryHost, pref.Query)
}
