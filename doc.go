// Package vecbench exposes approximate-nearest-neighbor index variants behind
// one uniform benchmarking contract.
//
// A harness constructs a variant (Flat, IVF-Flat, IVF-PQ or IVF-SQ) with a
// metric, a dimensionality and build parameters, builds it on a dataset, tunes
// search-time parameters, runs batched queries and persists or restores the
// built index — without knowing which concrete index algorithm is in use.
//
//	algo, err := vecbench.NewIVFFlat(vecbench.MetricEuclidean, 128, vecbench.BuildParam{
//		NList:       1024,
//		SampleRatio: 2,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := algo.Build(ctx, dataset, rows); err != nil {
//		log.Fatal(err)
//	}
//
//	if err := algo.SetSearchParam(vecbench.SearchParam{NProbe: 32}); err != nil {
//		log.Fatal(err)
//	}
//
//	ids := make([]uint32, batch*k)
//	distances := make([]float32, batch*k)
//	if err := algo.SearchBatch(ctx, queries, batch, k, ids, distances); err != nil {
//		log.Fatal(err)
//	}
package vecbench
