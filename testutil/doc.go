// Package testutil provides testing utilities for vecbench.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random row-major vector datasets,
// computing exact nearest neighbors, and verifying search recall.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	dataset := rng.UniformFlat(1000, 8)   // 1000 vectors, dim 8, uniform [0, 1)
//	queries := rng.GaussianFlat(16, 8)    // standard normal
//
// # Exact Search (Ground Truth)
//
//	results := testutil.ExactTopK(query, dataset, dim, k, distance.SquaredL2)
//
// # Recall Verification
//
//	recall := testutil.ComputeRecall(exactResults, approxResults)
package testutil
