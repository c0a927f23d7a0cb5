// Package index provides the contract shared by all vector index
// implementations: train, add, search, and binary serialization.
package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
)

// NoMatchID is the sentinel neighbor id reported for result slots beyond the
// number of genuine matches.
const NoMatchID uint32 = math.MaxUint32

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrNotTrained is returned when Add or Search runs before Train.
	ErrNotTrained = errors.New("index not trained")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrNodeNotFound indicates a reconstruction request for an unknown id.
type ErrNodeNotFound struct {
	ID uint32
}

func (e *ErrNodeNotFound) Error() string {
	return fmt.Sprintf("node %d not found", e.ID)
}

// SearchResult represents a single neighbor.
type SearchResult struct {
	// ID is the identifier of the search result.
	ID uint32

	// Distance is the ordering key between the query and the result vector
	// (squared L2, or negated dot product for inner-product indexes).
	Distance float32
}

// SearchOptions carries optional per-search settings.
type SearchOptions struct {
	// Filter restricts results to ids contained in the bitmap. Nil allows all.
	Filter *roaring.Bitmap
}

func (o *SearchOptions) allows(id uint32) bool {
	return o == nil || o.Filter == nil || o.Filter.Contains(id)
}

// Allows reports whether opts permit the given id.
// A nil receiver or nil filter permits everything.
func (o *SearchOptions) Allows(id uint32) bool { return o.allows(id) }

// Index is the contract every vector index implements.
//
// The lifecycle is: construct (untrained) -> Train -> Add -> Search.
// Structure is immutable after the add phase; Search is safe for concurrent
// callers once no mutating call is in flight.
type Index interface {
	// Train calibrates the index on row-major vectors (rows x Dimension).
	Train(ctx context.Context, vectors []float32, rows int) error

	// Add appends row-major vectors to the index. The index must be trained.
	Add(ctx context.Context, vectors []float32, rows int) error

	// Search returns the k nearest neighbors of query, best first.
	// Fewer than k results are returned when the index holds fewer matches.
	Search(ctx context.Context, query []float32, k int, opts *SearchOptions) ([]SearchResult, error)

	// IsTrained reports whether Train has completed.
	IsTrained() bool

	// NTotal returns the number of indexed vectors.
	NTotal() int

	// Dimension returns the fixed vector dimensionality.
	Dimension() int

	// WriteTo serializes the index in the vecbench binary format.
	WriteTo(w io.Writer) (int64, error)
}

// Reconstructor is an optional interface for indexes that can rebuild a
// stored vector from their internal representation. Reconstruction is exact
// for raw-vector indexes and lossy for quantized ones.
type Reconstructor interface {
	Reconstruct(id uint32, out []float32) error
}
