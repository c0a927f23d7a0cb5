package vecbench

import (
	"context"

	"github.com/hupe1980/vecbench/blobstore"
)

// MemoryType identifies where a buffer is expected to reside.
type MemoryType int

const (
	// MemoryHost means buffers live in ordinary process memory.
	MemoryHost MemoryType = iota

	// MemoryDevice means buffers live in accelerator memory. None of the
	// variants in this module use it; it exists so a harness can stage data
	// without probing concrete types.
	MemoryDevice
)

// Preference reports where an algorithm expects its dataset and query
// buffers to reside. The harness consults it when staging data; it is not a
// negotiated protocol.
type Preference struct {
	Dataset MemoryType
	Query   MemoryType
}

// Stats is a snapshot of a built index.
type Stats struct {
	Variant   string
	Dimension int
	NTotal    int
	Trained   bool
	Refined   bool
}

// Algorithm is the uniform benchmarking contract implemented by all index
// variants. Build, SetSearchParam, Save and Load mutate the instance and must
// be called from one goroutine at a time; SearchBatch is read-only and may
// run concurrently once no mutating call is in flight.
type Algorithm interface {
	// Build trains the index on the dataset and adds all rows.
	Build(ctx context.Context, dataset []float32, rows int) error

	// SetSearchParam applies search-time tuning.
	SetSearchParam(param SearchParam) error

	// SearchBatch runs k-nearest-neighbor queries for batch query vectors.
	// ids and distances must each hold batch*k slots; slots beyond a query's
	// genuine matches are filled with NoMatchID.
	SearchBatch(ctx context.Context, queries []float32, batch, k int, ids []uint32, distances []float32) error

	// Save persists the built index to a file.
	Save(ctx context.Context, path string) error

	// Load restores an index previously saved by the same variant.
	Load(ctx context.Context, path string) error

	// SaveTo persists the built index to a blob store.
	SaveTo(ctx context.Context, store blobstore.Store, name string) error

	// LoadFrom restores an index from a blob store.
	LoadFrom(ctx context.Context, store blobstore.Store, name string) error

	// Preference reports the expected buffer placement.
	Preference() Preference

	// Stats returns a snapshot of the index state.
	Stats() Stats
}
