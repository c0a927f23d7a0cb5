package vecbench

import (
	"context"
	"fmt"
	"io"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecbench/blobstore"
	"github.com/hupe1980/vecbench/distance"
	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/index/refine"
	"github.com/hupe1980/vecbench/persistence"
	"github.com/hupe1980/vecbench/resource"
)

// NoMatchID fills neighbor-id slots beyond a query's genuine matches. It is
// the maximum representable id, so it can never collide with a real vector.
const NoMatchID = index.NoMatchID

// Options configures an algorithm instance.
type Options struct {
	// Logger receives structured build diagnostics, including the
	// under-training warning. Defaults to a text logger on stderr.
	Logger *Logger

	// Controller bounds worker parallelism and serialization IO. Build,
	// Save and Load run in its single-worker scope; SearchBatch fans out
	// across its worker slots. A nil controller applies no limits.
	Controller *resource.Controller

	// Compression selects the on-disk payload compression for Save.
	Compression persistence.CompressionType

	// Seed drives clustering and quantizer training.
	Seed int64
}

// adapterBase carries the state and behavior shared by all variants: the
// index handle, the optional refinement wrapper, batched search, persistence
// with the on-disk type-tag guard, and the capability report.
type adapterBase struct {
	variant string
	typeTag uint8
	metric  Metric
	dm      distance.Metric
	dim     int
	opts    Options

	idx     index.Index
	refiner *refine.Refiner

	// install rewires the variant's concrete handle after a Load.
	install func(index.Index) error
}

func newAdapterBase(variant string, typeTag uint8, metric Metric, dim int, opts Options) (adapterBase, error) {
	dm, err := parseMetric(metric)
	if err != nil {
		return adapterBase{}, err
	}

	if dim <= 0 {
		return adapterBase{}, &index.ErrDimensionMismatch{Expected: 1, Actual: dim}
	}

	if opts.Logger == nil {
		opts.Logger = NewLogger(nil)
	}

	return adapterBase{
		variant: variant,
		typeTag: typeTag,
		metric:  metric,
		dm:      dm,
		dim:     dim,
		opts:    opts,
	}, nil
}

// searchTarget returns the refinement wrapper when one has been configured,
// otherwise the index itself.
func (a *adapterBase) searchTarget() index.Index {
	if a.refiner != nil {
		return a.refiner
	}
	return a.idx
}

// Preference reports that dataset and query buffers reside in host memory.
func (a *adapterBase) Preference() Preference {
	return Preference{Dataset: MemoryHost, Query: MemoryHost}
}

// Stats returns a snapshot of the index state.
func (a *adapterBase) Stats() Stats {
	s := Stats{
		Variant:   a.variant,
		Dimension: a.dim,
		Refined:   a.refiner != nil,
	}
	if a.idx != nil {
		s.NTotal = a.idx.NTotal()
		s.Trained = a.idx.IsTrained()
	}
	return s
}

// SearchBatch runs batch queries against the built index (or its refinement
// wrapper), filling the top-k neighbor ids and distances per query. Slots
// beyond a query's genuine matches hold NoMatchID and MaxFloat32. Queries fan
// out across the controller's worker slots.
func (a *adapterBase) SearchBatch(ctx context.Context, queries []float32, batch, k int, ids []uint32, distances []float32) error {
	if a.idx == nil || !a.idx.IsTrained() {
		return ErrNotBuilt
	}

	if k <= 0 {
		return index.ErrInvalidK
	}

	if len(queries) != batch*a.dim {
		return &index.ErrDimensionMismatch{Expected: batch * a.dim, Actual: len(queries)}
	}

	if len(ids) < batch*k || len(distances) < batch*k {
		return fmt.Errorf("vecbench: output slots hold %d ids and %d distances, need %d", len(ids), len(distances), batch*k)
	}

	target := a.searchTarget()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Controller.MaxWorkers())

	for q := 0; q < batch; q++ {
		g.Go(func() error {
			query := queries[q*a.dim : (q+1)*a.dim]

			results, err := target.Search(ctx, query, k, nil)
			if err != nil {
				return err
			}

			for i := 0; i < k; i++ {
				if i < len(results) {
					ids[q*k+i] = results[i].ID
					distances[q*k+i] = results[i].Distance
					continue
				}
				ids[q*k+i] = NoMatchID
				distances[q*k+i] = math.MaxFloat32
			}

			return nil
		})
	}

	return g.Wait()
}

// Save persists the built index to a file, atomically and under the
// single-worker scope. Writes are paced by the controller's IO limiter.
func (a *adapterBase) Save(ctx context.Context, path string) error {
	if a.idx == nil || !a.idx.IsTrained() {
		return ErrNotBuilt
	}

	release, err := a.opts.Controller.SingleWorker(ctx)
	if err != nil {
		return err
	}
	defer release()

	return persistence.SaveToFile(path, func(w io.Writer) error {
		_, err := a.idx.WriteTo(resource.NewThrottledWriter(ctx, a.opts.Controller, w))
		return err
	})
}

// Load restores an index from a file written by Save. Loading a file
// produced by a different variant fails with ErrIndexTypeMismatch.
func (a *adapterBase) Load(ctx context.Context, path string) error {
	release, err := a.opts.Controller.SingleWorker(ctx)
	if err != nil {
		return err
	}
	defer release()

	return persistence.LoadFromFile(path, a.loadReader)
}

// SaveTo streams the built index into a blob store under the single-worker
// scope.
func (a *adapterBase) SaveTo(ctx context.Context, store blobstore.Store, name string) error {
	if a.idx == nil || !a.idx.IsTrained() {
		return ErrNotBuilt
	}

	release, err := a.opts.Controller.SingleWorker(ctx)
	if err != nil {
		return err
	}
	defer release()

	blob, err := store.Create(ctx, name)
	if err != nil {
		return err
	}

	if _, err := a.idx.WriteTo(resource.NewThrottledWriter(ctx, a.opts.Controller, blob)); err != nil {
		_ = blob.Close()
		return err
	}

	return blob.Close()
}

// LoadFrom restores an index from a blob store.
func (a *adapterBase) LoadFrom(ctx context.Context, store blobstore.Store, name string) error {
	release, err := a.opts.Controller.SingleWorker(ctx)
	if err != nil {
		return err
	}
	defer release()

	blob, err := store.Open(ctx, name)
	if err != nil {
		return err
	}
	defer func() { _ = blob.Close() }()

	return a.loadReader(blob)
}

// loadReader restores an index from r, guarding against a wrong-variant file
// through the on-disk index type tag before the concrete handle is rewired.
func (a *adapterBase) loadReader(r io.Reader) error {
	idx, tag, err := index.LoadBinaryIndex(r)
	if err != nil {
		return err
	}

	if tag != a.typeTag {
		return fmt.Errorf("%w: file holds index type %d, the %s variant expects %d", ErrIndexTypeMismatch, tag, a.variant, a.typeTag)
	}

	if err := a.install(idx); err != nil {
		return err
	}

	a.idx = idx
	a.refiner = nil

	return nil
}
