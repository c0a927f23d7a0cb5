package index

import (
	"fmt"
	"io"
	"sync"

	"github.com/hupe1980/vecbench/persistence"
)

// BinaryLoader constructs an index instance from a verified file header and
// its decompressed payload.
type BinaryLoader func(header persistence.FileHeader, r *persistence.BinaryIndexReader) (Index, error)

var (
	binaryLoaderMu sync.RWMutex
	binaryLoaders  = map[uint8]BinaryLoader{}
)

// RegisterBinaryLoader registers a loader for a specific on-disk index type.
//
// Index implementations should typically call this from an init() function.
func RegisterBinaryLoader(indexType uint8, loader BinaryLoader) {
	binaryLoaderMu.Lock()
	defer binaryLoaderMu.Unlock()
	binaryLoaders[indexType] = loader
}

// LoadBinaryIndex reads an index from r. The on-disk index type tag selects
// the loader, so a stream can only ever be restored as the variant that
// wrote it. The tag is returned alongside the index.
func LoadBinaryIndex(r io.Reader) (Index, uint8, error) {
	header, br, err := persistence.LoadIndex(r)
	if err != nil {
		return nil, 0, err
	}

	binaryLoaderMu.RLock()
	loader, ok := binaryLoaders[header.IndexType]
	binaryLoaderMu.RUnlock()
	if !ok {
		return nil, header.IndexType, fmt.Errorf("unknown index type: %d", header.IndexType)
	}

	idx, err := loader(header, br)
	if err != nil {
		return nil, header.IndexType, err
	}
	return idx, header.IndexType, nil
}
