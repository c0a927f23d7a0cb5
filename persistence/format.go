package persistence

import "errors"

const (
	// MagicNumber identifies vecbench index files (ASCII: "VBX0")
	MagicNumber = 0x56425830
	// Version is the current file format version (v1.0.0)
	Version = 0x00010000

	// Index types
	IndexTypeFlat    = 1
	IndexTypeIVFFlat = 2
	IndexTypeIVFPQ   = 3
	IndexTypeIVFSQ   = 4
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrChecksum       = errors.New("checksum mismatch")
	ErrTruncated      = errors.New("truncated index file")
)

// FileHeader is the 64-byte header at the start of every index file.
type FileHeader struct {
	Magic       uint32 // 0x56425830 ("VBX0")
	Version     uint32 // File format version
	IndexType   uint8  // 1=Flat, 2=IVFFlat, 3=IVFPQ, 4=IVFSQ
	Compression uint8  // CompressionType of the payload
	Padding     [2]byte
	VectorCount uint64 // Total number of vectors
	Dimension   uint32 // Vector dimensionality
	Metric      uint32 // distance.Metric the index was built with
	Reserved    [36]byte
}
