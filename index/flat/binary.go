package flat

import (
	"io"

	"github.com/hupe1980/vecbench/distance"
	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/persistence"
)

func init() {
	index.RegisterBinaryLoader(persistence.IndexTypeFlat, func(header persistence.FileHeader, r *persistence.BinaryIndexReader) (index.Index, error) {
		return loadFromReader(header, r)
	})
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// WriteTo serializes the flat index in the vecbench binary format.
func (f *Flat) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}

	header := persistence.FileHeader{
		IndexType:   persistence.IndexTypeFlat,
		VectorCount: uint64(f.count),
		Dimension:   uint32(f.opts.Dimension),
		Metric:      uint32(f.opts.Metric),
	}

	err := persistence.SaveIndex(cw, header, f.opts.Compression, func(bw *persistence.BinaryIndexWriter) error {
		return bw.WriteFloat32Slice(f.vectors)
	})
	return cw.n, err
}

// SaveToFile atomically writes the index to a file.
func (f *Flat) SaveToFile(filename string) error {
	return persistence.SaveToFile(filename, func(w io.Writer) error {
		_, err := f.WriteTo(w)
		return err
	})
}

// LoadFromFile loads a flat index from a file written by SaveToFile.
func LoadFromFile(filename string) (*Flat, error) {
	var f *Flat
	err := persistence.LoadFromFile(filename, func(r io.Reader) error {
		idx, _, err := index.LoadBinaryIndex(r)
		if err != nil {
			return err
		}
		var ok bool
		f, ok = idx.(*Flat)
		if !ok {
			return persistence.ErrInvalidMagic
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func loadFromReader(header persistence.FileHeader, r *persistence.BinaryIndexReader) (*Flat, error) {
	f, err := New(func(o *Options) {
		o.Dimension = int(header.Dimension)
		o.Metric = distance.Metric(header.Metric)
		o.Compression = persistence.CompressionType(header.Compression)
	})
	if err != nil {
		return nil, err
	}

	vectors, err := r.Float32Slice(int(header.VectorCount) * int(header.Dimension))
	if err != nil {
		return nil, err
	}
	f.vectors = vectors
	f.count = int(header.VectorCount)
	return f, nil
}
