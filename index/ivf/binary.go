package ivf

import (
	"context"
	"fmt"
	"io"

	"github.com/hupe1980/vecbench/distance"
	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/persistence"
	"github.com/hupe1980/vecbench/quantization"
)

func init() {
	for _, t := range []uint8{persistence.IndexTypeIVFFlat, persistence.IndexTypeIVFPQ, persistence.IndexTypeIVFSQ} {
		index.RegisterBinaryLoader(t, func(header persistence.FileHeader, r *persistence.BinaryIndexReader) (index.Index, error) {
			return loadFromReader(header, r)
		})
	}
}

// typeTag returns the on-disk index type for the configured codec.
func (ivf *Index) typeTag() (uint8, error) {
	switch ivf.codec.(type) {
	case *RawCodec:
		return persistence.IndexTypeIVFFlat, nil
	case *PQCodec:
		return persistence.IndexTypeIVFPQ, nil
	case *SQCodec:
		return persistence.IndexTypeIVFSQ, nil
	default:
		return 0, fmt.Errorf("ivf: codec %T has no on-disk representation", ivf.codec)
	}
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

// WriteTo serializes the index in the vecbench binary format. The on-disk
// index type tag encodes the codec variant.
func (ivf *Index) WriteTo(w io.Writer) (int64, error) {
	tag, err := ivf.typeTag()
	if err != nil {
		return 0, err
	}

	cw := &countingWriter{w: w}

	header := persistence.FileHeader{
		IndexType:   tag,
		VectorCount: uint64(ivf.count),
		Dimension:   uint32(ivf.opts.Dimension),
		Metric:      uint32(ivf.opts.Metric),
	}

	err = persistence.SaveIndex(cw, header, ivf.opts.Compression, func(bw *persistence.BinaryIndexWriter) error {
		if err := bw.WriteUint32(uint32(ivf.opts.NList)); err != nil {
			return err
		}
		if err := bw.WriteUint32(uint32(ivf.nprobe)); err != nil {
			return err
		}
		if err := bw.WriteUint32(uint32(ivf.cp.MinPointsPerCentroid)); err != nil {
			return err
		}
		if err := bw.WriteUint32(uint32(ivf.cp.MaxPointsPerCentroid)); err != nil {
			return err
		}

		for list := 0; list < ivf.opts.NList; list++ {
			centroid, err := ivf.quantizer.Vector(uint32(list))
			if err != nil {
				return err
			}
			if err := bw.WriteFloat32Slice(centroid); err != nil {
				return err
			}
		}

		if err := ivf.writeCodec(bw); err != nil {
			return err
		}

		for list := 0; list < ivf.opts.NList; list++ {
			if err := bw.WriteUint32(uint32(len(ivf.ids[list]))); err != nil {
				return err
			}
			if err := bw.WriteUint32Slice(ivf.ids[list]); err != nil {
				return err
			}
			if err := bw.WriteBytes(ivf.lists[list]); err != nil {
				return err
			}
		}

		return nil
	})
	return cw.n, err
}

func (ivf *Index) writeCodec(bw *persistence.BinaryIndexWriter) error {
	switch c := ivf.codec.(type) {
	case *RawCodec:
		return nil

	case *PQCodec:
		pq := c.Quantizer()
		if err := bw.WriteUint32(uint32(pq.SubQuantizers())); err != nil {
			return err
		}
		if err := bw.WriteUint32(uint32(pq.BitsPerCode())); err != nil {
			return err
		}
		var precomputed uint32
		if c.UsePrecomputedTables() {
			precomputed = 1
		}
		if err := bw.WriteUint32(precomputed); err != nil {
			return err
		}
		return bw.WriteFloat32Slice(pq.Codebooks())

	case *SQCodec:
		if err := bw.WriteUint32(uint32(c.Kind())); err != nil {
			return err
		}
		if sq, ok := c.Quantizer().(*quantization.ScalarQuantizer); ok {
			if err := bw.WriteFloat32Slice(sq.Mins()); err != nil {
				return err
			}
			return bw.WriteFloat32Slice(sq.Maxs())
		}
		return nil

	default:
		return fmt.Errorf("ivf: codec %T has no on-disk representation", ivf.codec)
	}
}

// SaveToFile atomically writes the index to a file.
func (ivf *Index) SaveToFile(filename string) error {
	return persistence.SaveToFile(filename, func(w io.Writer) error {
		_, err := ivf.WriteTo(w)
		return err
	})
}

// LoadFromFile loads an inverted-file index from a file written by
// SaveToFile.
func LoadFromFile(filename string) (*Index, error) {
	var ivf *Index
	err := persistence.LoadFromFile(filename, func(r io.Reader) error {
		idx, _, err := index.LoadBinaryIndex(r)
		if err != nil {
			return err
		}
		var ok bool
		ivf, ok = idx.(*Index)
		if !ok {
			return fmt.Errorf("ivf: file does not hold an inverted-file index")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ivf, nil
}

func loadFromReader(header persistence.FileHeader, r *persistence.BinaryIndexReader) (*Index, error) {
	dim := int(header.Dimension)

	nlist, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	nprobe, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	minPPC, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	maxPPC, err := r.Uint32()
	if err != nil {
		return nil, err
	}

	centroids, err := r.Float32Slice(int(nlist) * dim)
	if err != nil {
		return nil, err
	}

	codec, err := readCodec(header, r, dim)
	if err != nil {
		return nil, err
	}

	ivf, err := New(codec, func(o *Options) {
		o.Dimension = dim
		o.Metric = distance.Metric(header.Metric)
		o.NList = int(nlist)
		o.Compression = persistence.CompressionType(header.Compression)
	})
	if err != nil {
		return nil, err
	}

	ivf.nprobe = int(nprobe)
	ivf.cp.MinPointsPerCentroid = int(minPPC)
	ivf.cp.MaxPointsPerCentroid = int(maxPPC)

	if err := ivf.quantizer.Add(context.Background(), centroids, int(nlist)); err != nil {
		return nil, err
	}

	codeSize := codec.CodeSize()

	ivf.listOf = make([]uint32, header.VectorCount)
	ivf.offOf = make([]uint32, header.VectorCount)

	var count int
	for list := 0; list < int(nlist); list++ {
		size, err := r.Uint32()
		if err != nil {
			return nil, err
		}

		ids, err := r.Uint32Slice(int(size))
		if err != nil {
			return nil, err
		}
		codes, err := r.Bytes(int(size) * codeSize)
		if err != nil {
			return nil, err
		}

		ivf.ids[list] = ids
		ivf.lists[list] = codes
		if size > 0 {
			ivf.nonEmpty.Add(uint32(list))
		}

		for off, id := range ids {
			if uint64(id) >= header.VectorCount {
				return nil, fmt.Errorf("ivf: id %d out of range", id)
			}
			ivf.listOf[id] = uint32(list)
			ivf.offOf[id] = uint32(off)
		}

		count += int(size)
	}

	if uint64(count) != header.VectorCount {
		return nil, persistence.ErrTruncated
	}

	ivf.count = count
	ivf.trained = true

	return ivf, nil
}

func readCodec(header persistence.FileHeader, r *persistence.BinaryIndexReader, dim int) (ListCodec, error) {
	metric := distance.Metric(header.Metric)

	switch header.IndexType {
	case persistence.IndexTypeIVFFlat:
		return NewRawCodec(dim, metric)

	case persistence.IndexTypeIVFPQ:
		m, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		nbits, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		precomputed, err := r.Uint32()
		if err != nil {
			return nil, err
		}

		pq, err := quantization.NewProductQuantizer(dim, int(m), int(nbits))
		if err != nil {
			return nil, err
		}

		ksub := 1 << nbits
		codebooks, err := r.Float32Slice(ksub * dim)
		if err != nil {
			return nil, err
		}
		if err := pq.SetCodebooks(codebooks); err != nil {
			return nil, err
		}

		return NewPQCodec(pq, dim, metric, precomputed != 0)

	case persistence.IndexTypeIVFSQ:
		kindTag, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		kind := quantization.Kind(kindTag)

		switch kind {
		case quantization.KindInt8:
			mins, err := r.Float32Slice(dim)
			if err != nil {
				return nil, err
			}
			maxs, err := r.Float32Slice(dim)
			if err != nil {
				return nil, err
			}

			sq, err := quantization.NewScalarQuantizer(dim)
			if err != nil {
				return nil, err
			}
			if err := sq.SetBounds(mins, maxs); err != nil {
				return nil, err
			}

			return NewSQCodec(sq, kind, dim, metric)

		case quantization.KindFP16:
			hq, err := quantization.NewHalfQuantizer(dim)
			if err != nil {
				return nil, err
			}
			return NewSQCodec(hq, kind, dim, metric)

		default:
			return nil, quantization.ErrUnknownKind
		}

	default:
		return nil, fmt.Errorf("ivf: unexpected index type %d", header.IndexType)
	}
}
