package persistence

import (
	"bytes"
	"encoding/binary"
	"io"
	"unsafe"

	"github.com/hupe1980/vecbench/internal/hash"
)

// BinaryIndexWriter serializes index payload sections in little-endian binary
// form. Slice writes are zero-copy on the source side.
type BinaryIndexWriter struct {
	w io.Writer
}

// NewBinaryIndexWriter creates a new binary writer.
func NewBinaryIndexWriter(w io.Writer) *BinaryIndexWriter {
	return &BinaryIndexWriter{w: w}
}

// WriteUint32 writes a single uint32.
func (bw *BinaryIndexWriter) WriteUint32(v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := bw.w.Write(buf[:])
	return err
}

// WriteUint64 writes a single uint64.
func (bw *BinaryIndexWriter) WriteUint64(v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := bw.w.Write(buf[:])
	return err
}

// WriteFloat32Slice writes a float32 slice as raw bytes (zero-copy).
// Safety: validates alignment before the unsafe conversion.
func (bw *BinaryIndexWriter) WriteFloat32Slice(vec []float32) error {
	if len(vec) == 0 {
		return nil
	}
	if err := validateAlignment(uintptr(unsafe.Pointer(&vec[0])), 4); err != nil {
		return err
	}
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&vec[0])), len(vec)*4)
	_, err := bw.w.Write(byteSlice)
	return err
}

// WriteUint32Slice writes a uint32 slice as raw bytes (zero-copy).
func (bw *BinaryIndexWriter) WriteUint32Slice(slice []uint32) error {
	if len(slice) == 0 {
		return nil
	}
	if err := validateAlignment(uintptr(unsafe.Pointer(&slice[0])), 4); err != nil {
		return err
	}
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&slice[0])), len(slice)*4)
	_, err := bw.w.Write(byteSlice)
	return err
}

// WriteBytes writes a raw byte slice.
func (bw *BinaryIndexWriter) WriteBytes(b []byte) error {
	_, err := bw.w.Write(b)
	return err
}

// BinaryIndexReader reads payload sections produced by BinaryIndexWriter.
// Destination slices are freshly allocated, so reads never alias the payload.
type BinaryIndexReader struct {
	data []byte
	off  int
}

// NewBinaryIndexReader creates a reader over a decompressed payload.
func NewBinaryIndexReader(data []byte) *BinaryIndexReader {
	return &BinaryIndexReader{data: data}
}

func (br *BinaryIndexReader) take(n int) ([]byte, error) {
	if br.off+n > len(br.data) {
		return nil, ErrTruncated
	}
	b := br.data[br.off : br.off+n]
	br.off += n
	return b, nil
}

// Uint32 reads a single uint32.
func (br *BinaryIndexReader) Uint32() (uint32, error) {
	b, err := br.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Uint64 reads a single uint64.
func (br *BinaryIndexReader) Uint64() (uint64, error) {
	b, err := br.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Float32Slice reads n float32 values into a fresh slice.
func (br *BinaryIndexReader) Float32Slice(n int) ([]float32, error) {
	b, err := br.take(n * 4)
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	if n > 0 {
		dst := unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), n*4)
		copy(dst, b)
	}
	return out, nil
}

// Uint32Slice reads n uint32 values into a fresh slice.
func (br *BinaryIndexReader) Uint32Slice(n int) ([]uint32, error) {
	b, err := br.take(n * 4)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	if n > 0 {
		dst := unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), n*4)
		copy(dst, b)
	}
	return out, nil
}

// Bytes reads n raw bytes into a fresh slice.
func (br *BinaryIndexReader) Bytes(n int) ([]byte, error) {
	b, err := br.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// SaveIndex writes a complete index file: header, (optionally compressed)
// payload, and a CRC32C trailer computed over the uncompressed payload.
func SaveIndex(w io.Writer, header FileHeader, ct CompressionType, writePayload func(*BinaryIndexWriter) error) error {
	header.Magic = MagicNumber
	header.Version = Version
	header.Compression = uint8(ct)

	var buf bytes.Buffer
	if err := writePayload(NewBinaryIndexWriter(&buf)); err != nil {
		return err
	}
	payload := buf.Bytes()
	crc := hash.CRC32C(payload)

	blob, err := Compress(payload, ct)
	if err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return err
	}
	if _, err := w.Write(blob); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, crc)
}

// LoadIndex reads a complete index file and returns its header and a reader
// positioned at the start of the verified, decompressed payload.
func LoadIndex(r io.Reader) (FileHeader, *BinaryIndexReader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return header, nil, err
	}
	if header.Magic != MagicNumber {
		return header, nil, ErrInvalidMagic
	}
	if header.Version != Version {
		return header, nil, ErrInvalidVersion
	}

	rest, err := io.ReadAll(r)
	if err != nil {
		return header, nil, err
	}
	if len(rest) < 4 {
		return header, nil, ErrTruncated
	}
	blob, trailer := rest[:len(rest)-4], rest[len(rest)-4:]

	payload, err := Decompress(blob, CompressionType(header.Compression))
	if err != nil {
		return header, nil, err
	}
	if hash.CRC32C(payload) != binary.LittleEndian.Uint32(trailer) {
		return header, nil, ErrChecksum
	}
	return header, NewBinaryIndexReader(payload), nil
}
