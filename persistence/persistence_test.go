package persistence

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressRoundtrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	// Repetitive payload compresses well; random payload exercises the
	// incompressible path for LZ4 block mode.
	compressible := bytes.Repeat([]byte("vecbench"), 4096)
	incompressible := make([]byte, 32*1024)
	_, err := rng.Read(incompressible)
	require.NoError(t, err)

	for _, tc := range []struct {
		name string
		ct   CompressionType
	}{
		{"None", CompressionNone},
		{"LZ4", CompressionLZ4},
		{"ZSTD", CompressionZSTD},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for _, payload := range [][]byte{compressible, incompressible} {
				blob, err := Compress(payload, tc.ct)
				require.NoError(t, err)

				got, err := Decompress(blob, tc.ct)
				require.NoError(t, err)
				assert.Equal(t, payload, got)
			}
		})
	}

	t.Run("CompressibleShrinks", func(t *testing.T) {
		for _, ct := range []CompressionType{CompressionLZ4, CompressionZSTD} {
			blob, err := Compress(compressible, ct)
			require.NoError(t, err)
			assert.Less(t, len(blob), len(compressible))
		}
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := Compress([]byte("x"), CompressionType(99))
		require.ErrorIs(t, err, ErrUnknownCompression)
	})
}

func TestBinaryReaderWriter(t *testing.T) {
	var buf bytes.Buffer
	bw := NewBinaryIndexWriter(&buf)

	floats := []float32{1.5, -2.25, 3.75, 0}
	ids := []uint32{10, 20, 30}
	raw := []byte{0xde, 0xad, 0xbe, 0xef}

	require.NoError(t, bw.WriteUint32(42))
	require.NoError(t, bw.WriteUint64(1<<40))
	require.NoError(t, bw.WriteFloat32Slice(floats))
	require.NoError(t, bw.WriteUint32Slice(ids))
	require.NoError(t, bw.WriteBytes(raw))

	br := NewBinaryIndexReader(buf.Bytes())

	v32, err := br.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(42), v32)

	v64, err := br.Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), v64)

	gotFloats, err := br.Float32Slice(len(floats))
	require.NoError(t, err)
	assert.Equal(t, floats, gotFloats)

	gotIDs, err := br.Uint32Slice(len(ids))
	require.NoError(t, err)
	assert.Equal(t, ids, gotIDs)

	gotRaw, err := br.Bytes(len(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, gotRaw)

	t.Run("ReadPastEnd", func(t *testing.T) {
		_, err := br.Uint32()
		require.ErrorIs(t, err, ErrTruncated)
	})
}

func saveTestIndex(t *testing.T, ct CompressionType) []byte {
	t.Helper()

	header := FileHeader{
		IndexType:   IndexTypeIVFFlat,
		VectorCount: 1000,
		Dimension:   8,
	}

	var buf bytes.Buffer
	err := SaveIndex(&buf, header, ct, func(bw *BinaryIndexWriter) error {
		if err := bw.WriteUint32(4); err != nil {
			return err
		}
		return bw.WriteFloat32Slice([]float32{1, 2, 3, 4})
	})
	require.NoError(t, err)

	return buf.Bytes()
}

func TestSaveLoadIndex(t *testing.T) {
	for _, tc := range []struct {
		name string
		ct   CompressionType
	}{
		{"None", CompressionNone},
		{"LZ4", CompressionLZ4},
		{"ZSTD", CompressionZSTD},
	} {
		t.Run(tc.name, func(t *testing.T) {
			data := saveTestIndex(t, tc.ct)

			header, br, err := LoadIndex(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, uint32(MagicNumber), header.Magic)
			assert.Equal(t, uint8(IndexTypeIVFFlat), header.IndexType)
			assert.Equal(t, uint8(tc.ct), header.Compression)
			assert.Equal(t, uint64(1000), header.VectorCount)
			assert.Equal(t, uint32(8), header.Dimension)

			n, err := br.Uint32()
			require.NoError(t, err)
			assert.Equal(t, uint32(4), n)

			vec, err := br.Float32Slice(int(n))
			require.NoError(t, err)
			assert.Equal(t, []float32{1, 2, 3, 4}, vec)
		})
	}
}

func TestLoadIndexErrors(t *testing.T) {
	t.Run("BadMagic", func(t *testing.T) {
		data := saveTestIndex(t, CompressionNone)
		binary.LittleEndian.PutUint32(data[:4], 0xdeadbeef)

		_, _, err := LoadIndex(bytes.NewReader(data))
		require.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("BadVersion", func(t *testing.T) {
		data := saveTestIndex(t, CompressionNone)
		binary.LittleEndian.PutUint32(data[4:8], 0x00990000)

		_, _, err := LoadIndex(bytes.NewReader(data))
		require.ErrorIs(t, err, ErrInvalidVersion)
	})

	t.Run("CorruptedPayload", func(t *testing.T) {
		data := saveTestIndex(t, CompressionNone)
		data[70] ^= 0xff

		_, _, err := LoadIndex(bytes.NewReader(data))
		require.ErrorIs(t, err, ErrChecksum)
	})

	t.Run("Truncated", func(t *testing.T) {
		data := saveTestIndex(t, CompressionNone)

		_, _, err := LoadIndex(bytes.NewReader(data[:66]))
		require.ErrorIs(t, err, ErrTruncated)
	})
}

func TestSaveToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.vbx")

	err := SaveToFile(path, func(w io.Writer) error {
		_, err := w.Write([]byte("payload"))
		return err
	})
	require.NoError(t, err)

	var got []byte
	err = LoadFromFile(path, func(r io.Reader) error {
		var rerr error
		got, rerr = io.ReadAll(r)
		return rerr
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	t.Run("NoTempLeftovers", func(t *testing.T) {
		matches, err := filepath.Glob(filepath.Join(dir, "*.tmp-*"))
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("FailedWriteKeepsOld", func(t *testing.T) {
		err := SaveToFile(path, func(w io.Writer) error {
			return errors.New("boom")
		})
		require.Error(t, err)

		var kept []byte
		err = LoadFromFile(path, func(r io.Reader) error {
			var rerr error
			kept, rerr = io.ReadAll(r)
			return rerr
		})
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), kept)
	})
}
