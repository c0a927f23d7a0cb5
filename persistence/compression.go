package persistence

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionType defines the compression algorithm used for the payload.
type CompressionType uint8

const (
	// CompressionNone indicates no compression.
	CompressionNone CompressionType = 0
	// CompressionLZ4 indicates LZ4 block compression (fast).
	CompressionLZ4 CompressionType = 1
	// CompressionZSTD indicates ZSTD compression (better ratio).
	CompressionZSTD CompressionType = 2
)

var ErrUnknownCompression = errors.New("unknown compression type")

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Compress compresses a payload with the given algorithm.
// Format: [UncompressedSize uint32][CompressedData...]
func Compress(data []byte, ct CompressionType) ([]byte, error) {
	if ct == CompressionNone {
		return data, nil
	}

	out := make([]byte, 4, 4+len(data)/2)
	binary.LittleEndian.PutUint32(out, uint32(len(data)))

	switch ct {
	case CompressionLZ4:
		bound := lz4.CompressBlockBound(len(data))
		buf := make([]byte, bound)
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			// Incompressible: store raw with a zero marker so Decompress
			// can tell the two apart.
			out = binary.LittleEndian.AppendUint32(out, 0)
			return append(out, data...), nil
		}
		out = binary.LittleEndian.AppendUint32(out, uint32(n))
		return append(out, buf[:n]...), nil
	case CompressionZSTD:
		enc := getZstdEncoder()
		defer zstdEncoderPool.Put(enc)
		compressed := enc.EncodeAll(data, nil)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(compressed)))
		return append(out, compressed...), nil
	default:
		return nil, ErrUnknownCompression
	}
}

// Decompress reverses Compress.
func Decompress(data []byte, ct CompressionType) ([]byte, error) {
	if ct == CompressionNone {
		return data, nil
	}
	if len(data) < 8 {
		return nil, ErrTruncated
	}

	rawLen := binary.LittleEndian.Uint32(data)
	compLen := binary.LittleEndian.Uint32(data[4:])
	body := data[8:]

	if compLen == 0 {
		// Stored raw (incompressible).
		if uint32(len(body)) < rawLen {
			return nil, ErrTruncated
		}
		return body[:rawLen], nil
	}
	if uint32(len(body)) < compLen {
		return nil, ErrTruncated
	}
	body = body[:compLen]

	switch ct {
	case CompressionLZ4:
		out := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, err
		}
		if uint32(n) != rawLen {
			return nil, errors.New("decompressed size mismatch")
		}
		return out, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(body, make([]byte, 0, rawLen))
		if err != nil {
			return nil, err
		}
		if uint32(len(out)) != rawLen {
			return nil, errors.New("decompressed size mismatch")
		}
		return out, nil
	default:
		return nil, ErrUnknownCompression
	}
}
