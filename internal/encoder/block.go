// Package encoder implements segment compression for storage channels.
package encoder

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/jittakal/tiwriter/internal/validator"
)

// Compression names a segment compression codec.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
	CompressionGzip Compression = "gzip"
)

// FrameHeaderSize is the size of the header that precedes every framed segment.
// Format: [RawSize uint32][StoredSize uint32][Data...]
// A StoredSize of 0 means the data is stored uncompressed.
const FrameHeaderSize = 8

// MaxFrameSize bounds the raw size a frame header may claim.
const MaxFrameSize = validator.MaxBufferBytes

// ErrCorruptFrame is returned for a frame header with impossible sizes.
var ErrCorruptFrame = errors.New("corrupt segment frame")

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return enc, nil
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return dec, nil
}

// ParseCompression validates a codec name. An empty name means none.
func ParseCompression(name string) (Compression, error) {
	switch c := Compression(strings.ToLower(name)); c {
	case "", "uncompressed":
		return CompressionNone, nil
	case CompressionNone, CompressionZstd, CompressionLZ4, CompressionGzip:
		return c, nil
	default:
		return "", fmt.Errorf("unsupported segment compression: %s", name)
	}
}

// Extension returns the object suffix for the codec.
func (c Compression) Extension() string {
	switch c {
	case CompressionZstd:
		return ".zst"
	case CompressionLZ4:
		return ".lz4"
	case CompressionGzip:
		return ".gz"
	default:
		return ""
	}
}

// CompressBlock compresses data with the codec. It returns nil when the
// codec does not shrink the data.
func CompressBlock(c Compression, data []byte) ([]byte, error) {
	var (
		out []byte
		err error
	)

	switch c {
	case CompressionNone:
		return nil, nil
	case CompressionZstd:
		var enc *zstd.Encoder
		if enc, err = getZstdEncoder(); err == nil {
			out = enc.EncodeAll(data, nil)
			zstdEncoderPool.Put(enc)
		}
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		var n int
		n, err = lz4.CompressBlock(data, buf, nil)
		out = buf[:n]
	case CompressionGzip:
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err = zw.Write(data); err == nil {
			err = zw.Close()
		}
		out = buf.Bytes()
	default:
		return nil, fmt.Errorf("unsupported segment compression: %s", c)
	}

	if err != nil {
		return nil, fmt.Errorf("%s compress: %w", c, err)
	}
	if len(out) == 0 || len(out) >= len(data) {
		return nil, nil
	}
	return out, nil
}

// DecompressBlock reverses CompressBlock. rawSize is the expected output length.
func DecompressBlock(c Compression, data []byte, rawSize int) ([]byte, error) {
	switch c {
	case CompressionZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(data, make([]byte, 0, rawSize))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return checkSize(out, rawSize)
	case CompressionLZ4:
		out := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return checkSize(out[:n], rawSize)
	case CompressionGzip:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip decompress: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(io.LimitReader(zr, int64(rawSize)+1))
		if err != nil {
			return nil, fmt.Errorf("gzip decompress: %w", err)
		}
		return checkSize(out, rawSize)
	default:
		return nil, fmt.Errorf("unsupported segment compression: %s", c)
	}
}

func checkSize(out []byte, rawSize int) ([]byte, error) {
	if len(out) != rawSize {
		return nil, errors.New("decompressed size mismatch")
	}
	return out, nil
}

// EncodeFrame compresses data and prepends the frame header.
func EncodeFrame(c Compression, data []byte) ([]byte, error) {
	compressed, err := CompressBlock(c, data)
	if err != nil {
		return nil, err
	}

	payload := data
	storedSize := uint32(0)
	if compressed != nil {
		payload = compressed
		storedSize = uint32(len(compressed))
	}

	frame := make([]byte, FrameHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(frame[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(frame[4:], storedSize)
	copy(frame[FrameHeaderSize:], payload)
	return frame, nil
}

// ReadFrame reads and decodes one frame from r. It returns io.EOF at a clean
// end of stream, io.ErrUnexpectedEOF for a truncated frame and
// ErrCorruptFrame for a header no writer could have produced.
func ReadFrame(r io.Reader, c Compression) ([]byte, error) {
	var header [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	rawSize := int64(binary.LittleEndian.Uint32(header[0:]))
	storedSize := int64(binary.LittleEndian.Uint32(header[4:]))

	if rawSize > MaxFrameSize {
		return nil, fmt.Errorf("%w: raw size %d exceeds %d", ErrCorruptFrame, rawSize, MaxFrameSize)
	}
	// Compressed payloads are only stored when they shrink the data.
	if storedSize != 0 && storedSize >= rawSize {
		return nil, fmt.Errorf("%w: stored size %d not below raw size %d", ErrCorruptFrame, storedSize, rawSize)
	}

	if storedSize == 0 {
		return readExactly(r, rawSize)
	}

	stored, err := readExactly(r, storedSize)
	if err != nil {
		return nil, err
	}
	return DecompressBlock(c, stored, int(rawSize))
}

// readExactly reads n bytes without trusting n for the allocation, so a
// corrupt header costs no more memory than the input holds.
func readExactly(r io.Reader, n int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, n))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != n {
		return nil, io.ErrUnexpectedEOF
	}
	return data, nil
}
