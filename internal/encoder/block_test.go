package encoder

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"
	"runtime"
	"testing"
)

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in      string
		want    Compression
		wantErr bool
	}{
		{"", CompressionNone, false},
		{"none", CompressionNone, false},
		{"ZSTD", CompressionZstd, false},
		{"lz4", CompressionLZ4, false},
		{"gzip", CompressionGzip, false},
		{"brotli", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCompression(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCompression(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseCompression(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFrameRoundTrip(t *testing.T) {
	compressible := bytes.Repeat([]byte("task-switch-record"), 256)
	random := make([]byte, 4096)
	if _, err := rand.Read(random); err != nil {
		t.Fatal(err)
	}

	for _, c := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4, CompressionGzip} {
		for name, data := range map[string][]byte{"compressible": compressible, "random": random} {
			t.Run(string(c)+"/"+name, func(t *testing.T) {
				var stream bytes.Buffer
				for i := 0; i < 3; i++ {
					frame, err := EncodeFrame(c, data)
					if err != nil {
						t.Fatalf("EncodeFrame() error = %v", err)
					}
					stream.Write(frame)
				}

				for i := 0; i < 3; i++ {
					got, err := ReadFrame(&stream, c)
					if err != nil {
						t.Fatalf("ReadFrame(%d) error = %v", i, err)
					}
					if !bytes.Equal(got, data) {
						t.Fatalf("frame %d mismatch", i)
					}
				}

				if _, err := ReadFrame(&stream, c); !errors.Is(err, io.EOF) {
					t.Errorf("expected io.EOF after last frame, got %v", err)
				}
			})
		}
	}
}

func TestEncodeFrame_CompressesRepetitiveData(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 64*1024)
	frame, err := EncodeFrame(CompressionZstd, data)
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}
	if len(frame) >= len(data) {
		t.Errorf("frame size %d not smaller than input %d", len(frame), len(data))
	}
}

func TestReadFrame_Truncated(t *testing.T) {
	frame, err := EncodeFrame(CompressionNone, []byte("0123456789abcdef"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = ReadFrame(bytes.NewReader(frame[:len(frame)-3]), CompressionNone)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func frameHeader(rawSize, storedSize uint32, body int) []byte {
	frame := make([]byte, FrameHeaderSize+body)
	binary.LittleEndian.PutUint32(frame[0:], rawSize)
	binary.LittleEndian.PutUint32(frame[4:], storedSize)
	return frame
}

func TestReadFrame_CorruptHeader(t *testing.T) {
	tests := []struct {
		name    string
		frame   []byte
		c       Compression
		wantErr error
	}{
		{
			name:    "raw size over limit",
			frame:   frameHeader(MaxFrameSize+1, 0, 3),
			c:       CompressionNone,
			wantErr: ErrCorruptFrame,
		},
		{
			name:    "stored size not below raw size",
			frame:   frameHeader(16, 16, 16),
			c:       CompressionZstd,
			wantErr: ErrCorruptFrame,
		},
		{
			name:    "compressed frame with empty raw size",
			frame:   frameHeader(0, 4, 4),
			c:       CompressionLZ4,
			wantErr: ErrCorruptFrame,
		},
		{
			name:    "large raw size with short body",
			frame:   frameHeader(MaxFrameSize, 0, 3),
			c:       CompressionNone,
			wantErr: io.ErrUnexpectedEOF,
		},
		{
			name:    "large stored size with short body",
			frame:   frameHeader(MaxFrameSize, MaxFrameSize-1, 3),
			c:       CompressionZstd,
			wantErr: io.ErrUnexpectedEOF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tt.frame), tt.c)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ReadFrame() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// A header claiming a huge frame must not allocate for it up front.
func TestReadFrame_ShortBodyAllocation(t *testing.T) {
	frame := frameHeader(MaxFrameSize, 0, 3)

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)

	if _, err := ReadFrame(bytes.NewReader(frame), CompressionNone); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("ReadFrame() error = %v, want io.ErrUnexpectedEOF", err)
	}

	runtime.ReadMemStats(&after)
	if allocated := after.TotalAlloc - before.TotalAlloc; allocated > 16<<20 {
		t.Errorf("allocated %d bytes for a %d byte frame", allocated, len(frame))
	}
}

func TestCompressionExtension(t *testing.T) {
	want := map[Compression]string{
		CompressionNone: "",
		CompressionZstd: ".zst",
		CompressionLZ4:  ".lz4",
		CompressionGzip: ".gz",
	}
	for c, ext := range want {
		if got := c.Extension(); got != ext {
			t.Errorf("%s.Extension() = %q, want %q", c, got, ext)
		}
	}
}
