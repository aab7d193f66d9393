package encoder

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	apperrors "github.com/jittakal/tiwriter/internal/errors"
	"github.com/jittakal/tiwriter/pkg/record"
)

func TestNewFactory(t *testing.T) {
	tests := []struct {
		name            string
		format          string
		compression     string
		segment         Compression
		wantFormat      record.FileFormat
		wantCompression string
		wantField       string
	}{
		{"parquet default", "parquet", "", CompressionNone, record.FormatParquet, "snappy", ""},
		{"parquet follows segment codec", "PARQUET", "", CompressionZstd, record.FormatParquet, "zstd", ""},
		{"avro follows gzip segments", "avro", "", CompressionGzip, record.FormatAvro, "gzip", ""},
		{"avro ignores unsupported segment codec", "avro", "", CompressionLZ4, record.FormatAvro, "gzip", ""},
		{"explicit codec wins", "parquet", "LZ4", CompressionZstd, record.FormatParquet, "lz4", ""},
		{"none means uncompressed", "avro", "none", CompressionNone, record.FormatAvro, "uncompressed", ""},
		{"unknown format", "csv", "", CompressionNone, "", "", "format"},
		{"codec unsupported by format", "avro", "zstd", CompressionNone, "", "", "compression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFactory(tt.format, tt.compression, tt.segment)
			if tt.wantField != "" {
				var vErr *apperrors.ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("NewFactory() error = %v, want ValidationError", err)
				}
				if vErr.Field != tt.wantField {
					t.Errorf("Field = %s, want %s", vErr.Field, tt.wantField)
				}
				if !strings.Contains(vErr.Reason, "supported:") {
					t.Errorf("Reason %q does not list supported values", vErr.Reason)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewFactory() error = %v", err)
			}
			if f.Format() != tt.wantFormat || f.Compression() != tt.wantCompression {
				t.Errorf("factory = %s/%s, want %s/%s", f.Format(), f.Compression(), tt.wantFormat, tt.wantCompression)
			}
		})
	}
}

func TestFactory_CreateEncoder(t *testing.T) {
	for _, format := range SupportedFormats() {
		t.Run(string(format), func(t *testing.T) {
			f, err := NewFactory(string(format), "", CompressionNone)
			if err != nil {
				t.Fatalf("NewFactory() error = %v", err)
			}
			enc, err := f.CreateEncoder()
			if err != nil {
				t.Fatalf("CreateEncoder() error = %v", err)
			}
			if enc.Format() != format {
				t.Errorf("Format() = %v, want %v", enc.Format(), format)
			}
			if want := "." + string(format); enc.FileExtension() != want {
				t.Errorf("FileExtension() = %s, want %s", enc.FileExtension(), want)
			}
		})
	}
}

func TestFactory_OutputPath(t *testing.T) {
	f, err := NewFactory("avro", "", CompressionNone)
	if err != nil {
		t.Fatalf("NewFactory() error = %v", err)
	}

	tests := map[string]string{
		"captures/capture.ti":     "captures/capture.avro",
		"captures/capture.ti.zst": "captures/capture.avro",
		"run-1":                   "run-1.avro",
	}
	for in, want := range tests {
		if got := f.OutputPath(in); got != want {
			t.Errorf("OutputPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSupportedCompressions(t *testing.T) {
	if got := SupportedCompressions(record.FormatAvro); !reflect.DeepEqual(got, []string{"gzip", "uncompressed"}) {
		t.Errorf("avro compressions = %v", got)
	}
	if got := SupportedCompressions(record.FormatParquet); len(got) != 5 {
		t.Errorf("parquet compressions = %v", got)
	}
	if got := SupportedCompressions("csv"); len(got) != 0 {
		t.Errorf("unknown format compressions = %v", got)
	}
}
