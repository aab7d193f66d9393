package encoder

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jittakal/tiwriter/internal/errors"
	"github.com/jittakal/tiwriter/pkg/encoder"
	"github.com/jittakal/tiwriter/pkg/record"
)

// exportCodecs lists the codecs each export format accepts. The first entry
// is the fallback default.
var exportCodecs = map[record.FileFormat][]string{
	record.FormatParquet: {"snappy", "uncompressed", "gzip", "lz4", "zstd"},
	record.FormatAvro:    {"gzip", "uncompressed"},
}

// Factory creates export encoders for one capture. Format and codec come
// from the command line and are checked when the factory is built.
type Factory struct {
	format      record.FileFormat
	compression string
}

// NewFactory validates format and compression. An empty compression follows
// the codec the capture segments were stored with when the format supports
// it, and the format default otherwise.
func NewFactory(format, compression string, segment Compression) (*Factory, error) {
	f := record.FileFormat(strings.ToLower(format))
	codecs, ok := exportCodecs[f]
	if !ok {
		return nil, &errors.ValidationError{
			Field:  "format",
			Reason: fmt.Sprintf("unsupported format %q (supported: %s)", format, joinFormats(SupportedFormats())),
		}
	}

	codec := strings.ToLower(compression)
	switch {
	case codec == "" && slices.Contains(codecs, string(segment)):
		codec = string(segment)
	case codec == "":
		codec = codecs[0]
	case codec == "none":
		codec = "uncompressed"
	}
	if !slices.Contains(codecs, codec) {
		return nil, &errors.ValidationError{
			Field: "compression",
			Reason: fmt.Sprintf("%s does not support %q (supported: %s)",
				f, compression, strings.Join(SupportedCompressions(f), ", ")),
		}
	}

	return &Factory{format: f, compression: codec}, nil
}

// Format returns the validated export format.
func (f *Factory) Format() record.FileFormat {
	return f.format
}

// Compression returns the resolved export codec.
func (f *Factory) Compression() string {
	return f.compression
}

// CreateEncoder creates the encoder for the configured format.
func (f *Factory) CreateEncoder() (encoder.Encoder, error) {
	switch f.format {
	case record.FormatParquet:
		return NewParquetEncoder(f.compression), nil
	case record.FormatAvro:
		return NewAvroEncoder(f.compression)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", f.format)
	}
}

// OutputPath derives the export file name from a capture path by replacing
// the capture suffix with the format extension.
func (f *Factory) OutputPath(capturePath string) string {
	base := capturePath
	for _, suffix := range []string{".zst", ".lz4", ".gz", ".ti"} {
		base = strings.TrimSuffix(base, suffix)
	}
	return base + "." + string(f.format)
}

// SupportedFormats returns the export formats in a stable order.
func SupportedFormats() []record.FileFormat {
	return []record.FileFormat{record.FormatParquet, record.FormatAvro}
}

// SupportedCompressions returns the codecs an export format accepts, sorted.
func SupportedCompressions(format record.FileFormat) []string {
	codecs := slices.Clone(exportCodecs[format])
	slices.Sort(codecs)
	return codecs
}

func joinFormats(formats []record.FileFormat) string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
